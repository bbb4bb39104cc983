package chrono

import (
	"time"
	_ "time/tzdata"
)

// PortalTimezone is the timezone the tender portal publishes its dates in.
const PortalTimezone = "Asia/Kolkata"

type API interface {
	Now() time.Time
	Location() *time.Location
}

// StandardImpl reads the system clock. The zero value reports local time.
type StandardImpl struct {
	location *time.Location
}

func NewStandardImpl(timezone string) (StandardImpl, error) {
	if timezone == "" {
		timezone = PortalTimezone
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return StandardImpl{}, err
	}
	return StandardImpl{location: location}, nil
}

func (s StandardImpl) Now() time.Time {
	if s.location == nil {
		return time.Now()
	}
	return time.Now().In(s.location)
}

func (s StandardImpl) Location() *time.Location {
	if s.location == nil {
		return time.Local
	}
	return s.location
}

// Fixed always returns the same instant, it is meant for tests.
type Fixed struct {
	At time.Time
}

func (f Fixed) Now() time.Time {
	return f.At
}

func (f Fixed) Location() *time.Location {
	return f.At.Location()
}
