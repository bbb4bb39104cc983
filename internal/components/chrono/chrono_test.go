package chrono

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStandardImpl(t *testing.T) {
	clock, err := NewStandardImpl("")
	require.NoError(t, err)
	require.Equal(t, PortalTimezone, clock.Location().String())
	require.Equal(t, PortalTimezone, clock.Now().Location().String())

	utc, err := NewStandardImpl("UTC")
	require.NoError(t, err)
	require.Equal(t, time.UTC.String(), utc.Location().String())

	_, err = NewStandardImpl("Mars/Olympus_Mons")
	require.Error(t, err)

	require.Equal(t, time.Local, StandardImpl{}.Location())
	require.False(t, StandardImpl{}.Now().IsZero())
}

func TestFixed(t *testing.T) {
	at := time.Date(2024, time.March, 5, 17, 0, 0, 0, time.UTC)
	clock := Fixed{At: at}
	require.Equal(t, at, clock.Now())
	require.Equal(t, time.UTC, clock.Location())
}
