package tender

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"tenderscrape/internal/scrapeerr"
	"time"
)

var dateLayouts = []string{
	"02-01-2006",
	"02/01/2006",
	"2006-01-02",
	"02-01-06",
	"02/01/06",
	"02-01-2006 15:04",
	"02/01/2006 15:04",
	"02-01-2006 15:04:05",
}

// ParseDate parses the date formats the portal is known to publish.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func ValidDate(s string) bool {
	_, ok := ParseDate(s, nil)
	return ok
}

var currencyNoise = regexp.MustCompile(`(?i)rs\.?|inr|₹|/-|,|\s`)

// ParseAmount parses indian style currency strings such as "Rs. 1,25,000.00".
func ParseAmount(s string) (float64, bool) {
	cleaned := currencyNoise.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// Warnings lists the problems of a record that do not make it unusable:
// missing descriptive fields, and dates or amounts in an unknown format.
func (r Record) Warnings(row int) []error {
	var out []error
	if strings.TrimSpace(r.Title) == "" {
		out = append(out, scrapeerr.Validation("title", row, errMissing))
	}
	if strings.TrimSpace(r.Department) == "" {
		out = append(out, scrapeerr.Validation("department", row, errMissing))
	}
	dates := []struct {
		field string
		value string
	}{
		{"published_date", r.PublishedDate},
		{"bid_open_date", r.BidOpenDate},
		{"bid_close_date", r.BidCloseDate},
	}
	for _, d := range dates {
		if strings.TrimSpace(d.value) != "" && !ValidDate(d.value) {
			out = append(out, scrapeerr.Validation(d.field, row, fmt.Errorf("unknown date format %q", d.value)))
		}
	}
	if strings.TrimSpace(r.Value) != "" {
		if _, ok := ParseAmount(r.Value); !ok {
			out = append(out, scrapeerr.Validation("value", row, fmt.Errorf("unknown amount format %q", r.Value)))
		}
	}
	return out
}
