// Package reltime renders upstream timestamps as short relative strings
// ("5 min ago") for dashboard display.
package reltime

import (
	"fmt"
	"strings"
	"time"
)

// Unknown is returned for timestamps that cannot be parsed
const Unknown = "Unknown"

// JustNow is returned for timestamps less than a minute old or in the future
const JustNow = "Just now"

// layouts accepted by Parse. OTX emits microsecond timestamps without a zone,
// AbuseIPDB emits RFC3339 with offset.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse parses an upstream timestamp. Timestamps without zone are treated as UTC.
func Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Since formats t relative to now
func Since(t, now time.Time) string {
	diff := now.Sub(t)
	mins := int(diff / time.Minute)
	hours := int(diff / time.Hour)
	days := int(diff / (24 * time.Hour))

	switch {
	case mins < 1:
		return JustNow
	case mins < 60:
		return fmt.Sprintf("%d min ago", mins)
	case hours < 24:
		return fmt.Sprintf("%d hour%s ago", hours, plural(hours))
	case days < 7:
		return fmt.Sprintf("%d day%s ago", days, plural(days))
	default:
		return t.Format("Jan 2, 2006")
	}
}

// Format parses s and formats it relative to now
func Format(s string, now time.Time) string {
	t, ok := Parse(s)
	if !ok {
		return Unknown
	}
	return Since(t, now)
}

func plural(n int) string {
	if n > 1 {
		return "s"
	}
	return ""
}
