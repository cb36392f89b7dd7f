// Package util provides common utility functions.
package util

import (
	"fmt"
	"strings"
	"time"
)

// FormatStudyDuration renders seconds of reading time as "1h 2m 3s",
// omitting leading zero units. Zero or negative renders as "0s".
func FormatStudyDuration(seconds int64) string {
	if seconds <= 0 {
		return "0s"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60

	var parts []string
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if h > 0 || m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	parts = append(parts, fmt.Sprintf("%ds", s))
	return strings.Join(parts, " ")
}

// FormatRelative renders t relative to now: "just now", "5 mins ago",
// "1 hr ago", "2 days ago", "3 weeks ago", "1 month ago", "2 years ago".
// Future times render as "just now".
func FormatRelative(t, now time.Time) string {
	secs := int64(now.Sub(t).Seconds())
	switch {
	case secs < 60:
		return "just now"
	case secs < 3600:
		return plural(secs/60, "min")
	case secs < 86400:
		return plural(secs/3600, "hr")
	case secs < 7*86400:
		return plural(secs/86400, "day")
	case secs < 30*86400:
		return plural(secs/(7*86400), "week")
	case secs < 365*86400:
		return plural(secs/(30*86400), "month")
	default:
		return plural(secs/(365*86400), "year")
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
