// Package timefmt renders timestamps as coarse relative ages.
package timefmt

import (
	"fmt"
	"strings"
	"time"
)

type unit struct {
	name    string
	seconds int64
}

// Checked largest first; the first unit with a whole count of at least one wins.
var units = []unit{
	{"year", 31536000},
	{"month", 2592000},
	{"week", 604800},
	{"day", 86400},
	{"hour", 3600},
	{"minute", 60},
}

const (
	Recently = "Recently"
	JustNow  = "Just now"
)

// TimeAgo formats the age of ts relative to now, e.g. "2 hours ago".
// A nil timestamp yields "Recently"; anything under a minute (or in the
// future) yields "Just now".
func TimeAgo(ts *time.Time, now time.Time) string {
	if ts == nil {
		return Recently
	}

	// Whole seconds, floored. time.Duration would saturate past ~292 years.
	elapsed := now.Unix() - ts.Unix()
	if now.Nanosecond() < ts.Nanosecond() {
		elapsed--
	}
	for _, u := range units {
		n := elapsed / u.seconds
		if n >= 1 {
			if n == 1 {
				return fmt.Sprintf("%d %s ago", n, u.name)
			}
			return fmt.Sprintf("%d %ss ago", n, u.name)
		}
	}
	return JustNow
}

// Clock supplies the current instant so callers can pin "now" in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses the ISO-8601 variants found in the articles table.
// Naive timestamps are taken as UTC. Empty or unparseable input returns nil.
func ParseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// ParseTimestampPtr is ParseTimestamp for optional columns.
func ParseTimestampPtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	return ParseTimestamp(*s)
}
