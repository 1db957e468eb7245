package timefmt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, time.February, 10, 12, 0, 0, 0, time.UTC)

func ago(d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

func TestTimeAgo(t *testing.T) {
	tests := []struct {
		name string
		ts   *time.Time
		want string
	}{
		{"nil", nil, "Recently"},
		{"30 seconds", ago(30 * time.Second), "Just now"},
		{"59 seconds", ago(59 * time.Second), "Just now"},
		{"exactly a minute", ago(60 * time.Second), "1 minute ago"},
		{"two minutes", ago(150 * time.Second), "2 minutes ago"},
		{"hour and change", ago(3661 * time.Second), "1 hour ago"},
		{"two hours", ago(7200 * time.Second), "2 hours ago"},
		{"two days", ago(172800 * time.Second), "2 days ago"},
		{"one week", ago(604800 * time.Second), "1 week ago"},
		{"three weeks", ago(3 * 604800 * time.Second), "3 weeks ago"},
		{"one month", ago(2592000 * time.Second), "1 month ago"},
		{"one year", ago(31536000 * time.Second), "1 year ago"},
		{"five years", ago(5 * 31536000 * time.Second), "5 years ago"},
		{"future", ago(-time.Hour), "Just now"},
		{"just under a minute", ago(59*time.Second + 900*time.Millisecond), "Just now"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TimeAgo(tt.ts, now))
		})
	}
}

func TestTimeAgo_BeyondDurationRange(t *testing.T) {
	old := time.Date(1700, time.January, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "326 years ago", TimeAgo(&old, now))

	ancient := time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026 years ago", TimeAgo(&ancient, now))
}

func TestTimeAgo_MonotonicWithinUnit(t *testing.T) {
	// Within the hour bucket the count never decreases as the timestamp ages.
	prev := ""
	for s := 3600; s < 86400; s += 3600 {
		got := TimeAgo(ago(time.Duration(s)*time.Second), now)
		if prev != "" {
			assert.NotEqual(t, prev, got)
		}
		prev = got
	}
	assert.Equal(t, "23 hours ago", prev)
}

func TestFixedClock(t *testing.T) {
	c := FixedClock{T: now}
	assert.Equal(t, now, c.Now())
	assert.WithinDuration(t, time.Now(), SystemClock{}.Now(), time.Second)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2026-02-08T20:00:00Z", time.Date(2026, 2, 8, 20, 0, 0, 0, time.UTC)},
		{"2026-02-08T20:00:00.123456Z", time.Date(2026, 2, 8, 20, 0, 0, 123456000, time.UTC)},
		{"2026-02-08T20:00:00.123456", time.Date(2026, 2, 8, 20, 0, 0, 123456000, time.UTC)},
		{"2026-02-08T20:00:00", time.Date(2026, 2, 8, 20, 0, 0, 0, time.UTC)},
		{"2026-02-08", time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got := ParseTimestamp(tt.in)
		require.NotNil(t, got, tt.in)
		assert.True(t, tt.want.Equal(*got), "%s parsed as %v", tt.in, got)
	}

	assert.Nil(t, ParseTimestamp(""))
	assert.Nil(t, ParseTimestamp("yesterday"))
	assert.Nil(t, ParseTimestampPtr(nil))
}
