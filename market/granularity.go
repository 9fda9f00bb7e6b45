package market

import (
	"fmt"
	"strings"
	"time"
)

// Granularity is an OANDA candle bucket name.
type Granularity string

const (
	S5  Granularity = "S5"
	S10 Granularity = "S10"
	S15 Granularity = "S15"
	S30 Granularity = "S30"
	M1  Granularity = "M1"
	M2  Granularity = "M2"
	M4  Granularity = "M4"
	M5  Granularity = "M5"
	M10 Granularity = "M10"
	M15 Granularity = "M15"
	M30 Granularity = "M30"
	H1  Granularity = "H1"
	H2  Granularity = "H2"
	H3  Granularity = "H3"
	H4  Granularity = "H4"
	H6  Granularity = "H6"
	H8  Granularity = "H8"
	H12 Granularity = "H12"
	D   Granularity = "D"
	W   Granularity = "W"
	M   Granularity = "M"
)

var durations = map[Granularity]time.Duration{
	S5: 5 * time.Second, S10: 10 * time.Second, S15: 15 * time.Second, S30: 30 * time.Second,
	M1: time.Minute, M2: 2 * time.Minute, M4: 4 * time.Minute, M5: 5 * time.Minute,
	M10: 10 * time.Minute, M15: 15 * time.Minute, M30: 30 * time.Minute,
	H1: time.Hour, H2: 2 * time.Hour, H3: 3 * time.Hour, H4: 4 * time.Hour,
	H6: 6 * time.Hour, H8: 8 * time.Hour, H12: 12 * time.Hour,
	D: 24 * time.Hour, W: 7 * 24 * time.Hour,
}

// ParseGranularity validates s against the known bucket names.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToUpper(strings.TrimSpace(s)))
	if g == M {
		return g, nil
	}
	if _, ok := durations[g]; !ok {
		return "", fmt.Errorf("unknown granularity %q", s)
	}
	return g, nil
}

// Duration is the nominal bucket length. Months report 30 days.
func (g Granularity) Duration() time.Duration {
	if g == M {
		return 30 * 24 * time.Hour
	}
	return durations[g]
}

// Truncate rounds t down to the start of its bucket in UTC. Day, week and
// month buckets start at midnight; weeks start on Monday.
func (g Granularity) Truncate(t time.Time) time.Time {
	t = t.UTC()
	switch g {
	case D:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case W:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case M:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	d := g.Duration()
	if d <= 0 {
		return t
	}
	return t.Truncate(d)
}

// Next returns the start of the bucket after the one holding t. Months
// follow the calendar rather than Duration.
func (g Granularity) Next(t time.Time) time.Time {
	start := g.Truncate(t)
	switch g {
	case D:
		return start.AddDate(0, 0, 1)
	case W:
		return start.AddDate(0, 0, 7)
	case M:
		return start.AddDate(0, 1, 0)
	}
	return start.Add(g.Duration())
}

func (g Granularity) String() string { return string(g) }
