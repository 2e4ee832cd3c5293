package timetable

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var clockRe = regexp.MustCompile(`^\d\d:\d\d$`)

// Clock is a local wall-clock time of day with minute precision.
type Clock struct {
	minutes int
}

func NewClock(hour, minute int) (Clock, error) {
	if hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("hour %d out of range", hour)
	}
	if minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("minute %d out of range", minute)
	}
	return Clock{minutes: hour*60 + minute}, nil
}

// ParseClock accepts exactly HH:MM in 24-hour form.
func ParseClock(raw string) (Clock, error) {
	text := strings.TrimSpace(raw)
	if !clockRe.MatchString(text) {
		return Clock{}, fmt.Errorf("invalid time %q: use HH:MM", raw)
	}
	h, _ := strconv.Atoi(text[:2])
	m, _ := strconv.Atoi(text[3:])
	c, err := NewClock(h, m)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time %q: %w", raw, err)
	}
	return c, nil
}

// ClockOf returns the wall-clock time of t, truncated to the minute.
func ClockOf(t time.Time) Clock {
	return Clock{minutes: t.Hour()*60 + t.Minute()}
}

func (c Clock) Hour() int   { return c.minutes / 60 }
func (c Clock) Minute() int { return c.minutes % 60 }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c Clock) Before(o Clock) bool { return c.minutes < o.minutes }
func (c Clock) After(o Clock) bool  { return c.minutes > o.minutes }

// Sub returns the literal clock difference c - o. It can be negative.
func (c Clock) Sub(o Clock) time.Duration {
	return time.Duration(c.minutes-o.minutes) * time.Minute
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(text []byte) error {
	parsed, err := ParseClock(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
