package timetable

import (
	"fmt"
	"strings"
	"time"
)

// Day is a day of the week. The zero value is invalid so an unset day is
// never mistaken for Monday.
type Day int

const (
	Monday Day = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var dayNames = [...]string{
	Monday:    "monday",
	Tuesday:   "tuesday",
	Wednesday: "wednesday",
	Thursday:  "thursday",
	Friday:    "friday",
	Saturday:  "saturday",
	Sunday:    "sunday",
}

var dayWeekdays = [...]time.Weekday{
	Monday:    time.Monday,
	Tuesday:   time.Tuesday,
	Wednesday: time.Wednesday,
	Thursday:  time.Thursday,
	Friday:    time.Friday,
	Saturday:  time.Saturday,
	Sunday:    time.Sunday,
}

// Days lists every valid day, Monday first.
func Days() []Day {
	return []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

func ParseDay(raw string) (Day, error) {
	text := strings.ToLower(strings.TrimSpace(raw))
	if text == "" {
		return 0, fmt.Errorf("day is empty")
	}
	for _, d := range Days() {
		name := dayNames[d]
		if text == name || text == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid day %q: choose from monday, tuesday, ..., sunday", raw)
}

// DayOf maps a time.Weekday onto Day.
func DayOf(w time.Weekday) Day {
	switch w {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

func (d Day) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d Day) String() string {
	if !d.Valid() {
		return fmt.Sprintf("day(%d)", int(d))
	}
	return dayNames[d]
}

// Title returns the capitalised name, e.g. "Monday".
func (d Day) Title() string {
	s := d.String()
	if !d.Valid() {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (d Day) Weekday() time.Weekday {
	if !d.Valid() {
		return time.Sunday
	}
	return dayWeekdays[d]
}

func (d Day) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid day %d", int(d))
	}
	return []byte(d.String()), nil
}

func (d *Day) UnmarshalText(text []byte) error {
	parsed, err := ParseDay(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
