package timetable

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Entry is one weekly meeting in the timetable.
type Entry struct {
	Team    string `json:"team"`
	Meeting string `json:"meeting"`
	Start   Clock  `json:"start"`
	End     Clock  `json:"end"`
	Day     Day    `json:"day"`
}

// NewEntry parses the raw text fields the way they are stored.
func NewEntry(team, meeting, start, end, day string) (Entry, error) {
	st, err := ParseClock(start)
	if err != nil {
		return Entry{}, fmt.Errorf("start: %w", err)
	}
	et, err := ParseClock(end)
	if err != nil {
		return Entry{}, fmt.Errorf("end: %w", err)
	}
	d, err := ParseDay(day)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{
		Team:    strings.TrimSpace(team),
		Meeting: strings.TrimSpace(meeting),
		Start:   st,
		End:     et,
		Day:     d,
	}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.Team) == "" {
		return errors.New("team name cannot be blank")
	}
	if strings.TrimSpace(e.Meeting) == "" {
		return errors.New("meeting name cannot be blank")
	}
	if !e.Day.Valid() {
		return fmt.Errorf("invalid day %d", int(e.Day))
	}
	return nil
}

// Label is the name notifications are sent under.
func (e Entry) Label() string {
	return e.Meeting
}

// Duration is End - Start as a plain clock difference. Meetings that end at
// or before they start (including ones crossing midnight) last zero.
func (e Entry) Duration() time.Duration {
	d := e.End.Sub(e.Start)
	if d < 0 {
		return 0
	}
	return d
}

// Inverted reports whether End is not after Start, i.e. Duration is zero.
func (e Entry) Inverted() bool {
	return !e.End.After(e.Start)
}

// Key identifies the entry for trigger bookkeeping.
func (e Entry) Key() string {
	return fmt.Sprintf("%s/%s/%s/%s", e.Day, e.Start, strings.ToLower(e.Team), strings.ToLower(e.Meeting))
}

func (e Entry) String() string {
	return fmt.Sprintf("%s in %s on %s %s-%s", e.Meeting, e.Team, e.Day.Title(), e.Start, e.End)
}

// Less orders entries by (day, start), with team and meeting as tie-breaks.
func Less(a, b Entry) bool {
	if a.Day != b.Day {
		return a.Day < b.Day
	}
	if a.Start != b.Start {
		return a.Start.Before(b.Start)
	}
	if a.Team != b.Team {
		return a.Team < b.Team
	}
	return a.Meeting < b.Meeting
}
