package scheduler

import (
	"fmt"
	"time"

	robcron "github.com/robfig/cron/v3"

	"meetbot/internal/timetable"
)

var weeklyParser = robcron.NewParser(robcron.Minute | robcron.Hour | robcron.Dom | robcron.Month | robcron.Dow | robcron.Descriptor)

// Trigger is the weekly fire schedule of one timetable entry.
type Trigger struct {
	Entry    timetable.Entry
	Expr     string
	Schedule robcron.Schedule
	Next     time.Time
}

// WeeklyExpr renders the cron expression that fires at e's start every week.
func WeeklyExpr(e timetable.Entry) string {
	return fmt.Sprintf("%d %d * * %d", e.Start.Minute(), e.Start.Hour(), int(e.Day.Weekday()))
}

// NewTrigger builds the trigger for e with its first fire strictly after
// now, evaluated in loc.
func NewTrigger(e timetable.Entry, now time.Time, loc *time.Location) (*Trigger, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	expr := WeeklyExpr(e)
	sched, err := weeklyParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expr %q: %w", expr, err)
	}
	return &Trigger{
		Entry:    e,
		Expr:     expr,
		Schedule: sched,
		Next:     sched.Next(now.In(loc)),
	}, nil
}

// Key identifies the trigger. Duplicate timetable rows at the same slot
// share a key and so share occurrences.
func (t *Trigger) Key() string {
	return t.Entry.Key()
}

// OccurrenceKey identifies a single weekly occurrence of the trigger.
func (t *Trigger) OccurrenceKey(at time.Time) string {
	return t.Key() + "@" + at.In(t.Next.Location()).Format(occurrenceLayout)
}

const occurrenceLayout = "2006-01-02 15:04"

func OccurrenceKey(e timetable.Entry, at time.Time) string {
	return e.Key() + "@" + at.Format(occurrenceLayout)
}

func (t *Trigger) advance(after time.Time) {
	t.Next = t.Schedule.Next(after.In(t.Next.Location()))
}
