package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"meetbot/internal/attendance"
	"meetbot/internal/botlog"
	"meetbot/internal/metrics"
	"meetbot/internal/timetable"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultLateGrace    = 2 * time.Minute
)

// Runner runs one attendance occurrence to completion.
type Runner interface {
	Run(ctx context.Context, e timetable.Entry) (attendance.Result, error)
}

type Options struct {
	PollInterval time.Duration
	// LateGrace is how long after its instant a trigger may still fire.
	// Older fires are recorded as missed.
	LateGrace time.Duration
	Location  *time.Location
	Ledger    Ledger
	RunLog    string
	Logger    *botlog.Logger
	Metrics   metrics.Sink
	Now       func() time.Time
}

// Scheduler fires one attendance run per due trigger, one at a time.
type Scheduler struct {
	runner    Runner
	poll      time.Duration
	lateGrace time.Duration
	loc       *time.Location
	ledger    Ledger
	runLog    string
	log       *botlog.Logger
	metrics   metrics.Sink
	now       func() time.Time

	mu       sync.Mutex
	triggers []*Trigger
}

func New(entries []timetable.Entry, runner Runner, opts Options) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("runner is nil")
	}
	s := &Scheduler{
		runner:    runner,
		poll:      opts.PollInterval,
		lateGrace: opts.LateGrace,
		loc:       opts.Location,
		ledger:    opts.Ledger,
		runLog:    opts.RunLog,
		log:       opts.Logger,
		metrics:   metrics.OrNoop(opts.Metrics),
		now:       opts.Now,
	}
	if s.poll <= 0 {
		s.poll = DefaultPollInterval
	}
	if s.lateGrace <= 0 {
		s.lateGrace = DefaultLateGrace
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.ledger == nil {
		s.ledger = NewMemoryLedger(DefaultClaimTTL)
	}
	if s.now == nil {
		s.now = time.Now
	}

	now := s.now()
	for _, e := range entries {
		t, err := NewTrigger(e, now, s.loc)
		if err != nil {
			s.log.Warnf("skipping timetable entry %s: %v", e, err)
			continue
		}
		if e.Inverted() {
			s.log.Warnf("%s ends at or before it starts; it will be left immediately", e)
		}
		s.triggers = append(s.triggers, t)
		s.log.Logf(botlog.KindSched, "scheduled %s (next %s)", e, t.Next.Format("Mon 2006-01-02 15:04"))
	}
	if len(s.triggers) == 0 {
		s.log.Warnf("no timetable entries scheduled")
	}
	return s, nil
}

// Triggers returns a snapshot of the registered triggers ordered by next fire.
func (s *Scheduler) Triggers() []Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Trigger, 0, len(s.triggers))
	for _, t := range s.triggers {
		out = append(out, *t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Next.Equal(out[j].Next) {
			return out[i].Next.Before(out[j].Next)
		}
		return timetable.Less(out[i].Entry, out[j].Entry)
	})
	return out
}

// Run polls until ctx is done or a run fails fatally. An in-progress run is
// always finished before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Logf(botlog.KindSched, "scheduler running, polling every %s", s.poll)
	for {
		if ctx.Err() != nil {
			s.log.Logf(botlog.KindSched, "scheduler stopped")
			return nil
		}
		if _, err := s.Tick(ctx, s.now()); err != nil {
			return err
		}

		timer := time.NewTimer(s.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Tick fires every trigger due at now, sequentially. It returns the number
// of runs started and the first fatal error.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (int, error) {
	started := s.now()
	fired := 0
	defer func() {
		s.metrics.TickCompleted(s.now().Sub(started), fired)
	}()

	for _, t := range s.due(now) {
		if ctx.Err() != nil {
			return fired, nil
		}
		// A previous run in this tick may have taken a while.
		if later := s.now(); later.After(now) {
			now = later
		}

		s.mu.Lock()
		scheduled := t.Next
		s.mu.Unlock()

		if now.Sub(scheduled) > s.lateGrace {
			s.missed(t, scheduled, now)
			continue
		}

		occurrence := t.OccurrenceKey(scheduled)
		claimed, err := s.ledger.Claim(ctx, occurrence)
		if err != nil {
			s.log.Warnf("occurrence ledger unavailable, running %s anyway: %v", occurrence, err)
			claimed = true
		}
		if !claimed {
			s.log.Logf(botlog.KindSched, "%s already started elsewhere, skipping", occurrence)
			s.metrics.OccurrenceSkipped(metrics.SkipClaimed)
			s.record(RunRecord{Occurrence: occurrence, Status: StatusSkipped}, t.Entry, scheduled)
			s.advance(t, now)
			continue
		}

		fired++
		s.log.Logf(botlog.KindSched, "firing %s", t.Entry)
		res, runErr := s.runner.Run(ctx, t.Entry)
		s.advance(t, now)
		s.record(recordOf(occurrence, res, runErr), t.Entry, scheduled)
		if runErr != nil {
			s.log.Errorf("stopping scheduler: %v", runErr)
			return fired, runErr
		}
	}
	return fired, nil
}

func (s *Scheduler) due(now time.Time) []*Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Trigger
	for _, t := range s.triggers {
		if !t.Next.After(now) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Next.Before(out[j].Next)
	})
	return out
}

func (s *Scheduler) advance(t *Trigger, after time.Time) {
	s.mu.Lock()
	t.advance(after)
	next := t.Next
	s.mu.Unlock()
	s.log.Logf(botlog.KindSched, "next %s at %s", t.Entry.Label(), next.Format("Mon 2006-01-02 15:04"))
}

func (s *Scheduler) missed(t *Trigger, scheduled, now time.Time) {
	s.log.Warnf("missed %s scheduled for %s (observed %s late)", t.Entry, scheduled.Format("15:04"), now.Sub(scheduled).Round(time.Second))
	s.metrics.TriggerMissed()
	s.record(RunRecord{Occurrence: t.OccurrenceKey(scheduled), Status: StatusMissed}, t.Entry, scheduled)
	s.advance(t, now)
}

func recordOf(occurrence string, res attendance.Result, err error) RunRecord {
	rec := RunRecord{
		Occurrence:  occurrence,
		Status:      StatusRan,
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
		State:       string(res.State),
		WaitSeconds: res.Wait.Seconds(),
		Interrupted: res.Interrupted,
	}
	for _, o := range res.Outcomes() {
		rec.Outcomes = append(rec.Outcomes, string(o))
	}
	switch {
	case err != nil:
		rec.Error = err.Error()
	case res.Err != nil:
		rec.Error = res.Err.Error()
	}
	return rec
}

func (s *Scheduler) record(rec RunRecord, e timetable.Entry, scheduled time.Time) {
	if s.runLog == "" {
		return
	}
	rec.ID = newRunID()
	rec.Team = e.Team
	rec.Meeting = e.Meeting
	rec.Day = e.Day.String()
	rec.Start = e.Start.String()
	rec.End = e.End.String()
	rec.ScheduledAt = scheduled
	if err := AppendRunRecord(s.runLog, rec); err != nil {
		s.log.Warnf("append run log: %v", err)
	}
}
