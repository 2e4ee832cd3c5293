package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meetbot/internal/botlog"
	"meetbot/internal/metrics"
	"meetbot/internal/notify"
	"meetbot/internal/session"
	"meetbot/internal/timetable"
)

// ErrFatal marks a run failure that must stop the bot, as opposed to one
// scoped to the current occurrence.
var ErrFatal = errors.New("fatal attendance failure")

// Waiter blocks for d or until ctx is done.
type Waiter func(ctx context.Context, d time.Duration) error

type Options struct {
	Session     session.Session
	Notifier    notify.Sink
	Metrics     metrics.Sink
	Logger      *botlog.Logger
	AuthTimeout time.Duration
	Wait        Waiter
	Now         func() time.Time
}

// Machine runs one attendance session per call to Run. It is not safe for
// concurrent use; the scheduler runs occurrences one at a time.
type Machine struct {
	sess        session.Session
	notifier    notify.Sink
	metrics     metrics.Sink
	log         *botlog.Logger
	authTimeout time.Duration
	wait        Waiter
	now         func() time.Time
}

type Emission struct {
	Outcome   notify.Outcome
	Delivered bool
}

// Result describes one finished run. Err is the occurrence-scoped failure,
// if any; Interrupted is set when an operator stop cut the in-meeting wait
// short.
type Result struct {
	Entry       timetable.Entry
	State       State
	Trace       []State
	Emitted     []Emission
	Wait        time.Duration
	Interrupted bool
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Outcomes lists the emitted outcomes in order.
func (r Result) Outcomes() []notify.Outcome {
	out := make([]notify.Outcome, 0, len(r.Emitted))
	for _, e := range r.Emitted {
		out = append(out, e.Outcome)
	}
	return out
}

func New(opts Options) (*Machine, error) {
	if opts.Session == nil {
		return nil, errors.New("session is nil")
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.LogSink{Log: opts.Logger}
	}
	wait := opts.Wait
	if wait == nil {
		wait = waitContext
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Machine{
		sess:        opts.Session,
		notifier:    notifier,
		metrics:     metrics.OrNoop(opts.Metrics),
		log:         opts.Logger,
		authTimeout: opts.AuthTimeout,
		wait:        wait,
		now:         now,
	}, nil
}

// Run drives one occurrence of e from Idle to a terminal state. The returned
// error is non-nil only for failures that must stop the bot and always wraps
// ErrFatal. UI steps ignore cancellation of ctx; only the in-meeting wait is
// cut short by it.
func (m *Machine) Run(ctx context.Context, e timetable.Entry) (Result, error) {
	r := &Result{Entry: e, State: StateIdle, Trace: []State{StateIdle}, StartedAt: m.now()}
	ui := context.WithoutCancel(ctx)
	defer func() {
		r.FinishedAt = m.now()
		m.metrics.RunCompleted(string(r.State), r.FinishedAt.Sub(r.StartedAt))
	}()

	m.log.Infof("starting session for %s", e)

	m.enter(r, StateAuthenticating)
	if err := m.sess.EnsureAuthenticated(ui, m.authTimeout); err != nil {
		r.Err = err
		m.enter(r, StateFailed)
		m.log.Errorf("authentication failed: %v", err)
		return *r, fmt.Errorf("%w: %w", ErrFatal, err)
	}

	m.enter(r, StateTeamOpen)
	if err := m.sess.OpenTeam(ui, e.Team); err != nil {
		r.Err = err
		m.enter(r, StateFailed)
		m.log.Warnf("skipping %s: %v", e.Label(), err)
		return *r, nil
	}

	m.enter(r, StateMeetingSearch)
	lookup, err := m.sess.FindMeetingBanner(ui, e.Meeting)
	if err != nil {
		m.log.Warnf("meeting lookup for %q failed, treating as no class: %v", e.Meeting, err)
	}
	if err != nil || !lookup.Found() {
		r.Err = &session.MeetingNotFoundError{Meeting: e.Meeting}
		m.enter(r, StateNoClass)
		m.emit(ui, r, notify.OutcomeNoClass)
		return *r, nil
	}

	if err := m.sess.Join(ui, lookup.Banner); err != nil {
		r.Err = err
		m.enter(r, StateFailed)
		m.log.Warnf("could not join %s: %v", e.Label(), err)
		return *r, nil
	}
	m.enter(r, StateJoined)
	m.emit(ui, r, notify.OutcomeJoined)

	m.enter(r, StateInMeeting)
	r.Wait = e.Duration()
	m.log.Infof("in meeting %s for %s", e.Label(), r.Wait)
	if err := m.wait(ctx, r.Wait); err != nil {
		r.Interrupted = true
		m.log.Warnf("in-meeting wait interrupted: %v", err)
	}
	m.metrics.InMeetingWait(r.Wait, r.Interrupted)

	if err := m.sess.Leave(ui); err != nil {
		r.Err = err
		m.log.Warnf("leave failed, the meeting may need to be left manually: %v", err)
	}
	m.enter(r, StateLeft)
	m.emit(ui, r, notify.OutcomeLeft)
	return *r, nil
}

func (m *Machine) enter(r *Result, next State) {
	if !CanTransition(r.State, next) {
		m.log.Warnf("unexpected transition %s -> %s", r.State, next)
	}
	m.log.Logf(botlog.KindState, "%s -> %s", r.State, next)
	r.State = next
	r.Trace = append(r.Trace, next)
	m.metrics.StateEntered(string(next))
}

func (m *Machine) emit(ctx context.Context, r *Result, outcome notify.Outcome) {
	n := notify.Notification{
		Label:   r.Entry.Label(),
		Outcome: outcome,
		Start:   r.Entry.Start.String(),
		End:     r.Entry.End.String(),
		At:      m.now(),
	}
	m.log.Logf(botlog.KindNotify, "%s", notify.Summary(n))
	delivered := m.notifier.Notify(ctx, n)
	if !delivered {
		m.log.Warnf("%s notification was not delivered", outcome)
	}
	r.Emitted = append(r.Emitted, Emission{Outcome: outcome, Delivered: delivered})
}

func waitContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
