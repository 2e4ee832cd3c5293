package notify

import (
	"context"
	"strings"
	"time"

	"meetbot/internal/botlog"
)

// Outcome is the status reported to the operator after a session step.
type Outcome string

const (
	OutcomeJoined  Outcome = "joined"
	OutcomeLeft    Outcome = "left"
	OutcomeNoClass Outcome = "noclass"
	// OutcomeFailed is recorded in run logs only; sinks never deliver it.
	OutcomeFailed Outcome = "failed"
)

// Title is the capitalised form used in message bodies.
func (o Outcome) Title() string {
	s := string(o)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

type Notification struct {
	Label   string
	Outcome Outcome
	Start   string
	End     string
	At      time.Time
}

// Sink delivers a notification. It reports whether delivery succeeded and
// never fails the caller.
type Sink interface {
	Notify(ctx context.Context, n Notification) bool
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification) bool

func (f SinkFunc) Notify(ctx context.Context, n Notification) bool {
	return f(ctx, n)
}

// Multi fans a notification out to every sink. Delivery counts when any
// sink delivered.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, n Notification) bool {
	delivered := false
	for _, s := range m {
		if s == nil {
			continue
		}
		if s.Notify(ctx, n) {
			delivered = true
		}
	}
	return delivered
}

// LogSink echoes notifications to the operator log.
type LogSink struct {
	Log *botlog.Logger
}

func (s LogSink) Notify(_ context.Context, n Notification) bool {
	s.Log.Logf(botlog.KindNotify, "%s: %s (%s-%s)", n.Outcome.Title(), n.Label, n.Start, n.End)
	return true
}

// Summary is the one-line text form shared by the sinks.
func Summary(n Notification) string {
	switch n.Outcome {
	case OutcomeJoined:
		return "Joined " + n.Label
	case OutcomeLeft:
		return "Left " + n.Label
	case OutcomeNoClass:
		return "No meeting found for " + n.Label
	default:
		return n.Outcome.Title() + " " + n.Label
	}
}
