package metrics

import "time"

// NoopSink discards everything. Used when metrics are disabled.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) TickCompleted(duration time.Duration, fired int)    {}
func (n *NoopSink) TriggerMissed()                                     {}
func (n *NoopSink) OccurrenceSkipped(reason string)                    {}
func (n *NoopSink) RunCompleted(final string, duration time.Duration)  {}
func (n *NoopSink) StateEntered(state string)                          {}
func (n *NoopSink) InMeetingWait(wait time.Duration, interrupted bool) {}
func (n *NoopSink) NotificationSent(outcome string, delivered bool)    {}

// OrNoop returns s, or a NoopSink when s is nil.
func OrNoop(s Sink) Sink {
	if s == nil {
		return NewNoopSink()
	}
	return s
}
