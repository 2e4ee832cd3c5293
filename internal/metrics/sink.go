package metrics

import "time"

// Sink records bot metrics. Every method is fire-and-forget: implementations
// must not block or return errors.
type Sink interface {
	// Scheduler
	TickCompleted(duration time.Duration, fired int)
	TriggerMissed()
	OccurrenceSkipped(reason string)

	// Attendance
	RunCompleted(final string, duration time.Duration)
	StateEntered(state string)
	InMeetingWait(wait time.Duration, interrupted bool)

	// Notifications
	NotificationSent(outcome string, delivered bool)
}

// SkipClaimed is the OccurrenceSkipped reason for an occurrence another
// process already started.
const SkipClaimed = "claimed"
