package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meetbot/internal/botlog"
)

// PrometheusSink implements Sink on the Prometheus client library.
// Registration failures are logged and never propagated.
type PrometheusSink struct {
	log *botlog.Logger

	ticksTotal      prometheus.Counter
	firedTotal      prometheus.Counter
	tickDuration    prometheus.Histogram
	missedTotal     prometheus.Counter
	skippedTotal    *prometheus.CounterVec
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	statesTotal     *prometheus.CounterVec
	waitSeconds     prometheus.Histogram
	interruptsTotal prometheus.Counter
	notifyTotal     *prometheus.CounterVec
}

func NewPrometheusSink(reg prometheus.Registerer, log *botlog.Logger) *PrometheusSink {
	s := &PrometheusSink{log: log}
	s.initSchedulerMetrics(reg)
	s.initAttendanceMetrics(reg)
	s.initNotifyMetrics(reg)
	return s
}

func (s *PrometheusSink) initSchedulerMetrics(reg prometheus.Registerer) {
	s.ticksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meetbot_scheduler_ticks_total",
		Help: "Total number of scheduler ticks processed.",
	})
	s.firedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meetbot_scheduler_triggers_fired_total",
		Help: "Total number of triggers that started an attendance run.",
	})
	s.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "meetbot_scheduler_tick_duration_seconds",
		Help:    "Duration of each scheduler tick in seconds, including runs it fired.",
		Buckets: []float64{0.01, 0.1, 1, 10, 60, 600, 3600, 7200},
	})
	s.missedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meetbot_scheduler_triggers_missed_total",
		Help: "Total number of triggers observed too late to run.",
	})
	s.skippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meetbot_scheduler_occurrences_skipped_total",
		Help: "Total number of due occurrences skipped by the occurrence ledger.",
	}, []string{"reason"})

	s.register(reg, s.ticksTotal, "meetbot_scheduler_ticks_total")
	s.register(reg, s.firedTotal, "meetbot_scheduler_triggers_fired_total")
	s.register(reg, s.tickDuration, "meetbot_scheduler_tick_duration_seconds")
	s.register(reg, s.missedTotal, "meetbot_scheduler_triggers_missed_total")
	s.register(reg, s.skippedTotal, "meetbot_scheduler_occurrences_skipped_total")
}

func (s *PrometheusSink) initAttendanceMetrics(reg prometheus.Registerer) {
	s.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meetbot_attendance_runs_total",
		Help: "Total number of attendance runs by final state.",
	}, []string{"state"})
	s.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "meetbot_attendance_run_duration_seconds",
		Help:    "Wall time of an attendance run in seconds.",
		Buckets: []float64{1, 10, 30, 60, 300, 900, 1800, 3600, 7200},
	})
	s.statesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meetbot_attendance_states_entered_total",
		Help: "Total number of state machine transitions by target state.",
	}, []string{"state"})
	s.waitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "meetbot_attendance_in_meeting_wait_seconds",
		Help:    "Planned in-meeting wait in seconds.",
		Buckets: []float64{0, 300, 900, 1800, 2700, 3000, 3600, 5400, 7200},
	})
	s.interruptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meetbot_attendance_wait_interrupted_total",
		Help: "Total number of in-meeting waits cut short by an operator stop.",
	})

	s.register(reg, s.runsTotal, "meetbot_attendance_runs_total")
	s.register(reg, s.runDuration, "meetbot_attendance_run_duration_seconds")
	s.register(reg, s.statesTotal, "meetbot_attendance_states_entered_total")
	s.register(reg, s.waitSeconds, "meetbot_attendance_in_meeting_wait_seconds")
	s.register(reg, s.interruptsTotal, "meetbot_attendance_wait_interrupted_total")
}

func (s *PrometheusSink) initNotifyMetrics(reg prometheus.Registerer) {
	s.notifyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meetbot_notifications_total",
		Help: "Total number of status notifications by outcome and delivery.",
	}, []string{"outcome", "delivered"})

	s.register(reg, s.notifyTotal, "meetbot_notifications_total")
}

func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		s.log.Warnf("metrics: failed to register %s: %v", name, err)
	}
}

func (s *PrometheusSink) TickCompleted(duration time.Duration, fired int) {
	s.ticksTotal.Inc()
	s.firedTotal.Add(float64(fired))
	s.tickDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) TriggerMissed() {
	s.missedTotal.Inc()
}

func (s *PrometheusSink) OccurrenceSkipped(reason string) {
	s.skippedTotal.WithLabelValues(reason).Inc()
}

func (s *PrometheusSink) RunCompleted(final string, duration time.Duration) {
	s.runsTotal.WithLabelValues(final).Inc()
	s.runDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) StateEntered(state string) {
	s.statesTotal.WithLabelValues(state).Inc()
}

func (s *PrometheusSink) InMeetingWait(wait time.Duration, interrupted bool) {
	s.waitSeconds.Observe(wait.Seconds())
	if interrupted {
		s.interruptsTotal.Inc()
	}
}

func (s *PrometheusSink) NotificationSent(outcome string, delivered bool) {
	s.notifyTotal.WithLabelValues(outcome, strconv.FormatBool(delivered)).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
