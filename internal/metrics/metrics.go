package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Detection metrics
var (
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_events_total",
		Help: "Total number of gateway events processed",
	}, []string{"kind"})

	EventPanicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_event_panics_total",
		Help: "Total number of recovered panics while handling an event",
	}, []string{"kind"})

	DetectionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "studio_detection_duration_seconds",
		Help:    "Time spent handling one event, including enforcement",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"kind"})

	BreachesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_breaches_total",
		Help: "Total number of threshold breaches",
	}, []string{"category"})

	ContentBlockedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_content_blocked_total",
		Help: "Total number of messages removed by content policy",
	}, []string{"reason"})

	CorrelationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_audit_correlations_total",
		Help: "Audit log correlation attempts by result",
	}, []string{"result"})

	RateTrackerKeys = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "studio_rate_tracker_keys",
		Help: "Number of live sliding-window keys",
	})
)

// Enforcement metrics
var (
	EnforcementStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_enforcement_steps_total",
		Help: "Enforcement steps by outcome",
	}, []string{"step", "result"})

	QuarantineTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_quarantine_transitions_total",
		Help: "Quarantine transitions by trigger",
	}, []string{"transition", "trigger"})

	TempGrantsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "studio_temp_grants_pending",
		Help: "Number of scheduled temporary role revokes",
	})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_notifications_total",
		Help: "Log channel notifications by result",
	}, []string{"result"})
)

// Store metrics
var (
	StoreErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_store_errors_total",
		Help: "Guild store failures by operation",
	}, []string{"op"})

	ComponentHealthy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "studio_component_healthy",
		Help: "Background component health (1=healthy, 0=stalled)",
	}, []string{"component"})

	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_commands_total",
		Help: "Slash commands handled by name and result",
	}, []string{"command", "result"})
)

// Step results
const (
	ResultOK      = "ok"
	ResultDenied  = "denied"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)
