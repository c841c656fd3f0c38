package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the wizard engine.
// Counters are labelled by wizard name; step names are bounded by the flow tables.
type Metrics struct {
	WizardsStarted   *prometheus.CounterVec
	WizardsCompleted *prometheus.CounterVec
	WizardsCancelled *prometheus.CounterVec
	StepSubmissions  *prometheus.CounterVec
	GuardRedirects   *prometheus.CounterVec
	SaveConflicts    *prometheus.CounterVec
	BackOfficeErrors *prometheus.CounterVec
	AuditDropped     prometheus.Counter
	RateLimited      *prometheus.CounterVec
	SubmitDuration   *prometheus.HistogramVec
}

// New creates a Metrics instance registered with reg.
// Pass prometheus.DefaultRegisterer in main and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		WizardsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taxportal_wizards_started_total",
			Help: "Total number of wizards started",
		}, []string{"wizard"}),
		WizardsCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taxportal_wizards_completed_total",
			Help: "Total number of wizards forwarded to the back office",
		}, []string{"wizard"}),
		WizardsCancelled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taxportal_wizards_cancelled_total",
			Help: "Total number of wizards cancelled by the user",
		}, []string{"wizard"}),
		StepSubmissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taxportal_wizard_step_submissions_total",
			Help: "Step submissions by outcome (accepted, invalid)",
		}, []string{"wizard", "step", "outcome"}),
		GuardRedirects: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taxportal_wizard_guard_redirects_total",
			Help: "Requests redirected because the wizard state did not allow the step",
		}, []string{"wizard", "reason"}),
		SaveConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taxportal_wizard_save_conflicts_total",
			Help: "Optimistic saves rejected because the cached entry changed",
		}, []string{"wizard"}),
		BackOfficeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taxportal_backoffice_errors_total",
			Help: "Failed back office calls by operation",
		}, []string{"operation"}),
		AuditDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "taxportal_audit_events_dropped_total",
			Help: "Audit events dropped because the buffer was full",
		}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taxportal_rate_limited_total",
			Help: "Requests rejected by a rate limit policy",
		}, []string{"class"}),
		SubmitDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taxportal_wizard_submit_duration_seconds",
			Help:    "Duration of step submissions including back office forwarding",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"wizard"}),
	}
}

// ObserveSubmit records the duration of a step submission.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveSubmit(wizard string, start time.Time) {
	m.SubmitDuration.WithLabelValues(wizard).Observe(time.Since(start).Seconds())
}
