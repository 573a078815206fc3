package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/docuflow/docuflow/internal/config"
)

const (
	ProviderOpCreateCustomer = "create_customer"
	ProviderOpCheckout       = "checkout_session"
	ProviderOpUpgrade        = "upgrade"
	ProviderOpDowngrade      = "schedule_downgrade"
	ProviderOpCancel         = "cancel"
	ProviderOpReactivate     = "reactivate"
	ProviderOpPreview        = "invoice_preview"
	ProviderOpSummary        = "summary"
)

// Metrics captures billing and quota health signals.
type Metrics struct {
	quotaDenied     *prometheus.CounterVec
	usageRecorded   prometheus.Counter
	planTransitions *prometheus.CounterVec
	providerErrors  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers the application instruments on the given registerer.
func New(registerer prometheus.Registerer, cfg config.Config) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "docuflow"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	quotaDenied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "docuflow_quota_denied_total",
		Help:        "Document processing requests denied by quota, by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	usageRecorded := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "docuflow_usage_recorded_total",
		Help:        "Documents counted against monthly quotas.",
		ConstLabels: constLabels,
	})
	planTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "docuflow_plan_transitions_total",
		Help:        "Subscription lifecycle operations by kind and outcome.",
		ConstLabels: constLabels,
	}, []string{"operation", "outcome"})
	providerErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "docuflow_provider_errors_total",
		Help:        "Billing provider call failures by operation.",
		ConstLabels: constLabels,
	}, []string{"operation"})
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "docuflow_http_request_duration_seconds",
		Help:        "HTTP request latency by route and status.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	}, []string{"method", "route", "status"})

	registerer.MustRegister(
		quotaDenied,
		usageRecorded,
		planTransitions,
		providerErrors,
		requestDuration,
	)

	return &Metrics{
		quotaDenied:     quotaDenied,
		usageRecorded:   usageRecorded,
		planTransitions: planTransitions,
		providerErrors:  providerErrors,
		requestDuration: requestDuration,
	}
}

// QuotaDenied increments the quota denial counter for a reason.
func (m *Metrics) QuotaDenied(reason string) {
	if m == nil || m.quotaDenied == nil {
		return
	}
	m.quotaDenied.WithLabelValues(reason).Inc()
}

// UsageRecorded adds processed document counts.
func (m *Metrics) UsageRecorded(count int64) {
	if m == nil || m.usageRecorded == nil || count <= 0 {
		return
	}
	m.usageRecorded.Add(float64(count))
}

// PlanTransition increments the lifecycle counter for an operation outcome.
func (m *Metrics) PlanTransition(operation, outcome string) {
	if m == nil || m.planTransitions == nil {
		return
	}
	m.planTransitions.WithLabelValues(operation, outcome).Inc()
}

// ProviderError increments the provider failure counter for an operation.
func (m *Metrics) ProviderError(operation string) {
	if m == nil || m.providerErrors == nil {
		return
	}
	m.providerErrors.WithLabelValues(operation).Inc()
}

// ObserveRequest records HTTP request latency.
func (m *Metrics) ObserveRequest(method, route, status string, duration time.Duration) {
	if m == nil || m.requestDuration == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}
