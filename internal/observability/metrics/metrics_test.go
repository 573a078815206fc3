package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/docuflow/docuflow/internal/config"
)

func newTestMetrics() *Metrics {
	return New(prometheus.NewRegistry(), config.Config{
		AppName:     "docuflow",
		Environment: "test",
	})
}

func TestQuotaDenied(t *testing.T) {
	m := newTestMetrics()

	m.QuotaDenied("MONTHLY_LIMIT_REACHED")
	m.QuotaDenied("MONTHLY_LIMIT_REACHED")
	m.QuotaDenied("TRIAL_EXPIRED")

	if got := testutil.ToFloat64(m.quotaDenied.WithLabelValues("MONTHLY_LIMIT_REACHED")); got != 2 {
		t.Fatalf("expected denial count 2, got %v", got)
	}
	if got := testutil.ToFloat64(m.quotaDenied.WithLabelValues("TRIAL_EXPIRED")); got != 1 {
		t.Fatalf("expected denial count 1, got %v", got)
	}
}

func TestUsageRecordedIgnoresNonPositive(t *testing.T) {
	m := newTestMetrics()

	m.UsageRecorded(3)
	m.UsageRecorded(0)
	m.UsageRecorded(-5)

	if got := testutil.ToFloat64(m.usageRecorded); got != 3 {
		t.Fatalf("expected recorded count 3, got %v", got)
	}
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *Metrics

	m.QuotaDenied("SUBSCRIPTION_INACTIVE")
	m.UsageRecorded(1)
	m.PlanTransition(ProviderOpUpgrade, "ok")
	m.ProviderError(ProviderOpCheckout)
	m.ObserveRequest("POST", "/v1/usage/assert", "2xx", time.Millisecond)
}
