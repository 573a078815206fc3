package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/docuflow/docuflow/internal/config"
	"github.com/docuflow/docuflow/internal/observability/metrics"
)

// Module wires the prometheus instruments into the application graph.
var Module = fx.Module("observability",
	fx.Provide(func(cfg config.Config) *metrics.Metrics {
		return metrics.New(prometheus.DefaultRegisterer, cfg)
	}),
)
