package billing

import (
	"go.uber.org/fx"

	"github.com/docuflow/docuflow/internal/billing/gateway"
	"github.com/docuflow/docuflow/internal/billing/service"
)

// Module wires the billing provider gateway and the plan transition service.
var Module = fx.Module("billing.service",
	fx.Provide(
		gateway.Provide,
		service.New,
	),
)
