package organization

import (
	"github.com/docuflow/docuflow/internal/organization/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.store",
	fx.Provide(repository.Provide),
)
