package migration

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/docuflow/docuflow/internal/config"
	"github.com/docuflow/docuflow/internal/seed"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, node *snowflake.Node, cfg config.Config) error {
		if err := Run(conn); err != nil {
			return err
		}
		return seed.EnsureDefaultOrg(conn, node, cfg)
	}),
)
