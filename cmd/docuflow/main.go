package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/docuflow/docuflow/internal/clock"
	"github.com/docuflow/docuflow/internal/config"
	"github.com/docuflow/docuflow/internal/logger"
	"github.com/docuflow/docuflow/internal/migration"
	"github.com/docuflow/docuflow/internal/observability"
	"github.com/docuflow/docuflow/internal/server"
	"github.com/docuflow/docuflow/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
