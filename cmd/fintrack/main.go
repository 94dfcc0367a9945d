package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/fintrack/internal/clock"
	"github.com/smallbiznis/fintrack/internal/config"
	"github.com/smallbiznis/fintrack/internal/migration"
	"github.com/smallbiznis/fintrack/internal/observability"
	"github.com/smallbiznis/fintrack/internal/scheduler"
	"github.com/smallbiznis/fintrack/internal/server"
	"github.com/smallbiznis/fintrack/pkg/db"
	"go.uber.org/fx"
)

func main() {
	// Amounts go out as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,

		// HTTP server and the domain modules it serves
		server.Module,

		// Background jobs
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
