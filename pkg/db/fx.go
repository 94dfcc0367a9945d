package db

import (
	"context"

	"github.com/smallbiznis/fintrack/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormprom "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(NewConfig),
	fx.Provide(provideGateway),
)

func provideGateway(lc fx.Lifecycle, cfg Config, log *zap.Logger) (Gateway, error) {
	gormCfg := &gorm.Config{
		Logger:                 logger.NewGormLogger(logger.DefaultGormLoggerConfig(cfg.Debug)),
		SkipDefaultTransaction: true,
	}

	gw, err := Open(cfg, gormCfg)
	if err != nil {
		return nil, err
	}

	if conn := GormDB(gw); conn != nil {
		if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName("fintrack"), otelgorm.WithoutQueryVariables())); err != nil {
			return nil, err
		}
		if err := conn.Use(gormprom.New(gormprom.Config{DBName: "fintrack", RefreshInterval: 15})); err != nil {
			return nil, err
		}
	}

	log.Info("database opened",
		zap.String("backend", string(gw.Backend())),
		zap.String("type", cfg.Type),
	)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			log.Info("closing database")
			return gw.Close()
		},
	})
	return gw, nil
}
