package migration

import (
	"github.com/smallbiznis/fintrack/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(gw db.Gateway, cfg db.Config, log *zap.Logger) error {
		sqlDB, err := gw.SQLDB()
		if err != nil {
			return err
		}
		dialect := DialectFor(cfg.Type)
		if err := RunMigrations(sqlDB, dialect); err != nil {
			return err
		}
		log.Info("migrations applied", zap.String("dialect", dialect))
		return nil
	}),
)
