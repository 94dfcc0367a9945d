package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// remoteGateway serves a networked PostgreSQL or MySQL database with a tuned pool.
type remoteGateway struct {
	*core
}

func openRemote(cfg Config, gormCfg *gorm.Config) (*remoteGateway, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}
	conn, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Type, err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConn)
	}
	if cfg.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConn)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	lastID := ""
	if cfg.Type == "mysql" {
		lastID = "SELECT LAST_INSERT_ID()"
	}
	return &remoteGateway{core: &core{db: conn, lastIDQuery: lastID}}, nil
}

func (g *remoteGateway) Backend() Backend {
	return BackendRemote
}

func (g *remoteGateway) Transaction(ctx context.Context, fn func(tx Gateway) error) error {
	return g.core.transaction(ctx, func(tx *core) error {
		return fn(&remoteGateway{core: tx})
	})
}

func (g *remoteGateway) Close() error {
	if g.inTx {
		return errCloseInTx
	}
	return g.core.Close()
}
