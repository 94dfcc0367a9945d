package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var errCloseInTx = errors.New("db: close called inside a transaction")

// embeddedGateway serves a single-file SQLite database. SQLite allows one
// writer, so the pool is pinned to a single connection.
type embeddedGateway struct {
	*core
}

func openEmbedded(cfg Config, gormCfg *gorm.Config) (*embeddedGateway, error) {
	dialector, err := Dialect(Config{Type: "sqlite", Path: cfg.Path})
	if err != nil {
		return nil, err
	}
	conn, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open embedded database: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := conn.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &embeddedGateway{core: &core{db: conn, lastIDQuery: "SELECT last_insert_rowid()"}}, nil
}

func (g *embeddedGateway) Backend() Backend {
	return BackendEmbedded
}

func (g *embeddedGateway) Transaction(ctx context.Context, fn func(tx Gateway) error) error {
	return g.core.transaction(ctx, func(tx *core) error {
		return fn(&embeddedGateway{core: tx})
	})
}

func (g *embeddedGateway) Close() error {
	if g.inTx {
		return errCloseInTx
	}
	return g.core.Close()
}
