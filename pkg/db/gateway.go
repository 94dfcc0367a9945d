package db

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"
)

// Result reports the effect of a write statement.
type Result struct {
	LastInsertID int64
	RowsAffected int64
}

// Gateway is the uniform persistence interface shared by every backend.
// Statements use ? placeholders; the backend rewrites them when needed.
type Gateway interface {
	// Query scans all rows into dest, which must point to a slice.
	Query(ctx context.Context, dest any, query string, args ...any) error
	// Get scans the first row into dest and reports whether a row existed.
	Get(ctx context.Context, dest any, query string, args ...any) (bool, error)
	// Run executes a write statement.
	Run(ctx context.Context, query string, args ...any) (Result, error)
	// Transaction runs fn against a gateway bound to one transaction.
	Transaction(ctx context.Context, fn func(tx Gateway) error) error
	Backend() Backend
	SQLDB() (*sql.DB, error)
	Close() error
}

// core holds the statement plumbing both backends share. lastIDQuery reads
// the id generated by the previous INSERT on the same connection; empty when
// the backend has no such function.
type core struct {
	db          *gorm.DB
	lastIDQuery string
	inTx        bool
}

func (c *core) Query(ctx context.Context, dest any, query string, args ...any) error {
	return c.db.WithContext(ctx).Raw(query, args...).Scan(dest).Error
}

func (c *core) Get(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	tx := c.db.WithContext(ctx).Raw(query, args...).Scan(dest)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (c *core) Run(ctx context.Context, query string, args ...any) (Result, error) {
	if c.inTx {
		return c.exec(c.db.WithContext(ctx), query, args)
	}

	var res Result
	err := c.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		var err error
		res, err = c.exec(conn, query, args)
		return err
	})
	return res, err
}

func (c *core) exec(conn *gorm.DB, query string, args []any) (Result, error) {
	tx := conn.Exec(query, args...)
	if tx.Error != nil {
		return Result{}, tx.Error
	}
	res := Result{RowsAffected: tx.RowsAffected}
	if c.lastIDQuery == "" || tx.RowsAffected == 0 || operationOf(query) != "INSERT" {
		return res, nil
	}
	if err := conn.Raw(c.lastIDQuery).Scan(&res.LastInsertID).Error; err != nil {
		return Result{}, err
	}
	return res, nil
}

func (c *core) transaction(ctx context.Context, fn func(tx *core) error) error {
	if c.inTx {
		return fn(c)
	}
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&core{db: tx, lastIDQuery: c.lastIDQuery, inTx: true})
	})
}

func (c *core) SQLDB() (*sql.DB, error) {
	return c.db.DB()
}

func (c *core) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB exposes the underlying gorm handle for plugins and migrations.
func (c *core) DB() *gorm.DB {
	return c.db
}
