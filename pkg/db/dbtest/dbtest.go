// Package dbtest opens migrated in-memory gateways for package tests.
package dbtest

import (
	"strings"
	"testing"

	"github.com/smallbiznis/fintrack/internal/migration"
	"github.com/smallbiznis/fintrack/pkg/db"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open returns an embedded gateway backed by a private in-memory database
// with the full schema applied. It is closed when the test ends.
func Open(t testing.TB) db.Gateway {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	gw, err := db.Open(db.Config{
		Type: "sqlite",
		Path: name + "?mode=memory&cache=shared",
	}, &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = gw.Close() })

	sqlDB, err := gw.SQLDB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	if err := migration.RunMigrations(sqlDB, migration.DialectSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gw
}
