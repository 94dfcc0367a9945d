package migration_test

import (
	"context"
	"testing"

	"github.com/smallbiznis/fintrack/internal/migration"
	"github.com/smallbiznis/fintrack/pkg/db/dbtest"
)

func TestRunMigrationsIsIdempotent(t *testing.T) {
	gw := dbtest.Open(t)

	sqlDB, err := gw.SQLDB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	if err := migration.RunMigrations(sqlDB, migration.DialectSQLite); err != nil {
		t.Fatalf("second run: %v", err)
	}

	var tables []struct{ Name string }
	if err := gw.Query(context.Background(), &tables, `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`); err != nil {
		t.Fatalf("list tables: %v", err)
	}
	got := map[string]bool{}
	for _, table := range tables {
		got[table.Name] = true
	}
	for _, want := range []string{
		"users", "email_verifications", "password_resets", "bank_accounts", "credit_cards",
		"debit_cards", "expenses", "income", "savings", "installments", "loans",
		"financial_goals", "bill_reminders", "stocks", "budgets", "recurring_transactions",
		"billing_events",
	} {
		if !got[want] {
			t.Fatalf("expected table %s to exist", want)
		}
	}
}

func TestEveryDialectHasMigrations(t *testing.T) {
	for _, dialect := range []string{migration.DialectSQLite, migration.DialectPostgres, migration.DialectMySQL} {
		src, err := migration.Source(dialect)
		if err != nil {
			t.Fatalf("%s: %v", dialect, err)
		}
		first, err := src.First()
		if err != nil {
			t.Fatalf("%s first: %v", dialect, err)
		}
		if first != 1 {
			t.Fatalf("%s: expected first version 1, got %d", dialect, first)
		}
	}
}

func TestDialectFor(t *testing.T) {
	cases := map[string]string{
		"postgres": migration.DialectPostgres,
		"mysql":    migration.DialectMySQL,
		"sqlite":   migration.DialectSQLite,
		"":         migration.DialectSQLite,
	}
	for in, want := range cases {
		if got := migration.DialectFor(in); got != want {
			t.Fatalf("DialectFor(%q) = %q, want %q", in, got, want)
		}
	}
}
