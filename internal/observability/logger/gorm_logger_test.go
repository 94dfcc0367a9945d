package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationFromSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT COUNT(*) FROM expenses":                  "SELECT",
		"  update users set subscription_tier = ?":       "UPDATE",
		"WITH totals AS (SELECT 1) SELECT * FROM totals": "SELECT",
		"(DELETE FROM expenses WHERE id = ?)":            "DELETE",
		"PRAGMA foreign_keys = ON":                       "UNKNOWN",
		"":                                               "UNKNOWN",
	}
	for sql, want := range cases {
		assert.Equal(t, want, operationFromSQL(sql), sql)
	}
}

func TestParamsFilterDropsValuesByDefault(t *testing.T) {
	l := NewGormLogger(DefaultGormLoggerConfig(false))
	sql, params := l.ParamsFilter(context.Background(), "SELECT ?", "secret@example.com")
	assert.Equal(t, "SELECT ?", sql)
	assert.Nil(t, params)

	l = NewGormLogger(GormLoggerConfig{LogParams: true})
	_, params = l.ParamsFilter(context.Background(), "SELECT ?", "x")
	assert.Equal(t, []interface{}{"x"}, params)
}
