package repository

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fintrack/internal/entitlement/domain"
	"github.com/smallbiznis/fintrack/pkg/db"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Count expects table to come from the resource table, never from input.
func (r *repo) Count(ctx context.Context, gw db.Gateway, table string, userID snowflake.ID, window *domain.DateWindow) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) AS count FROM %s WHERE user_id = ?`, table)
	args := []any{userID}
	if window != nil {
		query += ` AND date >= ? AND date <= ?`
		args = append(args, window.From, window.To)
	}

	row := map[string]any{}
	if _, err := gw.Get(ctx, &row, query, args...); err != nil {
		return 0, err
	}
	return db.ToInt64(row["count"])
}
