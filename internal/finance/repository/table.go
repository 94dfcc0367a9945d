package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fintrack/internal/finance/domain"
	"github.com/smallbiznis/fintrack/pkg/db"
)

// table maps one resource type onto its SQL. The main table is aliased t so
// selects can join display columns from related tables.
type table[T any, P interface {
	*T
	domain.Record
}] struct {
	name    string
	columns []string
	values  func(P) []any
	// selectFrom replaces the default "SELECT t.* FROM name t".
	selectFrom string
	filter     func(domain.Filter) (string, []any)
	orderBy    string
}

func (tb *table[T, P]) base() string {
	if tb.selectFrom != "" {
		return tb.selectFrom
	}
	return `SELECT t.* FROM ` + tb.name + ` t`
}

func (tb *table[T, P]) List(ctx context.Context, gw db.Gateway, userID snowflake.ID, filter domain.Filter) ([]T, error) {
	query := tb.base() + ` WHERE t.user_id = ?`
	args := []any{userID}
	if tb.filter != nil {
		clause, extra := tb.filter(filter)
		query += clause
		args = append(args, extra...)
	}
	order := tb.orderBy
	if order == "" {
		order = `t.created_at DESC, t.id DESC`
	}
	query += ` ORDER BY ` + order

	rows := make([]T, 0)
	if err := gw.Query(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (tb *table[T, P]) Get(ctx context.Context, gw db.Gateway, userID, id snowflake.ID) (*T, error) {
	var rec T
	found, err := gw.Get(ctx, &rec, tb.base()+` WHERE t.user_id = ? AND t.id = ?`, userID, id)
	if err != nil {
		return nil, err
	}
	if !found || P(&rec).Meta().ID == 0 {
		return nil, nil
	}
	return &rec, nil
}

func (tb *table[T, P]) Insert(ctx context.Context, gw db.Gateway, rec *T) error {
	meta := P(rec).Meta()
	cols := append([]string{"id", "user_id"}, tb.columns...)
	cols = append(cols, "created_at", "updated_at")

	args := make([]any, 0, len(cols))
	args = append(args, meta.ID, meta.UserID)
	args = append(args, tb.values(P(rec))...)
	args = append(args, meta.CreatedAt, meta.UpdatedAt)

	_, err := gw.Run(ctx,
		`INSERT INTO `+tb.name+` (`+strings.Join(cols, ", ")+`) VALUES (`+placeholders(len(cols))+`)`,
		args...,
	)
	return err
}

func (tb *table[T, P]) Update(ctx context.Context, gw db.Gateway, rec *T) (bool, error) {
	meta := P(rec).Meta()
	sets := make([]string, 0, len(tb.columns)+1)
	for _, c := range tb.columns {
		sets = append(sets, c+` = ?`)
	}
	sets = append(sets, `updated_at = ?`)

	args := append(tb.values(P(rec)), meta.UpdatedAt, meta.ID, meta.UserID)
	res, err := gw.Run(ctx,
		`UPDATE `+tb.name+` SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`,
		args...,
	)
	if err != nil {
		return false, err
	}
	return res.RowsAffected > 0, nil
}

func (tb *table[T, P]) Delete(ctx context.Context, gw db.Gateway, userID, id snowflake.ID) (bool, error) {
	res, err := gw.Run(ctx, `DELETE FROM `+tb.name+` WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, err
	}
	return res.RowsAffected > 0, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// dateRange filters on a business date column by month/year or from/to.
func dateRange(column string, f domain.Filter) (string, []any) {
	from, to := f.From, f.To
	if f.Month >= 1 && f.Month <= 12 && f.Year > 0 {
		first := time.Date(f.Year, time.Month(f.Month), 1, 0, 0, 0, 0, time.UTC)
		from = first.Format(domain.DateLayout)
		to = first.AddDate(0, 1, -1).Format(domain.DateLayout)
	}

	var clause string
	var args []any
	if from != "" {
		clause += ` AND ` + column + ` >= ?`
		args = append(args, from)
	}
	if to != "" {
		clause += ` AND ` + column + ` <= ?`
		args = append(args, to)
	}
	return clause, args
}
