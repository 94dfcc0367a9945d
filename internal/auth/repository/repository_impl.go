package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fintrack/internal/auth/domain"
	"github.com/smallbiznis/fintrack/pkg/db"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func table(kind domain.TokenKind) (string, error) {
	switch kind {
	case domain.TokenEmailVerification, domain.TokenPasswordReset:
		return string(kind), nil
	default:
		return "", fmt.Errorf("unknown token kind %q", kind)
	}
}

func (r *repo) InsertToken(ctx context.Context, gw db.Gateway, kind domain.TokenKind, token *domain.OneTimeToken) error {
	tbl, err := table(kind)
	if err != nil {
		return err
	}
	_, err = gw.Run(ctx,
		`INSERT INTO `+tbl+` (id, user_id, email, token_hash, expires_at, used, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		token.ID,
		token.UserID,
		token.Email,
		token.TokenHash,
		token.ExpiresAt,
		token.Used,
		token.CreatedAt,
	)
	return err
}

func (r *repo) FindToken(ctx context.Context, gw db.Gateway, kind domain.TokenKind, hash string) (*domain.OneTimeToken, error) {
	tbl, err := table(kind)
	if err != nil {
		return nil, err
	}
	var token domain.OneTimeToken
	found, err := gw.Get(ctx, &token,
		`SELECT id, user_id, email, token_hash, expires_at, used, created_at
		 FROM `+tbl+` WHERE token_hash = ?`,
		hash,
	)
	if err != nil {
		return nil, err
	}
	if !found || token.ID == 0 {
		return nil, nil
	}
	return &token, nil
}

func (r *repo) MarkTokenUsed(ctx context.Context, gw db.Gateway, kind domain.TokenKind, id snowflake.ID) error {
	tbl, err := table(kind)
	if err != nil {
		return err
	}
	_, err = gw.Run(ctx, `UPDATE `+tbl+` SET used = 1 WHERE id = ?`, id)
	return err
}

func (r *repo) InvalidateTokens(ctx context.Context, gw db.Gateway, kind domain.TokenKind, userID snowflake.ID) error {
	tbl, err := table(kind)
	if err != nil {
		return err
	}
	_, err = gw.Run(ctx, `UPDATE `+tbl+` SET used = 1 WHERE user_id = ? AND used = 0`, userID)
	return err
}

func (r *repo) DeleteExpiredTokens(ctx context.Context, gw db.Gateway, kind domain.TokenKind, before time.Time) (int64, error) {
	tbl, err := table(kind)
	if err != nil {
		return 0, err
	}
	res, err := gw.Run(ctx, `DELETE FROM `+tbl+` WHERE expires_at < ?`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}
