package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fintrack/pkg/db"
)

type Repository interface {
	InsertToken(ctx context.Context, gw db.Gateway, kind TokenKind, token *OneTimeToken) error
	FindToken(ctx context.Context, gw db.Gateway, kind TokenKind, hash string) (*OneTimeToken, error)
	MarkTokenUsed(ctx context.Context, gw db.Gateway, kind TokenKind, id snowflake.ID) error
	// InvalidateTokens marks every open token of the user as used.
	InvalidateTokens(ctx context.Context, gw db.Gateway, kind TokenKind, userID snowflake.ID) error
	DeleteExpiredTokens(ctx context.Context, gw db.Gateway, kind TokenKind, before time.Time) (int64, error)
}
