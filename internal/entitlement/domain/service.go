package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/smallbiznis/fintrack/internal/user/domain"
	"github.com/smallbiznis/fintrack/pkg/db"
)

type Repository interface {
	// Count returns the rows of table owned by userID, bounded by window when set.
	Count(ctx context.Context, gw db.Gateway, table string, userID snowflake.ID, window *DateWindow) (int64, error)
}

type Service interface {
	HasFeature(user *userdomain.User, feature Feature) bool
	CheckLimit(ctx context.Context, userID snowflake.ID, resource Resource) (Result, error)
	// RequireLimit is CheckLimit that turns a full quota into ErrLimitReached.
	RequireLimit(ctx context.Context, userID snowflake.ID, resource Resource) (Result, error)
	RequireTier(ctx context.Context, userID snowflake.ID, tier userdomain.Tier) error
	RequireFeature(ctx context.Context, userID snowflake.ID, feature Feature) error
	Usage(ctx context.Context, userID snowflake.ID) (Usage, error)
	// ExpireOverdue demotes every premium row past its expiry and returns how many changed.
	ExpireOverdue(ctx context.Context) (int64, error)
}
