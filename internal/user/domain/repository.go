package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fintrack/pkg/db"
)

type Repository interface {
	Insert(ctx context.Context, gw db.Gateway, user *User) error
	FindByID(ctx context.Context, gw db.Gateway, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, gw db.Gateway, email string) (*User, error)
	FindByStripeCustomerID(ctx context.Context, gw db.Gateway, customerID string) (*User, error)
	UpdateProfile(ctx context.Context, gw db.Gateway, id snowflake.ID, country, currency string, now time.Time) error
	MarkEmailVerified(ctx context.Context, gw db.Gateway, id snowflake.ID, now time.Time) error
	UpdateName(ctx context.Context, gw db.Gateway, id snowflake.ID, name string, now time.Time) error
	UpdatePassword(ctx context.Context, gw db.Gateway, id snowflake.ID, hash string, now time.Time) error
	ApplySubscription(ctx context.Context, gw db.Gateway, id snowflake.ID, state SubscriptionState, now time.Time) (bool, error)
	// DowngradeExpired demotes a premium row to free/expired. It reports false
	// when the row was already demoted.
	DowngradeExpired(ctx context.Context, gw db.Gateway, id snowflake.ID, now time.Time) (bool, error)
	ListPremiumWithExpiry(ctx context.Context, gw db.Gateway) ([]User, error)
}

var ErrNotFound = errors.New("user_not_found")
