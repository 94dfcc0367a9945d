package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fintrack/internal/user/domain"
	"github.com/smallbiznis/fintrack/pkg/db"
)

const userColumns = `id, email, password_hash, name, mobile_number, country, default_currency,
	subscription_tier, subscription_status, subscription_expires_at,
	stripe_customer_id, stripe_subscription_id, email_verified, email_verified_at,
	created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, gw db.Gateway, user *domain.User) error {
	_, err := gw.Run(ctx,
		`INSERT INTO users (id, email, password_hash, name, mobile_number, country, default_currency,
			subscription_tier, subscription_status, email_verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.MobileNumber,
		user.Country,
		user.DefaultCurrency,
		user.SubscriptionTier,
		user.SubscriptionStatus,
		user.EmailVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return err
}

func (r *repo) FindByID(ctx context.Context, gw db.Gateway, id snowflake.ID) (*domain.User, error) {
	return r.findOne(ctx, gw, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *repo) FindByEmail(ctx context.Context, gw db.Gateway, email string) (*domain.User, error) {
	return r.findOne(ctx, gw, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *repo) FindByStripeCustomerID(ctx context.Context, gw db.Gateway, customerID string) (*domain.User, error) {
	return r.findOne(ctx, gw, `SELECT `+userColumns+` FROM users WHERE stripe_customer_id = ?`, customerID)
}

func (r *repo) findOne(ctx context.Context, gw db.Gateway, query string, args ...any) (*domain.User, error) {
	var user domain.User
	found, err := gw.Get(ctx, &user, query, args...)
	if err != nil {
		return nil, err
	}
	if !found || user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) UpdateProfile(ctx context.Context, gw db.Gateway, id snowflake.ID, country, currency string, now time.Time) error {
	_, err := gw.Run(ctx,
		`UPDATE users SET country = ?, default_currency = ?, updated_at = ? WHERE id = ?`,
		country, currency, now, id,
	)
	return err
}

func (r *repo) MarkEmailVerified(ctx context.Context, gw db.Gateway, id snowflake.ID, now time.Time) error {
	_, err := gw.Run(ctx,
		`UPDATE users SET email_verified = 1, email_verified_at = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	)
	return err
}

func (r *repo) UpdateName(ctx context.Context, gw db.Gateway, id snowflake.ID, name string, now time.Time) error {
	_, err := gw.Run(ctx,
		`UPDATE users SET name = ?, updated_at = ? WHERE id = ?`,
		name, now, id,
	)
	return err
}

func (r *repo) UpdatePassword(ctx context.Context, gw db.Gateway, id snowflake.ID, hash string, now time.Time) error {
	_, err := gw.Run(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, now, id,
	)
	return err
}

func (r *repo) ApplySubscription(ctx context.Context, gw db.Gateway, id snowflake.ID, state domain.SubscriptionState, now time.Time) (bool, error) {
	res, err := gw.Run(ctx,
		`UPDATE users SET
			subscription_tier = ?,
			subscription_status = ?,
			subscription_expires_at = ?,
			stripe_customer_id = COALESCE(?, stripe_customer_id),
			stripe_subscription_id = COALESCE(?, stripe_subscription_id),
			updated_at = ?
		 WHERE id = ?`,
		state.Tier,
		state.Status,
		state.ExpiresAt,
		state.CustomerID,
		state.SubscriptionID,
		now,
		id,
	)
	if err != nil {
		return false, err
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) DowngradeExpired(ctx context.Context, gw db.Gateway, id snowflake.ID, now time.Time) (bool, error) {
	res, err := gw.Run(ctx,
		`UPDATE users SET subscription_tier = ?, subscription_status = ?, updated_at = ?
		 WHERE id = ? AND subscription_tier = ?
		   AND subscription_expires_at IS NOT NULL AND subscription_expires_at < ?`,
		domain.TierFree, domain.StatusExpired, now, id, domain.TierPremium, now,
	)
	if err != nil {
		return false, err
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListPremiumWithExpiry(ctx context.Context, gw db.Gateway) ([]domain.User, error) {
	users := make([]domain.User, 0)
	err := gw.Query(ctx, &users,
		`SELECT `+userColumns+` FROM users
		 WHERE subscription_tier = ? AND subscription_expires_at IS NOT NULL`,
		domain.TierPremium,
	)
	return users, err
}
