package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

type User struct {
	ID                    snowflake.ID `json:"id"`
	Email                 string       `json:"email"`
	PasswordHash          string       `json:"-"`
	Name                  string       `json:"name"`
	MobileNumber          *string      `json:"mobile_number"`
	Country               *string      `json:"country"`
	DefaultCurrency       string       `json:"default_currency"`
	SubscriptionTier      Tier         `json:"subscription_tier"`
	SubscriptionStatus    Status       `json:"subscription_status"`
	SubscriptionExpiresAt *time.Time   `json:"subscription_expires_at"`
	StripeCustomerID      *string      `json:"-"`
	StripeSubscriptionID  *string      `json:"-"`
	EmailVerified         int          `json:"email_verified"`
	EmailVerifiedAt       *time.Time   `json:"email_verified_at"`
	CreatedAt             time.Time    `json:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at"`
}

func (u *User) IsVerified() bool {
	return u != nil && u.EmailVerified == 1
}

// PremiumExpired reports a premium row whose paid period ended before now.
func (u *User) PremiumExpired(now time.Time) bool {
	if u == nil || u.SubscriptionTier != TierPremium || u.SubscriptionExpiresAt == nil {
		return false
	}
	return u.SubscriptionExpiresAt.Before(now)
}

// NeedsProfile reports whether country or currency is still missing.
func (u *User) NeedsProfile() bool {
	return u.Country == nil || *u.Country == "" || u.DefaultCurrency == ""
}

// SubscriptionState is the subset of user columns owned by billing.
// Nil reference fields leave the stored value untouched.
type SubscriptionState struct {
	Tier           Tier
	Status         Status
	ExpiresAt      *time.Time
	CustomerID     *string
	SubscriptionID *string
}
