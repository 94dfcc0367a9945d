package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/smallbiznis/fintrack/internal/user/domain"
)

// TokenKind selects the table a one-time token lives in.
type TokenKind string

const (
	TokenEmailVerification TokenKind = "email_verifications"
	TokenPasswordReset     TokenKind = "password_resets"
)

const (
	VerificationTTL = 24 * time.Hour
	ResetTTL        = time.Hour
	MinPasswordLen  = 8
)

// OneTimeToken is a stored verification or reset token. Only the SHA-256 of
// the raw token is persisted.
type OneTimeToken struct {
	ID        snowflake.ID
	UserID    snowflake.ID
	Email     string
	TokenHash string
	ExpiresAt time.Time
	Used      int
	CreatedAt time.Time
}

func (t *OneTimeToken) IsUsed() bool {
	return t.Used == 1
}

type RegisterRequest struct {
	Email           string  `json:"email"`
	Password        string  `json:"password"`
	Name            string  `json:"name"`
	MobileNumber    *string `json:"mobile_number"`
	Country         string  `json:"country"`
	DefaultCurrency string  `json:"default_currency"`
}

type RegisterResult struct {
	User                  *userdomain.User `json:"user"`
	VerificationEmailSent bool             `json:"verification_email_sent"`
	RequiresVerification  bool             `json:"requires_verification"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	User      *userdomain.User `json:"user"`
}

type GoogleSignInResult struct {
	Token                  string           `json:"token"`
	ExpiresAt              time.Time        `json:"expires_at"`
	User                   *userdomain.User `json:"user"`
	Created                bool             `json:"created"`
	NeedsProfileCompletion bool             `json:"needs_profile_completion"`
}

type ResendResult struct {
	AlreadyVerified bool `json:"already_verified"`
	EmailSent       bool `json:"email_sent"`
}

type ProfileRequest struct {
	Country         string `json:"country"`
	DefaultCurrency string `json:"default_currency"`
}
