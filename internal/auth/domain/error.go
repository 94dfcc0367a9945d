package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrEmailNotVerified   = errors.New("email_not_verified")
	ErrUnauthorized       = errors.New("unauthorized")

	// ErrEmailRegistered and ErrEmailPendingVerification both reject a
	// duplicate email; the second tells the client to verify instead.
	ErrEmailRegistered          = errors.New("email_registered")
	ErrEmailPendingVerification = errors.New("email_pending_verification")

	ErrInvalidToken = errors.New("invalid_token")
	ErrTokenUsed    = errors.New("token_used")
	ErrTokenExpired = errors.New("token_expired")
)
