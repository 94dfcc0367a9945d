package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/smallbiznis/fintrack/internal/user/domain"
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error)
	VerifyEmail(ctx context.Context, rawToken string) (*userdomain.User, error)
	ResendVerification(ctx context.Context, email string) (*ResendResult, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	// GoogleSignIn logs in the owner of a Google ID token, creating a verified
	// account on first use.
	GoogleSignIn(ctx context.Context, credential string) (*GoogleSignInResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, rawToken, password string) error
	CompleteProfile(ctx context.Context, userID snowflake.ID, req ProfileRequest) (*userdomain.User, error)
	Me(ctx context.Context, userID snowflake.ID) (*userdomain.User, error)
	// Authenticate validates a bearer token and returns its subject.
	Authenticate(ctx context.Context, rawToken string) (snowflake.ID, error)
}
