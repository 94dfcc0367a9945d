package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fintrack/internal/auth/domain"
	"github.com/smallbiznis/fintrack/internal/auth/oauth"
	"github.com/smallbiznis/fintrack/internal/auth/password"
	"github.com/smallbiznis/fintrack/internal/auth/token"
	"github.com/smallbiznis/fintrack/internal/clock"
	"github.com/smallbiznis/fintrack/internal/config"
	"github.com/smallbiznis/fintrack/internal/providers/email"
	userdomain "github.com/smallbiznis/fintrack/internal/user/domain"
	"github.com/smallbiznis/fintrack/internal/validation"
	"github.com/smallbiznis/fintrack/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type Params struct {
	fx.In

	Config    config.Config
	DB        db.Gateway
	Log       *zap.Logger
	Clock     clock.Clock
	GenID     *snowflake.Node
	Users     userdomain.Repository
	Repo      domain.Repository
	Tokens    *token.Issuer
	Google    oauth.Verifier `optional:"true"`
	Mailer    email.Sender
	Templates *email.Templates
}

type Service struct {
	db        db.Gateway
	log       *zap.Logger
	clock     clock.Clock
	genID     *snowflake.Node
	users     userdomain.Repository
	repo      domain.Repository
	tokens    *token.Issuer
	google    oauth.Verifier
	mailer    email.Sender
	templates *email.Templates

	appName     string
	frontendURL string
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("auth.service"),
		clock:       p.Clock,
		genID:       p.GenID,
		users:       p.Users,
		repo:        p.Repo,
		tokens:      p.Tokens,
		google:      p.Google,
		mailer:      p.Mailer,
		templates:   p.Templates,
		appName:     p.Config.AppName,
		frontendURL: p.Config.FrontendURL,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.RegisterResult, error) {
	if err := validation.Missing(
		validation.Require("email", req.Email),
		validation.Require("password", req.Password),
		validation.Require("name", req.Name),
		validation.Require("country", req.Country),
		validation.Require("default_currency", req.DefaultCurrency),
	); err != nil {
		return nil, err
	}

	address, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if err := checkPassword(req.Password); err != nil {
		return nil, err
	}

	existing, err := s.users.FindByEmail(ctx, s.db, address)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, duplicateEmail(existing)
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	country := strings.TrimSpace(req.Country)
	user := &userdomain.User{
		ID:                 s.genID.Generate(),
		Email:              address,
		PasswordHash:       hash,
		Name:               strings.TrimSpace(req.Name),
		MobileNumber:       trimmed(req.MobileNumber),
		Country:            &country,
		DefaultCurrency:    strings.ToUpper(strings.TrimSpace(req.DefaultCurrency)),
		SubscriptionTier:   userdomain.TierFree,
		SubscriptionStatus: userdomain.StatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	var raw string
	var expiresAt time.Time
	err = s.db.Transaction(ctx, func(tx db.Gateway) error {
		if err := s.users.Insert(ctx, tx, user); err != nil {
			return err
		}
		raw, expiresAt, err = s.issueToken(ctx, tx, domain.TokenEmailVerification, user, now)
		return err
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrEmailPendingVerification
		}
		return nil, err
	}

	s.log.Info("user registered", zap.String("user_id", user.ID.String()))

	result := email.Wait(ctx, s.sendTokenEmail(ctx, email.TemplateVerification, user, "/verify-email", raw, expiresAt))
	return &domain.RegisterResult{
		User:                  user,
		VerificationEmailSent: result.Sent,
		RequiresVerification:  true,
	}, nil
}

func (s *Service) VerifyEmail(ctx context.Context, rawToken string) (*userdomain.User, error) {
	if err := validation.Missing(validation.Require("token", rawToken)); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	record, err := s.consumeToken(ctx, domain.TokenEmailVerification, rawToken, now)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(ctx, func(tx db.Gateway) error {
		if err := s.users.MarkEmailVerified(ctx, tx, record.UserID, now); err != nil {
			return err
		}
		return s.repo.MarkTokenUsed(ctx, tx, domain.TokenEmailVerification, record.ID)
	})
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, s.db, record.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrNotFound
	}

	if msg, err := s.templates.Render(email.TemplateWelcome, user.Email, email.TemplateData{
		AppName: s.appName,
		Name:    user.Name,
		Link:    s.frontendURL + "/dashboard",
	}); err == nil {
		s.mailer.Send(ctx, msg)
	}
	return user, nil
}

func (s *Service) ResendVerification(ctx context.Context, address string) (*domain.ResendResult, error) {
	if err := validation.Missing(validation.Require("email", address)); err != nil {
		return nil, err
	}
	address = strings.ToLower(strings.TrimSpace(address))

	user, err := s.users.FindByEmail(ctx, s.db, address)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return &domain.ResendResult{}, nil
	}
	if user.IsVerified() {
		return &domain.ResendResult{AlreadyVerified: true}, nil
	}

	sent, err := s.resendVerification(ctx, user)
	if err != nil {
		return nil, err
	}
	return &domain.ResendResult{EmailSent: email.Wait(ctx, sent).Sent}, nil
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	if err := validation.Missing(
		validation.Require("email", req.Email),
		validation.Require("password", req.Password),
	); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, s.db, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, err
	}
	if user == nil || !password.Verify(req.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	if !user.IsVerified() {
		if _, err := s.resendVerification(ctx, user); err != nil {
			s.log.Warn("failed to reissue verification token", zap.String("user_id", user.ID.String()), zap.Error(err))
		}
		return nil, domain.ErrEmailNotVerified
	}

	signed, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &domain.LoginResult{Token: signed, ExpiresAt: expiresAt, User: user}, nil
}

func (s *Service) GoogleSignIn(ctx context.Context, credential string) (*domain.GoogleSignInResult, error) {
	if err := validation.Missing(validation.Require("credential", credential)); err != nil {
		return nil, err
	}
	if s.google == nil {
		return nil, oauth.ErrNotConfigured
	}

	identity, err := s.google.Verify(ctx, credential)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, s.db, identity.Email)
	if err != nil {
		return nil, err
	}

	created := false
	if user == nil {
		if user, err = s.createGoogleUser(ctx, identity); err != nil {
			return nil, err
		}
		created = true
	} else if err := s.syncGoogleUser(ctx, user, identity); err != nil {
		return nil, err
	}

	signed, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &domain.GoogleSignInResult{
		Token:                  signed,
		ExpiresAt:              expiresAt,
		User:                   user,
		Created:                created,
		NeedsProfileCompletion: user.NeedsProfile(),
	}, nil
}

// createGoogleUser stores a verified account with an unusable random
// password; the owner can set one through the reset flow.
func (s *Service) createGoogleUser(ctx context.Context, identity oauth.Identity) (*userdomain.User, error) {
	secret, err := token.NewOpaque()
	if err != nil {
		return nil, err
	}
	hash, err := password.Hash(secret)
	if err != nil {
		return nil, err
	}

	name := identity.DisplayName
	if name == "" {
		name = "User"
	}
	now := s.clock.Now()
	user := &userdomain.User{
		ID:                 s.genID.Generate(),
		Email:              identity.Email,
		PasswordHash:       hash,
		Name:               name,
		DefaultCurrency:    "USD",
		SubscriptionTier:   userdomain.TierFree,
		SubscriptionStatus: userdomain.StatusActive,
		EmailVerified:      1,
		EmailVerifiedAt:    &now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	err = s.db.Transaction(ctx, func(tx db.Gateway) error {
		if err := s.users.Insert(ctx, tx, user); err != nil {
			return err
		}
		return s.users.MarkEmailVerified(ctx, tx, user.ID, now)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrEmailRegistered
		}
		return nil, err
	}

	s.log.Info("user registered with google", zap.String("user_id", user.ID.String()))
	if msg, err := s.templates.Render(email.TemplateWelcome, user.Email, email.TemplateData{
		AppName: s.appName,
		Name:    user.Name,
		Link:    s.frontendURL + "/dashboard",
	}); err == nil {
		s.mailer.Send(ctx, msg)
	}
	return user, nil
}

// syncGoogleUser refreshes the display name and marks the address verified,
// since Google has already confirmed it.
func (s *Service) syncGoogleUser(ctx context.Context, user *userdomain.User, identity oauth.Identity) error {
	now := s.clock.Now()
	if identity.DisplayName != "" && identity.DisplayName != user.Name {
		if err := s.users.UpdateName(ctx, s.db, user.ID, identity.DisplayName, now); err != nil {
			return err
		}
		user.Name = identity.DisplayName
	}
	if !user.IsVerified() {
		if err := s.users.MarkEmailVerified(ctx, s.db, user.ID, now); err != nil {
			return err
		}
		user.EmailVerified = 1
		user.EmailVerifiedAt = &now
	}
	return nil
}

func (s *Service) ForgotPassword(ctx context.Context, address string) error {
	if err := validation.Missing(validation.Require("email", address)); err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, s.db, strings.ToLower(strings.TrimSpace(address)))
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	now := s.clock.Now()
	var raw string
	var expiresAt time.Time
	err = s.db.Transaction(ctx, func(tx db.Gateway) error {
		if err := s.repo.InvalidateTokens(ctx, tx, domain.TokenPasswordReset, user.ID); err != nil {
			return err
		}
		raw, expiresAt, err = s.issueToken(ctx, tx, domain.TokenPasswordReset, user, now)
		return err
	})
	if err != nil {
		return err
	}

	s.sendTokenEmail(ctx, email.TemplatePasswordReset, user, "/reset-password", raw, expiresAt)
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if err := validation.Missing(
		validation.Require("token", rawToken),
		validation.Require("password", newPassword),
	); err != nil {
		return err
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}

	now := s.clock.Now()
	record, err := s.consumeToken(ctx, domain.TokenPasswordReset, rawToken, now)
	if err != nil {
		return err
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return err
	}
	return s.db.Transaction(ctx, func(tx db.Gateway) error {
		if err := s.users.UpdatePassword(ctx, tx, record.UserID, hash, now); err != nil {
			return err
		}
		return s.repo.MarkTokenUsed(ctx, tx, domain.TokenPasswordReset, record.ID)
	})
}

func (s *Service) CompleteProfile(ctx context.Context, userID snowflake.ID, req domain.ProfileRequest) (*userdomain.User, error) {
	if err := validation.Missing(
		validation.Require("country", req.Country),
		validation.Require("default_currency", req.DefaultCurrency),
	); err != nil {
		return nil, err
	}

	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateProfile(ctx, s.db, user.ID,
		strings.TrimSpace(req.Country),
		strings.ToUpper(strings.TrimSpace(req.DefaultCurrency)),
		s.clock.Now(),
	); err != nil {
		return nil, err
	}
	return s.Me(ctx, userID)
}

func (s *Service) Me(ctx context.Context, userID snowflake.ID) (*userdomain.User, error) {
	user, err := s.users.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrNotFound
	}
	return user, nil
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (snowflake.ID, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return 0, domain.ErrUnauthorized
	}
	id, err := s.tokens.Parse(rawToken)
	if err != nil {
		return 0, domain.ErrUnauthorized
	}
	return id, nil
}

// consumeToken resolves rawToken and rejects used or expired ones. An expired
// token is marked used so it cannot be retried.
func (s *Service) consumeToken(ctx context.Context, kind domain.TokenKind, rawToken string, now time.Time) (*domain.OneTimeToken, error) {
	record, err := s.repo.FindToken(ctx, s.db, kind, hashToken(rawToken))
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrInvalidToken
	}
	if record.IsUsed() {
		return nil, domain.ErrTokenUsed
	}
	if record.ExpiresAt.Before(now) {
		if err := s.repo.MarkTokenUsed(ctx, s.db, kind, record.ID); err != nil {
			return nil, err
		}
		return nil, domain.ErrTokenExpired
	}
	return record, nil
}

func (s *Service) resendVerification(ctx context.Context, user *userdomain.User) (<-chan email.Result, error) {
	now := s.clock.Now()
	var raw string
	var expiresAt time.Time
	err := s.db.Transaction(ctx, func(tx db.Gateway) error {
		if err := s.repo.InvalidateTokens(ctx, tx, domain.TokenEmailVerification, user.ID); err != nil {
			return err
		}
		var err error
		raw, expiresAt, err = s.issueToken(ctx, tx, domain.TokenEmailVerification, user, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.sendTokenEmail(ctx, email.TemplateVerification, user, "/verify-email", raw, expiresAt), nil
}

func (s *Service) issueToken(ctx context.Context, gw db.Gateway, kind domain.TokenKind, user *userdomain.User, now time.Time) (string, time.Time, error) {
	raw, err := token.NewOpaque()
	if err != nil {
		return "", time.Time{}, err
	}
	ttl := domain.VerificationTTL
	if kind == domain.TokenPasswordReset {
		ttl = domain.ResetTTL
	}
	record := &domain.OneTimeToken{
		ID:        s.genID.Generate(),
		UserID:    user.ID,
		Email:     user.Email,
		TokenHash: hashToken(raw),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.repo.InsertToken(ctx, gw, kind, record); err != nil {
		return "", time.Time{}, err
	}
	return raw, record.ExpiresAt, nil
}

func (s *Service) sendTokenEmail(ctx context.Context, name email.TemplateName, user *userdomain.User, path, raw string, expiresAt time.Time) <-chan email.Result {
	msg, err := s.templates.Render(name, user.Email, email.TemplateData{
		AppName:   s.appName,
		Name:      user.Name,
		Link:      s.frontendURL + path + "?token=" + raw,
		ExpiresAt: expiresAt.Format("2006-01-02 15:04 MST"),
	})
	if err != nil {
		s.log.Error("failed to render email", zap.String("template", string(name)), zap.Error(err))
		ch := make(chan email.Result, 1)
		ch <- email.Result{Err: err}
		return ch
	}
	return s.mailer.Send(ctx, msg)
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(raw string) (string, error) {
	address := strings.ToLower(strings.TrimSpace(raw))
	if !emailPattern.MatchString(address) {
		return "", validation.Invalid("email", "Invalid email format")
	}
	return address, nil
}

func checkPassword(pw string) error {
	if len(pw) < domain.MinPasswordLen {
		return validation.Invalid("password", "Password must be at least 8 characters long")
	}
	return nil
}

func duplicateEmail(existing *userdomain.User) error {
	if existing.IsVerified() {
		return domain.ErrEmailRegistered
	}
	return domain.ErrEmailPendingVerification
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

