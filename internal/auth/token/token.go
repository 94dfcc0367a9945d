// Package token issues and verifies the bearer JWTs used by the API.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/fintrack/internal/clock"
	"github.com/smallbiznis/fintrack/internal/config"
	"go.uber.org/zap"
)

var ErrInvalid = errors.New("invalid token")

// Claims keeps the subject in "id" so existing clients keep working.
type Claims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	clock  clock.Clock
}

func NewIssuer(cfg config.Config, clk clock.Clock, log *zap.Logger) (*Issuer, error) {
	secret := []byte(cfg.AuthJWTSecret)
	if len(secret) == 0 {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_SECRET is required in production")
		}
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		log.Warn("JWT_SECRET not set, using an ephemeral signing key")
	}
	ttl := cfg.AuthTokenTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return New(secret, ttl, cfg.AppName, clk), nil
}

func New(secret []byte, ttl time.Duration, issuer string, clk clock.Clock) *Issuer {
	return &Issuer{secret: secret, ttl: ttl, issuer: issuer, clock: clk}
}

// Issue signs a token for userID and returns it with its expiry.
func (i *Issuer) Issue(userID snowflake.ID) (string, time.Time, error) {
	now := i.clock.Now()
	expiresAt := now.Add(i.ttl)
	claims := Claims{
		ID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse verifies raw and returns the user it was issued for.
func (i *Issuer) Parse(raw string) (snowflake.ID, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.clock.Now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	id, err := snowflake.ParseString(claims.ID)
	if err != nil || id == 0 {
		return 0, ErrInvalid
	}
	return id, nil
}

// NewOpaque returns a random hex token for email links.
func NewOpaque() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
