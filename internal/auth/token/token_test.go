package token

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/fintrack/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	fc := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	issuer := New([]byte("secret"), 7*24*time.Hour, "fintrack", fc)

	raw, expiresAt, err := issuer.Issue(snowflake.ID(42))
	require.NoError(t, err)
	assert.Equal(t, fc.Now().Add(7*24*time.Hour), expiresAt)

	id, err := issuer.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(42), id)

	fc.Advance(7*24*time.Hour + time.Second)
	_, err = issuer.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParseRejectsForeignTokens(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	issuer := New([]byte("secret"), time.Hour, "fintrack", fc)

	other := New([]byte("other"), time.Hour, "fintrack", fc)
	raw, _, err := other.Issue(snowflake.ID(1))
	require.NoError(t, err)
	_, err = issuer.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalid)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"id": "1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Parse(none)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = issuer.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestNewOpaque(t *testing.T) {
	a, err := NewOpaque()
	require.NoError(t, err)
	b, err := NewOpaque()
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
