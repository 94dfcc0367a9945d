package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/fintrack/internal/clock"
	"github.com/smallbiznis/fintrack/internal/config"
)

const requestTimeout = 10 * time.Second

var (
	ErrNotConfigured     = errors.New("google_signin_not_configured")
	ErrInvalidCredential = errors.New("invalid_google_credential")
)

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// Identity is the verified subject of a Google ID token.
type Identity struct {
	ExternalID  string
	Email       string
	DisplayName string
}

// Verifier resolves a sign-in credential to the identity it was issued for.
type Verifier interface {
	Verify(ctx context.Context, credential string) (Identity, error)
}

// GoogleVerifier checks ID tokens against Google's tokeninfo endpoint and
// then enforces audience, issuer, expiry and a verified email locally.
type GoogleVerifier struct {
	clientID     string
	tokenInfoURL string
	clock        clock.Clock
	httpClient   *http.Client
}

func NewGoogleVerifier(cfg config.Config, c clock.Clock) Verifier {
	return NewGoogle(cfg.Google.ClientID, cfg.Google.TokenInfoURL, c, nil)
}

func NewGoogle(clientID, tokenInfoURL string, c clock.Clock, httpClient *http.Client) *GoogleVerifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &GoogleVerifier{
		clientID:     strings.TrimSpace(clientID),
		tokenInfoURL: strings.TrimSpace(tokenInfoURL),
		clock:        c,
		httpClient:   httpClient,
	}
}

func (v *GoogleVerifier) Verify(ctx context.Context, credential string) (Identity, error) {
	if v == nil || v.clientID == "" || v.tokenInfoURL == "" {
		return Identity{}, ErrNotConfigured
	}
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Identity{}, ErrInvalidCredential
	}

	payload, err := v.fetchTokenInfo(ctx, credential)
	if err != nil {
		return Identity{}, err
	}

	if firstClaim(payload, "aud") != v.clientID {
		return Identity{}, ErrInvalidCredential
	}
	if !googleIssuers[firstClaim(payload, "iss")] {
		return Identity{}, ErrInvalidCredential
	}
	exp, err := strconv.ParseInt(firstClaim(payload, "exp"), 10, 64)
	if err != nil || !time.Unix(exp, 0).After(v.clock.Now()) {
		return Identity{}, ErrInvalidCredential
	}
	if firstClaim(payload, "email_verified") != "true" {
		return Identity{}, ErrInvalidCredential
	}

	identity := Identity{
		ExternalID:  firstClaim(payload, "sub"),
		Email:       strings.ToLower(firstClaim(payload, "email")),
		DisplayName: firstClaim(payload, "name", "given_name"),
	}
	if identity.ExternalID == "" || identity.Email == "" {
		return Identity{}, ErrInvalidCredential
	}
	return identity, nil
}

func (v *GoogleVerifier) fetchTokenInfo(ctx context.Context, credential string) (map[string]any, error) {
	endpoint, err := url.Parse(v.tokenInfoURL)
	if err != nil {
		return nil, err
	}
	query := endpoint.Query()
	query.Set("id_token", credential)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google tokeninfo: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	// tokeninfo answers 400 for malformed, expired or forged tokens.
	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
		return nil, ErrInvalidCredential
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google tokeninfo: unexpected status %d", resp.StatusCode)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, ErrInvalidCredential
	}
	return payload, nil
}

func firstClaim(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := payload[key]; ok {
			if str := claimToString(value); str != "" {
				return str
			}
		}
	}
	return ""
}

func claimToString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
