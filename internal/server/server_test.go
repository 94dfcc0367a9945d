package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/fintrack/internal/auth/domain"
	"github.com/smallbiznis/fintrack/internal/auth/oauth"
	billingdomain "github.com/smallbiznis/fintrack/internal/billing/domain"
	"github.com/smallbiznis/fintrack/internal/clock"
	"github.com/smallbiznis/fintrack/internal/config"
	entrepo "github.com/smallbiznis/fintrack/internal/entitlement/repository"
	entservice "github.com/smallbiznis/fintrack/internal/entitlement/service"
	financerepo "github.com/smallbiznis/fintrack/internal/finance/repository"
	financeservice "github.com/smallbiznis/fintrack/internal/finance/service"
	"github.com/smallbiznis/fintrack/internal/observability"
	"github.com/smallbiznis/fintrack/internal/ratelimit"
	reportdomain "github.com/smallbiznis/fintrack/internal/report/domain"
	userdomain "github.com/smallbiznis/fintrack/internal/user/domain"
	userrepo "github.com/smallbiznis/fintrack/internal/user/repository"
	"github.com/smallbiznis/fintrack/pkg/db"
	"github.com/smallbiznis/fintrack/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeAuthService accepts any bearer token that parses as a user id.
type fakeAuthService struct {
	loginCalls int
}

func (f *fakeAuthService) Register(ctx context.Context, req authdomain.RegisterRequest) (*authdomain.RegisterResult, error) {
	return &authdomain.RegisterResult{User: &userdomain.User{Email: req.Email}}, nil
}

func (f *fakeAuthService) VerifyEmail(ctx context.Context, rawToken string) (*userdomain.User, error) {
	if rawToken == "" {
		return nil, authdomain.ErrInvalidToken
	}
	return nil, authdomain.ErrTokenUsed
}

func (f *fakeAuthService) ResendVerification(ctx context.Context, email string) (*authdomain.ResendResult, error) {
	return &authdomain.ResendResult{}, nil
}

func (f *fakeAuthService) Login(ctx context.Context, req authdomain.LoginRequest) (*authdomain.LoginResult, error) {
	f.loginCalls++
	if req.Password != "correct-horse" {
		return nil, authdomain.ErrInvalidCredentials
	}
	return &authdomain.LoginResult{Token: "token"}, nil
}

func (f *fakeAuthService) GoogleSignIn(ctx context.Context, credential string) (*authdomain.GoogleSignInResult, error) {
	switch credential {
	case "google-ok":
		return &authdomain.GoogleSignInResult{Token: "token", Created: true}, nil
	case "unconfigured":
		return nil, oauth.ErrNotConfigured
	}
	return nil, oauth.ErrInvalidCredential
}

func (f *fakeAuthService) ForgotPassword(ctx context.Context, email string) error {
	return nil
}

func (f *fakeAuthService) ResetPassword(ctx context.Context, rawToken, password string) error {
	return nil
}

func (f *fakeAuthService) CompleteProfile(ctx context.Context, userID snowflake.ID, req authdomain.ProfileRequest) (*userdomain.User, error) {
	return &userdomain.User{ID: userID}, nil
}

func (f *fakeAuthService) Me(ctx context.Context, userID snowflake.ID) (*userdomain.User, error) {
	return &userdomain.User{ID: userID}, nil
}

func (f *fakeAuthService) Authenticate(ctx context.Context, rawToken string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(rawToken)
	if err != nil {
		return 0, authdomain.ErrUnauthorized
	}
	return id, nil
}

type fakeBillingService struct {
	payload []byte
	err     error
}

func (f *fakeBillingService) HandleWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	f.payload = payload
	return f.err
}

func (f *fakeBillingService) CreateCheckoutSession(ctx context.Context, userID snowflake.ID, priceID, planType string) (*billingdomain.CheckoutResult, error) {
	return nil, billingdomain.ErrNotConfigured
}

func (f *fakeBillingService) CreatePortalSession(ctx context.Context, userID snowflake.ID) (string, error) {
	return "", billingdomain.ErrNoCustomer
}

type fakeReportService struct {
	err error
}

func (f *fakeReportService) Dashboard(ctx context.Context, userID snowflake.ID) (*reportdomain.Dashboard, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &reportdomain.Dashboard{DefaultCurrency: "USD"}, nil
}

func (f *fakeReportService) ExportAll(ctx context.Context, userID snowflake.ID) (*reportdomain.Export, error) {
	return &reportdomain.Export{}, nil
}

func (f *fakeReportService) ExportCSV(ctx context.Context, userID snowflake.ID, resource reportdomain.CSVResource, w io.Writer) error {
	_, err := io.WriteString(w, "id,date\n")
	return err
}

func (f *fakeReportService) Statement(ctx context.Context, userID snowflake.ID, month, year int) (io.Reader, error) {
	return strings.NewReader("%PDF-1.3"), nil
}

type fixture struct {
	gw      db.Gateway
	clock   *clock.FakeClock
	node    *snowflake.Node
	users   userdomain.Repository
	auth    *fakeAuthService
	billing *fakeBillingService
	report  *fakeReportService
	router  *gin.Engine
}

type fixtureOption func(*ServerParams)

func newFixture(t *testing.T, cfg config.Config, opts ...fixtureOption) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	node, err := snowflake.NewNode(5)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	gw := dbtest.Open(t)
	fc := clock.NewFakeClock(time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC))
	log := zaptest.NewLogger(t)
	users := userrepo.Provide()

	f := &fixture{
		gw:      gw,
		clock:   fc,
		node:    node,
		users:   users,
		auth:    &fakeAuthService{},
		billing: &fakeBillingService{},
		report:  &fakeReportService{},
	}

	params := ServerParams{
		Gin:     NewEngine(cfg, observability.Config{}, nil),
		Cfg:     cfg,
		Authsvc: f.auth,
		EntitlementSvc: entservice.New(entservice.Params{
			DB:    gw,
			Log:   log,
			Clock: fc,
			Users: users,
			Repo:  entrepo.Provide(),
		}),
		FinanceSvc: financeservice.New(financeservice.Params{
			DB:    gw,
			Log:   log,
			Clock: fc,
			GenID: node,
			Repo:  financerepo.Provide(),
		}),
		BillingSvc: f.billing,
		ReportSvc:  f.report,
	}
	for _, opt := range opts {
		opt(&params)
	}
	f.router = NewServer(params).Engine()
	return f
}

func withLimiters(l *ratelimit.Limiters) fixtureOption {
	return func(p *ServerParams) { p.Limiters = l }
}

func (f *fixture) createUser(t *testing.T, tier userdomain.Tier) snowflake.ID {
	t.Helper()
	ctx := context.Background()
	now := f.clock.Now()
	user := &userdomain.User{
		ID:                 f.node.Generate(),
		Email:              f.node.Generate().String() + "@example.com",
		PasswordHash:       "hash",
		Name:               "Tester",
		DefaultCurrency:    "USD",
		SubscriptionTier:   userdomain.TierFree,
		SubscriptionStatus: userdomain.StatusActive,
		EmailVerified:      1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, f.users.Insert(ctx, f.gw, user))
	if tier == userdomain.TierPremium {
		_, err := f.users.ApplySubscription(ctx, f.gw, user.ID, userdomain.SubscriptionState{
			Tier:   userdomain.TierPremium,
			Status: userdomain.StatusActive,
		}, now)
		require.NoError(t, err)
	}
	return user.ID
}

func (f *fixture) do(method, path string, userID snowflake.ID, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+userID.String())
	}
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body %q: %v", resp.Body.String(), err)
	}
	return body.Error
}

func TestHealthIsPublic(t *testing.T) {
	f := newFixture(t, config.Config{})

	resp := f.do(http.MethodGet, "/health", 0, "")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestProtectedRoutesRequireBearer(t *testing.T) {
	f := newFixture(t, config.Config{})

	resp := f.do(http.MethodGet, "/api/bank-accounts", 0, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "unauthorized", decodeError(t, resp).Type)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBankAccountLimitReturnsEntitlementPayload(t *testing.T) {
	f := newFixture(t, config.Config{})
	userID := f.createUser(t, userdomain.TierFree)

	body := `{"account_name":"Checking","bank_name":"First","country":"US","current_balance":100}`
	for i := 0; i < 2; i++ {
		resp := f.do(http.MethodPost, "/api/bank-accounts", userID, body)
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	}

	resp := f.do(http.MethodPost, "/api/bank-accounts", userID, body)
	require.Equal(t, http.StatusForbidden, resp.Code)

	payload := decodeError(t, resp)
	assert.Equal(t, "limit_reached", payload.Type)
	assert.Equal(t, userdomain.TierFree, payload.Tier)
	assert.EqualValues(t, "bank_accounts", payload.Resource)
	require.NotNil(t, payload.Current)
	require.NotNil(t, payload.Limit)
	assert.Equal(t, int64(2), *payload.Current)
	assert.Equal(t, int64(2), *payload.Limit)
	assert.Equal(t, "/upgrade", payload.UpgradeURL)

	list := f.do(http.MethodGet, "/api/bank-accounts", userID, "")
	require.Equal(t, http.StatusOK, list.Code)
	var out struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &out))
	assert.Len(t, out.Data, 2)
}

func TestPremiumUserHasNoBankAccountLimit(t *testing.T) {
	f := newFixture(t, config.Config{})
	userID := f.createUser(t, userdomain.TierPremium)

	body := `{"account_name":"Checking","bank_name":"First","country":"US"}`
	for i := 0; i < 3; i++ {
		resp := f.do(http.MethodPost, "/api/bank-accounts", userID, body)
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	}
}

func TestStocksAreGatedByFeatureAndTier(t *testing.T) {
	f := newFixture(t, config.Config{})
	free := f.createUser(t, userdomain.TierFree)
	premium := f.createUser(t, userdomain.TierPremium)

	resp := f.do(http.MethodGet, "/api/stocks", free, "")
	require.Equal(t, http.StatusForbidden, resp.Code)
	payload := decodeError(t, resp)
	assert.Equal(t, "feature_not_available", payload.Type)
	assert.EqualValues(t, "stocks", payload.Feature)

	resp = f.do(http.MethodPost, "/api/stocks", free, `{"symbol":"ACME","shares":1,"purchase_price":10}`)
	require.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "premium_required", decodeError(t, resp).Type)

	resp = f.do(http.MethodPost, "/api/stocks", premium, `{"symbol":"ACME","shares":1,"purchase_price":10}`)
	assert.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
}

func TestCreateReportsMissingFields(t *testing.T) {
	f := newFixture(t, config.Config{})
	userID := f.createUser(t, userdomain.TierFree)

	resp := f.do(http.MethodPost, "/api/bank-accounts", userID, `{}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	payload := decodeError(t, resp)
	assert.Equal(t, "validation_error", payload.Type)
	fields := make([]string, 0, len(payload.Errors))
	for _, fe := range payload.Errors {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"account_name", "bank_name", "country"}, fields)
}

func TestOtherUsersRowsAreNotFound(t *testing.T) {
	f := newFixture(t, config.Config{})
	owner := f.createUser(t, userdomain.TierFree)
	other := f.createUser(t, userdomain.TierFree)

	resp := f.do(http.MethodPost, "/api/savings", owner, `{"account_name":"Rainy day"}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		resp = f.do(method, "/api/savings/"+created.Data.ID, other, "")
		assert.Equal(t, http.StatusNotFound, resp.Code, method)
	}

	resp = f.do(http.MethodPost, "/api/savings/"+created.Data.ID+"/transactions", owner,
		`{"amount":25,"transaction_type":"deposit"}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Regexp(t, `"current_balance":"?25"?`, resp.Body.String())

	resp = f.do(http.MethodGet, "/api/savings/not-an-id", owner, "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAuthLimiterOnlyCountsFailures(t *testing.T) {
	fc := clock.NewFakeClock(time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC))
	store := ratelimit.NewMemoryStore(fc.Now)
	auth := ratelimit.NewLimiter("auth", store, ratelimit.Quota{Limit: 2, Window: 15 * time.Minute})
	auth.SkipSuccessful = true
	limiters := &ratelimit.Limiters{
		General: ratelimit.NewLimiter("general", store, ratelimit.Quota{Limit: 100, Window: 15 * time.Minute}),
		Auth:    auth,
	}
	f := newFixture(t, config.Config{}, withLimiters(limiters))

	good := `{"email":"a@example.com","password":"correct-horse"}`
	bad := `{"email":"a@example.com","password":"wrong"}`

	for i := 0; i < 3; i++ {
		resp := f.do(http.MethodPost, "/api/auth/login", 0, good)
		require.Equal(t, http.StatusOK, resp.Code)
	}
	for i := 0; i < 2; i++ {
		resp := f.do(http.MethodPost, "/api/auth/login", 0, bad)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	}

	resp := f.do(http.MethodPost, "/api/auth/login", 0, good)
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "rate_limited", decodeError(t, resp).Type)
	assert.NotEmpty(t, resp.Header().Get("Retry-After"))
	assert.Equal(t, 5, f.auth.loginCalls)
}

func TestTokenErrorsAreBadRequests(t *testing.T) {
	f := newFixture(t, config.Config{})

	resp := f.do(http.MethodGet, "/api/auth/verify-email?token=abc", 0, "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	payload := decodeError(t, resp)
	assert.Equal(t, "invalid_token", payload.Type)
	assert.Equal(t, "Token has already been used", payload.Message)
}

func TestGoogleSignInStatuses(t *testing.T) {
	f := newFixture(t, config.Config{})

	resp := f.do(http.MethodPost, "/api/auth/google", 0, `{"credential":"google-ok"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	var body struct {
		Data authdomain.GoogleSignInResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "token", body.Data.Token)
	assert.True(t, body.Data.Created)

	resp = f.do(http.MethodPost, "/api/auth/google", 0, `{"credential":"forged"}`)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "unauthorized", decodeError(t, resp).Type)

	resp = f.do(http.MethodPost, "/api/auth/google", 0, `{"credential":"unconfigured"}`)
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Equal(t, "service_unavailable", decodeError(t, resp).Type)
}

func TestWebhookPassesRawBody(t *testing.T) {
	f := newFixture(t, config.Config{})
	raw := `{"id":"evt_1",  "type":"invoice.payment_succeeded"}`

	resp := f.do(http.MethodPost, "/api/stripe/webhook", 0, raw)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, raw, string(f.billing.payload))

	f.billing.err = billingdomain.ErrInvalidSignature
	resp = f.do(http.MethodPost, "/api/stripe/webhook", 0, raw)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid_signature", decodeError(t, resp).Type)
}

func TestBillingErrorsMapToStatus(t *testing.T) {
	f := newFixture(t, config.Config{})
	userID := f.createUser(t, userdomain.TierFree)

	resp := f.do(http.MethodPost, "/api/stripe/create-checkout-session", userID, `{"price_id":"price_1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	resp = f.do(http.MethodPost, "/api/stripe/create-portal-session", userID, "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestInternalErrorDetailOutsideProduction(t *testing.T) {
	cases := []struct {
		env    string
		detail string
	}{
		{env: "development", detail: "boom"},
		{env: "production", detail: ""},
	}
	for _, tc := range cases {
		t.Run(tc.env, func(t *testing.T) {
			f := newFixture(t, config.Config{Environment: tc.env})
			f.report.err = errors.New("boom")
			userID := f.createUser(t, userdomain.TierFree)

			resp := f.do(http.MethodGet, "/api/dashboard", userID, "")
			require.Equal(t, http.StatusInternalServerError, resp.Code)
			payload := decodeError(t, resp)
			assert.Equal(t, "internal_error", payload.Type)
			assert.Equal(t, tc.detail, payload.Detail)
		})
	}
}

func TestExportsAreFeatureGated(t *testing.T) {
	f := newFixture(t, config.Config{})
	free := f.createUser(t, userdomain.TierFree)
	premium := f.createUser(t, userdomain.TierPremium)

	resp := f.do(http.MethodGet, "/api/export/csv?resource=expenses", free, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header().Get("Content-Type"))

	resp = f.do(http.MethodGet, "/api/export/pdf", free, "")
	require.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "feature_not_available", decodeError(t, resp).Type)

	resp = f.do(http.MethodGet, "/api/export/pdf", premium, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, strings.HasPrefix(resp.Body.String(), "%PDF"))
}
