package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fintrack/internal/clock"
	"github.com/smallbiznis/fintrack/internal/entitlement/domain"
	"github.com/smallbiznis/fintrack/internal/entitlement/repository"
	"github.com/smallbiznis/fintrack/internal/observability/metrics"
	userdomain "github.com/smallbiznis/fintrack/internal/user/domain"
	userrepo "github.com/smallbiznis/fintrack/internal/user/repository"
	"github.com/smallbiznis/fintrack/pkg/db"
	"github.com/smallbiznis/fintrack/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	gw    db.Gateway
	clock *clock.FakeClock
	users userdomain.Repository
	node  *snowflake.Node
	svc   domain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}
	gw := dbtest.Open(t)
	fc := clock.NewFakeClock(time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC))
	users := userrepo.Provide()

	svc := New(Params{
		DB:      gw,
		Log:     zaptest.NewLogger(t),
		Clock:   fc,
		Users:   users,
		Repo:    repository.Provide(),
		Metrics: metrics.NewNoop(),
	})
	return &fixture{gw: gw, clock: fc, users: users, node: node, svc: svc}
}

func (f *fixture) createUser(t *testing.T, tier userdomain.Tier, status userdomain.Status, expiresAt *time.Time) *userdomain.User {
	t.Helper()

	ctx := context.Background()
	now := f.clock.Now()
	user := &userdomain.User{
		ID:                 f.node.Generate(),
		Email:              f.node.Generate().String() + "@example.com",
		PasswordHash:       "hash",
		Name:               "Test User",
		DefaultCurrency:    "USD",
		SubscriptionTier:   userdomain.TierFree,
		SubscriptionStatus: userdomain.StatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, f.users.Insert(ctx, f.gw, user))

	if tier != userdomain.TierFree || status != userdomain.StatusActive || expiresAt != nil {
		_, err := f.users.ApplySubscription(ctx, f.gw, user.ID, userdomain.SubscriptionState{
			Tier:      tier,
			Status:    status,
			ExpiresAt: expiresAt,
		}, now)
		require.NoError(t, err)
	}

	stored, err := f.users.FindByID(ctx, f.gw, user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	return stored
}

func (f *fixture) insertExpense(t *testing.T, userID snowflake.ID, date string) {
	t.Helper()
	now := f.clock.Now()
	_, err := f.gw.Run(context.Background(),
		`INSERT INTO expenses (id, user_id, category, amount, currency, date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.node.Generate(), userID, "Food", "12.50", "USD", date, now, now,
	)
	require.NoError(t, err)
}

func (f *fixture) insertBankAccount(t *testing.T, userID snowflake.ID) {
	t.Helper()
	now := f.clock.Now()
	_, err := f.gw.Run(context.Background(),
		`INSERT INTO bank_accounts (id, user_id, account_name, bank_name, country, currency, current_balance, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.node.Generate(), userID, "Checking", "Bank", "US", "USD", "0", now, now,
	)
	require.NoError(t, err)
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

func TestCheckLimitBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, userdomain.TierFree, userdomain.StatusActive, nil)

	f.insertBankAccount(t, user.ID)
	result, err := f.svc.CheckLimit(ctx, user.ID, domain.ResourceBankAccounts)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(1), result.Current)
	assert.Equal(t, int64(2), result.Limit)
	assert.Equal(t, int64(1), result.Remaining)
	assert.Equal(t, 50, result.Percentage)
	assert.Equal(t, userdomain.TierFree, result.Tier)

	f.insertBankAccount(t, user.ID)
	result, err = f.svc.CheckLimit(ctx, user.ID, domain.ResourceBankAccounts)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, int64(0), result.Remaining)
	assert.Equal(t, 100, result.Percentage)
}

func TestCheckLimitScopedToOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, userdomain.TierFree, userdomain.StatusActive, nil)
	bob := f.createUser(t, userdomain.TierFree, userdomain.StatusActive, nil)

	f.insertBankAccount(t, alice.ID)
	f.insertBankAccount(t, alice.ID)

	result, err := f.svc.CheckLimit(ctx, bob.ID, domain.ResourceBankAccounts)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(0), result.Current)
}

func TestCheckLimitMonthlyWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, userdomain.TierFree, userdomain.StatusActive, nil)

	for i := 0; i < 49; i++ {
		f.insertExpense(t, user.ID, "2025-03-01")
	}
	f.insertExpense(t, user.ID, "2025-02-28")
	f.insertExpense(t, user.ID, "2025-04-01")

	result, err := f.svc.CheckLimit(ctx, user.ID, domain.ResourceExpensesPerMonth)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(49), result.Current)
	assert.Equal(t, int64(50), result.Limit)

	f.insertExpense(t, user.ID, "2025-03-31")
	_, err = f.svc.RequireLimit(ctx, user.ID, domain.ResourceExpensesPerMonth)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrLimitReached))

	denied, ok := domain.AsDenied(err)
	require.True(t, ok)
	assert.Equal(t, int64(50), denied.Current)
	assert.Equal(t, int64(50), denied.Limit)
	assert.Equal(t, domain.ResourceExpensesPerMonth, denied.Resource)

	// A new month starts a fresh bucket.
	f.clock.Set(time.Date(2025, time.April, 2, 0, 0, 0, 0, time.UTC))
	result, err = f.svc.CheckLimit(ctx, user.ID, domain.ResourceExpensesPerMonth)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Current)
}

func TestCheckLimitZeroLimit(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, userdomain.TierFree, userdomain.StatusActive, nil)

	result, err := f.svc.CheckLimit(context.Background(), user.ID, domain.ResourceStocks)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, int64(0), result.Limit)
	assert.Equal(t, 0, result.Percentage)
}

func TestCheckLimitPremiumUnbounded(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, userdomain.TierPremium, userdomain.StatusActive, ptrTime(f.clock.Now().AddDate(0, 1, 0)))
	f.insertBankAccount(t, user.ID)
	f.insertBankAccount(t, user.ID)
	f.insertBankAccount(t, user.ID)

	result, err := f.svc.CheckLimit(context.Background(), user.ID, domain.ResourceBankAccounts)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.True(t, result.Unbounded)
	assert.Equal(t, domain.Unbounded, result.Limit)
	assert.Equal(t, domain.Unbounded, result.Remaining)
}

func TestCheckLimitExpiredPremiumUsesFreeLimits(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, userdomain.TierPremium, userdomain.StatusActive, ptrTime(f.clock.Now().Add(-time.Hour)))

	result, err := f.svc.CheckLimit(context.Background(), user.ID, domain.ResourceGoals)
	require.NoError(t, err)
	assert.Equal(t, userdomain.TierFree, result.Tier)
	assert.Equal(t, int64(1), result.Limit)
}

func TestCheckLimitErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CheckLimit(ctx, f.node.Generate(), domain.ResourceBankAccounts)
	assert.ErrorIs(t, err, userdomain.ErrNotFound)

	user := f.createUser(t, userdomain.TierFree, userdomain.StatusActive, nil)
	_, err = f.svc.CheckLimit(ctx, user.ID, domain.Resource("savings"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedResource)
}

func TestRequireTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	free := f.createUser(t, userdomain.TierFree, userdomain.StatusActive, nil)
	assert.NoError(t, f.svc.RequireTier(ctx, free.ID, userdomain.TierFree))
	err := f.svc.RequireTier(ctx, free.ID, userdomain.TierPremium)
	assert.ErrorIs(t, err, domain.ErrPremiumRequired)

	premium := f.createUser(t, userdomain.TierPremium, userdomain.StatusActive, nil)
	assert.NoError(t, f.svc.RequireTier(ctx, premium.ID, userdomain.TierPremium))
}

func TestRequireTierLazyDowngrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, userdomain.TierPremium, userdomain.StatusActive, ptrTime(f.clock.Now().Add(-time.Minute)))

	err := f.svc.RequireTier(ctx, user.ID, userdomain.TierPremium)
	assert.ErrorIs(t, err, domain.ErrSubscriptionExpired)

	stored, err := f.users.FindByID(ctx, f.gw, user.ID)
	require.NoError(t, err)
	assert.Equal(t, userdomain.TierFree, stored.SubscriptionTier)
	assert.Equal(t, userdomain.StatusExpired, stored.SubscriptionStatus)

	// Running again keeps the row unchanged and the rejection shape stable.
	err = f.svc.RequireTier(ctx, user.ID, userdomain.TierPremium)
	assert.ErrorIs(t, err, domain.ErrSubscriptionExpired)

	again, err := f.users.FindByID(ctx, f.gw, user.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.SubscriptionTier, again.SubscriptionTier)
	assert.Equal(t, stored.SubscriptionStatus, again.SubscriptionStatus)
}

func TestRequireFeature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	free := f.createUser(t, userdomain.TierFree, userdomain.StatusActive, nil)

	assert.NoError(t, f.svc.RequireFeature(ctx, free.ID, domain.FeatureExpenses))
	for _, feature := range []domain.Feature{domain.FeatureStocks, domain.FeatureBudget, domain.FeatureRecurringTransactions, domain.FeatureExportPDF} {
		err := f.svc.RequireFeature(ctx, free.ID, feature)
		require.ErrorIs(t, err, domain.ErrFeatureNotAvailable, string(feature))
		denied, ok := domain.AsDenied(err)
		require.True(t, ok)
		assert.Equal(t, feature, denied.Feature)
	}

	premium := f.createUser(t, userdomain.TierPremium, userdomain.StatusActive, ptrTime(f.clock.Now().AddDate(0, 0, 1)))
	assert.NoError(t, f.svc.RequireFeature(ctx, premium.ID, domain.FeatureStocks))

	// Feature checks never write.
	f.clock.Advance(48 * time.Hour)
	assert.ErrorIs(t, f.svc.RequireFeature(ctx, premium.ID, domain.FeatureStocks), domain.ErrFeatureNotAvailable)
	stored, err := f.users.FindByID(ctx, f.gw, premium.ID)
	require.NoError(t, err)
	assert.Equal(t, userdomain.TierPremium, stored.SubscriptionTier)
}

func TestHasFeatureInactiveStatus(t *testing.T) {
	f := newFixture(t)
	cancelled := f.createUser(t, userdomain.TierFree, userdomain.StatusCancelled, nil)
	assert.False(t, f.svc.HasFeature(cancelled, domain.FeatureDashboard))
	assert.False(t, f.svc.HasFeature(nil, domain.FeatureDashboard))
}

func TestExpireOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	overdue := f.createUser(t, userdomain.TierPremium, userdomain.StatusActive, ptrTime(f.clock.Now().Add(-time.Hour)))
	current := f.createUser(t, userdomain.TierPremium, userdomain.StatusActive, ptrTime(f.clock.Now().Add(time.Hour)))

	n, err := f.svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stored, err := f.users.FindByID(ctx, f.gw, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, userdomain.TierFree, stored.SubscriptionTier)
	assert.Equal(t, userdomain.StatusExpired, stored.SubscriptionStatus)

	stored, err = f.users.FindByID(ctx, f.gw, current.ID)
	require.NoError(t, err)
	assert.Equal(t, userdomain.TierPremium, stored.SubscriptionTier)

	n, err = f.svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestUsage(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, userdomain.TierFree, userdomain.StatusActive, nil)
	f.insertBankAccount(t, user.ID)

	usage, err := f.svc.Usage(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, userdomain.TierFree, usage.Tier)
	assert.True(t, usage.Features[domain.FeatureDashboard])
	assert.False(t, usage.Features[domain.FeatureExportPDF])
	require.Len(t, usage.Limits, len(domain.Resources))
	assert.Equal(t, domain.ResourceBankAccounts, usage.Limits[0].Resource)
	assert.Equal(t, int64(1), usage.Limits[0].Current)
}

// renewingUsers applies a renewal right after the engine has read the row.
type renewingUsers struct {
	userdomain.Repository
	gw      db.Gateway
	renewal userdomain.SubscriptionState
	now     time.Time
	renewed bool
}

func (r *renewingUsers) renew(ctx context.Context, id snowflake.ID) error {
	if r.renewed {
		return nil
	}
	r.renewed = true
	_, err := r.Repository.ApplySubscription(ctx, r.gw, id, r.renewal, r.now)
	return err
}

func (r *renewingUsers) FindByID(ctx context.Context, gw db.Gateway, id snowflake.ID) (*userdomain.User, error) {
	user, err := r.Repository.FindByID(ctx, gw, id)
	if err != nil || user == nil {
		return user, err
	}
	return user, r.renew(ctx, id)
}

func (r *renewingUsers) ListPremiumWithExpiry(ctx context.Context, gw db.Gateway) ([]userdomain.User, error) {
	users, err := r.Repository.ListPremiumWithExpiry(ctx, gw)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if err := r.renew(ctx, users[i].ID); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (f *fixture) withRenewal(t *testing.T, renewsUntil time.Time) domain.Service {
	t.Helper()
	users := &renewingUsers{
		Repository: f.users,
		gw:         f.gw,
		now:        f.clock.Now(),
		renewal: userdomain.SubscriptionState{
			Tier:      userdomain.TierPremium,
			Status:    userdomain.StatusActive,
			ExpiresAt: &renewsUntil,
		},
	}
	return New(Params{
		DB:      f.gw,
		Log:     zaptest.NewLogger(t),
		Clock:   f.clock,
		Users:   users,
		Repo:    repository.Provide(),
		Metrics: metrics.NewNoop(),
	})
}

func TestRequireTierKeepsConcurrentRenewal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, userdomain.TierPremium, userdomain.StatusActive, ptrTime(f.clock.Now().Add(-time.Minute)))
	renewsUntil := f.clock.Now().AddDate(0, 1, 0)
	svc := f.withRenewal(t, renewsUntil)

	require.NoError(t, svc.RequireTier(ctx, user.ID, userdomain.TierPremium))

	stored, err := f.users.FindByID(ctx, f.gw, user.ID)
	require.NoError(t, err)
	assert.Equal(t, userdomain.TierPremium, stored.SubscriptionTier)
	assert.Equal(t, userdomain.StatusActive, stored.SubscriptionStatus)
	require.NotNil(t, stored.SubscriptionExpiresAt)
	assert.True(t, stored.SubscriptionExpiresAt.Equal(renewsUntil))
}

func TestExpireOverdueKeepsConcurrentRenewal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, userdomain.TierPremium, userdomain.StatusActive, ptrTime(f.clock.Now().Add(-time.Hour)))
	svc := f.withRenewal(t, f.clock.Now().AddDate(0, 1, 0))

	n, err := svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	stored, err := f.users.FindByID(ctx, f.gw, user.ID)
	require.NoError(t, err)
	assert.Equal(t, userdomain.TierPremium, stored.SubscriptionTier)
	assert.Equal(t, userdomain.StatusActive, stored.SubscriptionStatus)
}
