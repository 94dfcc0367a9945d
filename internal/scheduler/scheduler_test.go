package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	authdomain "github.com/smallbiznis/fintrack/internal/auth/domain"
	authrepo "github.com/smallbiznis/fintrack/internal/auth/repository"
	"github.com/smallbiznis/fintrack/internal/clock"
	"github.com/smallbiznis/fintrack/internal/config"
	entrepo "github.com/smallbiznis/fintrack/internal/entitlement/repository"
	entservice "github.com/smallbiznis/fintrack/internal/entitlement/service"
	financedomain "github.com/smallbiznis/fintrack/internal/finance/domain"
	financerepo "github.com/smallbiznis/fintrack/internal/finance/repository"
	financeservice "github.com/smallbiznis/fintrack/internal/finance/service"
	obsmetrics "github.com/smallbiznis/fintrack/internal/observability/metrics"
	userdomain "github.com/smallbiznis/fintrack/internal/user/domain"
	userrepo "github.com/smallbiznis/fintrack/internal/user/repository"
	"github.com/smallbiznis/fintrack/pkg/db"
	"github.com/smallbiznis/fintrack/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	gw      db.Gateway
	clock   *clock.FakeClock
	node    *snowflake.Node
	users   userdomain.Repository
	auth    authdomain.Repository
	finance financedomain.Service
	http    *obsmetrics.HTTPMetrics
	sched   *Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	node, err := snowflake.NewNode(3)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}
	httpMetrics, err := obsmetrics.NewHTTPMetrics(obsmetrics.Config{ServiceName: "fintrack", Environment: "test"})
	if err != nil {
		t.Fatalf("failed to create http metrics: %v", err)
	}
	schedMetrics, err := obsmetrics.NewSchedulerMetrics(obsmetrics.Config{ServiceName: "fintrack", Environment: "test"}, httpMetrics)
	if err != nil {
		t.Fatalf("failed to create scheduler metrics: %v", err)
	}

	gw := dbtest.Open(t)
	fc := clock.NewFakeClock(time.Date(2025, time.March, 15, 0, 5, 0, 0, time.UTC))
	log := zaptest.NewLogger(t)
	users := userrepo.Provide()
	auth := authrepo.Provide()

	ent := entservice.New(entservice.Params{
		DB:    gw,
		Log:   log,
		Clock: fc,
		Users: users,
		Repo:  entrepo.Provide(),
	})
	fin := financeservice.New(financeservice.Params{
		DB:    gw,
		Log:   log,
		Clock: fc,
		GenID: node,
		Repo:  financerepo.Provide(),
	})

	sched := New(Params{
		Config:      config.Config{SchedulerInterval: time.Minute},
		DB:          gw,
		Log:         log,
		Clock:       fc,
		GenID:       node,
		Entitlement: ent,
		Finance:     fin,
		Users:       users,
		AuthRepo:    auth,
		Metrics:     schedMetrics,
	})

	return &fixture{
		gw:      gw,
		clock:   fc,
		node:    node,
		users:   users,
		auth:    auth,
		finance: fin,
		http:    httpMetrics,
		sched:   sched,
	}
}

func (f *fixture) createUser(t *testing.T, tier userdomain.Tier, expiresAt *time.Time) *userdomain.User {
	t.Helper()

	ctx := context.Background()
	now := f.clock.Now()
	user := &userdomain.User{
		ID:                 f.node.Generate(),
		Email:              f.node.Generate().String() + "@example.com",
		PasswordHash:       "hash",
		Name:               "Scheduled",
		DefaultCurrency:    "USD",
		SubscriptionTier:   userdomain.TierFree,
		SubscriptionStatus: userdomain.StatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, f.users.Insert(ctx, f.gw, user))
	if tier == userdomain.TierPremium {
		_, err := f.users.ApplySubscription(ctx, f.gw, user.ID, userdomain.SubscriptionState{
			Tier:      tier,
			Status:    userdomain.StatusActive,
			ExpiresAt: expiresAt,
		}, now)
		require.NoError(t, err)
	}
	return user
}

func (f *fixture) recurring(t *testing.T, userID snowflake.ID, nextDate string) *financedomain.RecurringTransaction {
	t.Helper()
	rec, err := f.finance.Recurring().Create(context.Background(), userID, &financedomain.RecurringTransaction{
		TransactionType: financedomain.TransactionExpense,
		Description:     "Streaming",
		Amount:          decimal.RequireFromString("12.99"),
		Frequency:       financedomain.FrequencyMonthly,
		NextDate:        nextDate,
	})
	require.NoError(t, err)
	return rec
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

func TestExpireSubscriptionsJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lapsed := f.createUser(t, userdomain.TierPremium, ptrTime(f.clock.Now().Add(-time.Hour)))
	current := f.createUser(t, userdomain.TierPremium, ptrTime(f.clock.Now().Add(24*time.Hour)))

	n, err := f.sched.ExpireSubscriptionsJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := f.users.FindByID(ctx, f.gw, lapsed.ID)
	require.NoError(t, err)
	assert.Equal(t, userdomain.TierFree, got.SubscriptionTier)
	assert.Equal(t, userdomain.StatusExpired, got.SubscriptionStatus)

	got, err = f.users.FindByID(ctx, f.gw, current.ID)
	require.NoError(t, err)
	assert.Equal(t, userdomain.TierPremium, got.SubscriptionTier)
}

func TestRecurringTransactionsJobHonorsEntitlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	premium := f.createUser(t, userdomain.TierPremium, ptrTime(f.clock.Now().Add(30*24*time.Hour)))
	free := f.createUser(t, userdomain.TierFree, nil)
	premiumRec := f.recurring(t, premium.ID, "2025-03-15")
	freeRec := f.recurring(t, free.ID, "2025-03-10")

	n, err := f.sched.RecurringTransactionsJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := f.finance.Recurring().Get(ctx, premium.ID, premiumRec.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-04-15", got.NextDate)

	expenses, err := f.finance.Expenses().List(ctx, premium.ID, financedomain.Filter{})
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.True(t, decimal.RequireFromString("12.99").Equal(expenses[0].Amount))

	got, err = f.finance.Recurring().Get(ctx, free.ID, freeRec.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", got.NextDate)
}

func TestPurgeTokensJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, userdomain.TierFree, nil)
	now := f.clock.Now()

	for i, expiresAt := range []time.Time{now.Add(-time.Minute), now.Add(time.Hour)} {
		require.NoError(t, f.auth.InsertToken(ctx, f.gw, authdomain.TokenPasswordReset, &authdomain.OneTimeToken{
			ID:        f.node.Generate(),
			UserID:    user.ID,
			Email:     user.Email,
			TokenHash: strings.Repeat(string(rune('a'+i)), 64),
			ExpiresAt: expiresAt,
			CreatedAt: now,
		}))
	}

	n, err := f.sched.PurgeTokensJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	kept, err := f.auth.FindToken(ctx, f.gw, authdomain.TokenPasswordReset, strings.Repeat("b", 64))
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestRunOnceRecordsEveryJob(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, userdomain.TierPremium, ptrTime(f.clock.Now().Add(-time.Hour)))

	require.NoError(t, f.sched.RunOnce(context.Background()))

	runs, err := testutil.GatherAndCount(f.http.Gatherer(), "fintrack_scheduler_job_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 3, runs)
	expected := `
# HELP fintrack_scheduler_items_processed_total Rows touched by scheduler jobs.
# TYPE fintrack_scheduler_items_processed_total counter
fintrack_scheduler_items_processed_total{env="test",job="expire_subscriptions",service="fintrack"} 1
`
	require.NoError(t, testutil.GatherAndCompare(f.http.Gatherer(), strings.NewReader(expected), "fintrack_scheduler_items_processed_total"))
}

func TestRunJobTimeoutIsSoft(t *testing.T) {
	f := newFixture(t)

	err := f.sched.runJob(context.Background(), "timeout_job", 5*time.Millisecond, func(ctx context.Context) (int64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	expected := `
# HELP fintrack_scheduler_job_errors_total Scheduler job failures by name.
# TYPE fintrack_scheduler_job_errors_total counter
fintrack_scheduler_job_errors_total{env="test",job="timeout_job",service="fintrack"} 1
`
	require.NoError(t, testutil.GatherAndCompare(f.http.Gatherer(), strings.NewReader(expected), "fintrack_scheduler_job_errors_total"))
}

func TestRunJobWrapsFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")

	err := f.sched.runJob(context.Background(), "failing_job", time.Second, func(context.Context) (int64, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing_job")
}
