package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/fintrack/internal/auth/domain"
	"github.com/smallbiznis/fintrack/internal/clock"
	"github.com/smallbiznis/fintrack/internal/config"
	entdomain "github.com/smallbiznis/fintrack/internal/entitlement/domain"
	financedomain "github.com/smallbiznis/fintrack/internal/finance/domain"
	obsmetrics "github.com/smallbiznis/fintrack/internal/observability/metrics"
	"github.com/smallbiznis/fintrack/internal/ratelimit"
	userdomain "github.com/smallbiznis/fintrack/internal/user/domain"
	"github.com/smallbiznis/fintrack/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobExpireSubscriptions = "expire_subscriptions"
	JobRecurring           = "recurring_transactions"
	JobPurgeTokens         = "purge_tokens"

	defaultInterval = time.Minute
	jobTimeout      = 30 * time.Second
)

type Params struct {
	fx.In

	Config      config.Config
	DB          db.Gateway
	Log         *zap.Logger
	Clock       clock.Clock
	GenID       *snowflake.Node
	Entitlement entdomain.Service
	Finance     financedomain.Service
	Users       userdomain.Repository
	AuthRepo    authdomain.Repository
	Locker      *ratelimit.Locker           `optional:"true"`
	Metrics     *obsmetrics.SchedulerMetrics `optional:"true"`
}

type Scheduler struct {
	db          db.Gateway
	log         *zap.Logger
	clock       clock.Clock
	genID       *snowflake.Node
	interval    time.Duration
	entitlement entdomain.Service
	finance     financedomain.Service
	users       userdomain.Repository
	authRepo    authdomain.Repository
	locker      *ratelimit.Locker
	metrics     *obsmetrics.SchedulerMetrics
}

func New(p Params) *Scheduler {
	interval := p.Config.SchedulerInterval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		db:          p.DB,
		log:         p.Log.Named("scheduler"),
		clock:       p.Clock,
		genID:       p.GenID,
		interval:    interval,
		entitlement: p.Entitlement,
		finance:     p.Finance,
		users:       p.Users,
		authRepo:    p.AuthRepo,
		locker:      p.Locker,
		metrics:     p.Metrics,
	}
}

type job struct {
	name string
	run  func(ctx context.Context) (int64, error)
}

func (s *Scheduler) jobs() []job {
	return []job{
		{JobExpireSubscriptions, s.ExpireSubscriptionsJob},
		{JobRecurring, s.RecurringTransactionsJob},
		{JobPurgeTokens, s.PurgeTokensJob},
	}
}

// RunOnce runs every job once. A failing job does not stop the ones after it.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	for _, j := range s.jobs() {
		err = errors.Join(err, s.runJob(parent, j.name, jobTimeout, j.run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) (int64, error),
) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	lease, acquired, err := s.locker.AcquireJob(ctx, name, timeout)
	if err != nil {
		s.log.Warn("scheduler lease unavailable", zap.String("job", name), zap.Error(err))
		return nil
	}
	if !acquired {
		s.log.Debug("scheduler job held by another instance", zap.String("job", name))
		return nil
	}
	defer func() {
		if err := lease.Release(context.Background()); err != nil {
			s.log.Warn("scheduler lease release failed", zap.String("job", name), zap.Error(err))
		}
	}()

	run := s.startRun(name)
	s.logJobStart(run)

	processed, err := fn(ctx)
	run.processedCount = processed
	if err != nil {
		run.errorCount++
	}
	s.metrics.ObserveJob(name, s.clock.Now().Sub(run.startedAt), processed, err)
	s.logJobFinish(run)
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.String("run_id", run.runID),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// ExpireSubscriptionsJob demotes premium rows whose paid period has ended.
func (s *Scheduler) ExpireSubscriptionsJob(ctx context.Context) (int64, error) {
	return s.entitlement.ExpireOverdue(ctx)
}

// RecurringTransactionsJob books due recurring rows for owners still entitled
// to recurring transactions.
func (s *Scheduler) RecurringTransactionsJob(ctx context.Context) (int64, error) {
	count, err := s.finance.MaterializeDue(ctx, s.recurringEligible)
	return int64(count), err
}

func (s *Scheduler) recurringEligible(ctx context.Context, userID snowflake.ID) (bool, error) {
	user, err := s.users.FindByID(ctx, s.db, userID)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}
	return s.entitlement.HasFeature(user, entdomain.FeatureRecurringTransactions), nil
}

// PurgeTokensJob drops expired verification and reset tokens.
func (s *Scheduler) PurgeTokensJob(ctx context.Context) (int64, error) {
	now := s.clock.Now()
	var total int64
	for _, kind := range []authdomain.TokenKind{authdomain.TokenEmailVerification, authdomain.TokenPasswordReset} {
		n, err := s.authRepo.DeleteExpiredTokens(ctx, s.db, kind, now)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
