package service

import (
	"context"
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fintrack/internal/clock"
	"github.com/smallbiznis/fintrack/internal/entitlement/domain"
	"github.com/smallbiznis/fintrack/internal/observability/metrics"
	userdomain "github.com/smallbiznis/fintrack/internal/user/domain"
	"github.com/smallbiznis/fintrack/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	DB      db.Gateway
	Log     *zap.Logger
	Clock   clock.Clock
	Users   userdomain.Repository
	Repo    domain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      db.Gateway
	log     *zap.Logger
	clock   clock.Clock
	users   userdomain.Repository
	repo    domain.Repository
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("entitlement.service"),
		clock:   p.Clock,
		users:   p.Users,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) HasFeature(user *userdomain.User, feature domain.Feature) bool {
	return domain.HasFeature(user, feature, s.clock.Now())
}

func (s *Service) CheckLimit(ctx context.Context, userID snowflake.ID, resource domain.Resource) (domain.Result, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return domain.Result{}, err
	}
	return s.checkLimit(ctx, user, resource, s.clock.Now())
}

func (s *Service) checkLimit(ctx context.Context, user *userdomain.User, resource domain.Resource, now time.Time) (domain.Result, error) {
	src, ok := domain.SourceFor(resource)
	if !ok {
		return domain.Result{}, domain.ErrUnsupportedResource
	}

	tier := domain.EffectiveTier(user, now)
	limit, _ := domain.LimitFor(tier, resource)
	if limit == domain.Unbounded {
		return domain.Result{
			Resource:  resource,
			Allowed:   true,
			Limit:     domain.Unbounded,
			Remaining: domain.Unbounded,
			Unbounded: true,
			Tier:      tier,
		}, nil
	}

	var window *domain.DateWindow
	if src.Monthly {
		w := domain.MonthWindow(now)
		window = &w
	}

	current, err := s.repo.Count(ctx, s.db, src.Table, user.ID, window)
	if err != nil {
		return domain.Result{}, err
	}

	result := domain.Result{
		Resource:  resource,
		Allowed:   current < limit,
		Current:   current,
		Limit:     limit,
		Remaining: max(0, limit-current),
		Tier:      tier,
	}
	if limit > 0 {
		result.Percentage = int(math.Round(float64(current) * 100 / float64(limit)))
	}
	return result, nil
}

func (s *Service) RequireLimit(ctx context.Context, userID snowflake.ID, resource domain.Resource) (domain.Result, error) {
	result, err := s.CheckLimit(ctx, userID, resource)
	if err != nil {
		return domain.Result{}, err
	}
	if result.Allowed {
		return result, nil
	}

	s.metrics.RecordEntitlementDenied(ctx, "limit_reached", string(result.Tier), string(resource))
	s.log.Debug("limit reached",
		zap.String("user_id", userID.String()),
		zap.String("resource", string(resource)),
		zap.Int64("current", result.Current),
		zap.Int64("limit", result.Limit),
	)
	return result, &domain.DeniedError{
		Err:      domain.ErrLimitReached,
		Tier:     result.Tier,
		Resource: resource,
		Current:  result.Current,
		Limit:    result.Limit,
	}
}

func (s *Service) RequireTier(ctx context.Context, userID snowflake.ID, tier userdomain.Tier) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	if user.PremiumExpired(now) {
		changed, err := s.users.DowngradeExpired(ctx, s.db, user.ID, now)
		if err != nil {
			return err
		}
		if changed {
			s.metrics.RecordDowngrade(ctx, "lazy")
			s.log.Info("premium subscription expired, downgraded",
				zap.String("user_id", user.ID.String()),
				zap.Timep("expired_at", user.SubscriptionExpiresAt),
			)
			return s.deny(ctx, domain.ErrSubscriptionExpired, userdomain.TierFree, "")
		}
		// The row moved on since it was read, most likely a renewal.
		if user, err = s.loadUser(ctx, userID); err != nil {
			return err
		}
		if user.PremiumExpired(now) {
			return s.deny(ctx, domain.ErrSubscriptionExpired, userdomain.TierFree, "")
		}
	}

	if tier != userdomain.TierPremium || user.SubscriptionTier == userdomain.TierPremium {
		return nil
	}
	if lapsed(user, now) {
		return s.deny(ctx, domain.ErrSubscriptionExpired, user.SubscriptionTier, "")
	}
	return s.deny(ctx, domain.ErrPremiumRequired, user.SubscriptionTier, "")
}

func (s *Service) RequireFeature(ctx context.Context, userID snowflake.ID, feature domain.Feature) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if s.HasFeature(user, feature) {
		return nil
	}
	return s.deny(ctx, domain.ErrFeatureNotAvailable, user.SubscriptionTier, feature)
}

func (s *Service) Usage(ctx context.Context, userID snowflake.ID) (domain.Usage, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return domain.Usage{}, err
	}

	now := s.clock.Now()
	usage := domain.Usage{
		Tier:      user.SubscriptionTier,
		Status:    user.SubscriptionStatus,
		ExpiresAt: user.SubscriptionExpiresAt,
		Features:  make(map[domain.Feature]bool, len(domain.AllFeatures)),
		Limits:    make([]domain.Result, 0, len(domain.Resources)),
	}
	for _, feature := range domain.AllFeatures {
		usage.Features[feature] = domain.HasFeature(user, feature, now)
	}
	for _, resource := range domain.Resources {
		result, err := s.checkLimit(ctx, user, resource, now)
		if err != nil {
			return domain.Usage{}, err
		}
		usage.Limits = append(usage.Limits, result)
	}
	return usage, nil
}

func (s *Service) ExpireOverdue(ctx context.Context) (int64, error) {
	users, err := s.users.ListPremiumWithExpiry(ctx, s.db)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	var downgraded int64
	for i := range users {
		if !users[i].PremiumExpired(now) {
			continue
		}
		changed, err := s.users.DowngradeExpired(ctx, s.db, users[i].ID, now)
		if err != nil {
			return downgraded, err
		}
		if changed {
			downgraded++
			s.metrics.RecordDowngrade(ctx, "sweep")
		}
	}
	if downgraded > 0 {
		s.log.Info("expired premium subscriptions", zap.Int64("count", downgraded))
	}
	return downgraded, nil
}

func (s *Service) loadUser(ctx context.Context, userID snowflake.ID) (*userdomain.User, error) {
	user, err := s.users.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrNotFound
	}
	return user, nil
}

func (s *Service) deny(ctx context.Context, err error, tier userdomain.Tier, feature domain.Feature) error {
	s.metrics.RecordEntitlementDenied(ctx, err.Error(), string(tier), string(feature))
	return &domain.DeniedError{Err: err, Tier: tier, Feature: feature}
}

// lapsed matches a row already demoted by an earlier downgrade.
func lapsed(user *userdomain.User, now time.Time) bool {
	return user.SubscriptionStatus == userdomain.StatusExpired &&
		user.SubscriptionExpiresAt != nil &&
		user.SubscriptionExpiresAt.Before(now)
}
