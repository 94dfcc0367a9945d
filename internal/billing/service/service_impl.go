package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fintrack/internal/billing/domain"
	"github.com/smallbiznis/fintrack/internal/billing/stripe"
	"github.com/smallbiznis/fintrack/internal/clock"
	"github.com/smallbiznis/fintrack/internal/config"
	"github.com/smallbiznis/fintrack/internal/observability/metrics"
	userdomain "github.com/smallbiznis/fintrack/internal/user/domain"
	"github.com/smallbiznis/fintrack/internal/validation"
	"github.com/smallbiznis/fintrack/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Params struct {
	fx.In

	Config  config.Config
	DB      db.Gateway
	Log     *zap.Logger
	Clock   clock.Clock
	GenID   *snowflake.Node
	Users   userdomain.Repository
	Repo    domain.Repository
	Client  domain.Client
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      db.Gateway
	log     *zap.Logger
	clock   clock.Clock
	genID   *snowflake.Node
	users   userdomain.Repository
	repo    domain.Repository
	client  domain.Client
	metrics *metrics.Metrics

	webhookSecret  string
	defaultPriceID string
	frontendURL    string
}

func New(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("billing.service"),
		clock:          p.Clock,
		genID:          p.GenID,
		users:          p.Users,
		repo:           p.Repo,
		client:         p.Client,
		metrics:        p.Metrics,
		webhookSecret:  p.Config.Stripe.WebhookSecret,
		defaultPriceID: p.Config.Stripe.PriceID,
		frontendURL:    p.Config.FrontendURL,
	}
}

func (s *Service) HandleWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	if strings.TrimSpace(s.webhookSecret) == "" {
		return domain.ErrNotConfigured
	}
	if err := stripe.VerifySignature(payload, headers.Get("Stripe-Signature"), s.webhookSecret, s.clock.Now(), stripe.DefaultTolerance); err != nil {
		s.metrics.RecordWebhookEvent(ctx, domain.ProviderStripe, "unknown", "invalid_signature")
		s.log.Warn("webhook signature verification failed")
		return err
	}

	var event domain.Event
	if err := json.Unmarshal(payload, &event); err != nil || strings.TrimSpace(event.ID) == "" {
		return domain.ErrInvalidPayload
	}
	event.Raw = payload
	log := s.log.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))

	existing, err := s.repo.FindEvent(ctx, s.db, domain.ProviderStripe, event.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		s.metrics.RecordWebhookEvent(ctx, domain.ProviderStripe, event.Type, "duplicate")
		log.Info("webhook event already processed")
		return nil
	}

	apply, err := s.plan(ctx, event, log)
	if err != nil {
		s.metrics.RecordWebhookEvent(ctx, domain.ProviderStripe, event.Type, "error")
		return err
	}
	if apply == nil {
		s.metrics.RecordWebhookEvent(ctx, domain.ProviderStripe, event.Type, "ignored")
		log.Info("unhandled webhook event type")
		return nil
	}

	err = s.db.Transaction(ctx, func(tx db.Gateway) error {
		if err := s.repo.InsertEvent(ctx, tx, &domain.EventRecord{
			ID:              s.genID.Generate(),
			Provider:        domain.ProviderStripe,
			ProviderEventID: event.ID,
			EventType:       event.Type,
			Payload:         datatypes.JSON(payload),
			ProcessedAt:     s.clock.Now(),
		}); err != nil {
			return err
		}
		return apply(tx)
	})
	if errors.Is(err, domain.ErrDuplicateEvent) {
		s.metrics.RecordWebhookEvent(ctx, domain.ProviderStripe, event.Type, "duplicate")
		return nil
	}
	if err != nil {
		s.metrics.RecordWebhookEvent(ctx, domain.ProviderStripe, event.Type, "error")
		log.Error("failed to apply webhook event", zap.Error(err))
		return err
	}

	s.metrics.RecordWebhookEvent(ctx, domain.ProviderStripe, event.Type, "processed")
	return nil
}

// plan decodes the event and performs provider lookups outside the
// transaction. A nil func means the event type is not handled.
func (s *Service) plan(ctx context.Context, event domain.Event, log *zap.Logger) (func(tx db.Gateway) error, error) {
	switch event.Type {
	case domain.EventCheckoutCompleted:
		var session domain.CheckoutSession
		if err := json.Unmarshal(event.Data.Object, &session); err != nil {
			return nil, domain.ErrInvalidPayload
		}
		return s.checkoutCompleted(ctx, session, log), nil

	case domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted:
		var sub domain.Subscription
		if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
			return nil, domain.ErrInvalidPayload
		}
		deleted := event.Type == domain.EventSubscriptionDeleted
		return func(tx db.Gateway) error {
			return s.subscriptionChanged(ctx, tx, sub, deleted, log)
		}, nil

	case domain.EventInvoicePaymentSucceeded, domain.EventInvoicePaymentFailed:
		var invoice domain.Invoice
		if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
			return nil, domain.ErrInvalidPayload
		}
		return func(tx db.Gateway) error {
			user, err := s.users.FindByStripeCustomerID(ctx, tx, invoice.Customer)
			if err != nil {
				return err
			}
			if user == nil {
				log.Info("invoice for unknown customer", zap.String("customer_id", invoice.Customer))
				return nil
			}
			log.Info("invoice payment event",
				zap.String("user_id", user.ID.String()),
				zap.String("invoice_id", invoice.ID),
			)
			return nil
		}, nil
	}
	return nil, nil
}

func (s *Service) checkoutCompleted(ctx context.Context, session domain.CheckoutSession, log *zap.Logger) func(tx db.Gateway) error {
	raw := strings.TrimSpace(session.Metadata["userId"])
	if raw == "" {
		raw = strings.TrimSpace(session.ClientReferenceID)
	}
	userID, parseErr := snowflake.ParseString(raw)

	var sub *domain.Subscription
	if parseErr == nil && session.Subscription != "" && s.client != nil && s.client.Configured() {
		retrieved, err := s.client.RetrieveSubscription(ctx, session.Subscription)
		if err != nil {
			log.Warn("failed to retrieve subscription, activating without expiry",
				zap.String("subscription_id", session.Subscription),
				zap.Error(err),
			)
		} else {
			sub = retrieved
		}
	}

	return func(tx db.Gateway) error {
		if parseErr != nil || userID == 0 {
			log.Error("checkout session without user reference", zap.String("session_id", session.ID))
			return nil
		}

		state := userdomain.SubscriptionState{
			Tier:      userdomain.TierPremium,
			Status:    userdomain.StatusActive,
			ExpiresAt: sub.PeriodEnd(),
		}
		customer, subscriptionID := session.Customer, session.Subscription
		if sub != nil {
			if sub.Customer != "" {
				customer = sub.Customer
			}
			if sub.ID != "" {
				subscriptionID = sub.ID
			}
		}
		if customer != "" {
			state.CustomerID = &customer
		}
		if subscriptionID != "" {
			state.SubscriptionID = &subscriptionID
		}

		ok, err := s.users.ApplySubscription(ctx, tx, userID, state, s.clock.Now())
		if err != nil {
			return err
		}
		if !ok {
			log.Warn("checkout completed for unknown user", zap.String("user_id", userID.String()))
			return nil
		}
		log.Info("subscription activated", zap.String("user_id", userID.String()))
		return nil
	}
}

func (s *Service) subscriptionChanged(ctx context.Context, tx db.Gateway, sub domain.Subscription, deleted bool, log *zap.Logger) error {
	user, err := s.users.FindByStripeCustomerID(ctx, tx, sub.Customer)
	if err != nil {
		return err
	}
	if user == nil {
		log.Warn("subscription event for unknown customer", zap.String("customer_id", sub.Customer))
		return nil
	}

	state := userdomain.SubscriptionState{ExpiresAt: sub.PeriodEnd()}
	switch {
	case deleted:
		state.Tier = userdomain.TierFree
		state.Status = userdomain.StatusCancelled
	case sub.Status == "active":
		state.Tier = userdomain.TierPremium
		state.Status = userdomain.StatusActive
	default:
		state.Tier = user.SubscriptionTier
		state.Status = userdomain.StatusInactive
	}
	if sub.ID != "" {
		state.SubscriptionID = &sub.ID
	}

	if _, err := s.users.ApplySubscription(ctx, tx, user.ID, state, s.clock.Now()); err != nil {
		return err
	}
	if deleted {
		s.metrics.RecordDowngrade(ctx, "webhook")
	}
	log.Info("subscription updated",
		zap.String("user_id", user.ID.String()),
		zap.String("tier", string(state.Tier)),
		zap.String("status", string(state.Status)),
	)
	return nil
}

func (s *Service) CreateCheckoutSession(ctx context.Context, userID snowflake.ID, priceID, planType string) (*domain.CheckoutResult, error) {
	if s.client == nil || !s.client.Configured() {
		return nil, domain.ErrNotConfigured
	}
	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		priceID = s.defaultPriceID
	}
	if err := validation.Missing(validation.Require("price_id", priceID)); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrNotFound
	}

	if planType == "" {
		planType = "monthly"
	}
	session, err := s.client.CreateCheckoutSession(ctx, domain.CheckoutRequest{
		PriceID:       priceID,
		CustomerEmail: user.Email,
		UserID:        user.ID,
		PlanType:      planType,
		SuccessURL:    s.frontendURL + "/upgrade?success=true&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.frontendURL + "/upgrade?canceled=true",
	})
	if err != nil {
		s.log.Error("failed to create checkout session", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, err
	}
	return &domain.CheckoutResult{SessionID: session.ID, URL: session.URL}, nil
}

func (s *Service) CreatePortalSession(ctx context.Context, userID snowflake.ID) (string, error) {
	if s.client == nil || !s.client.Configured() {
		return "", domain.ErrNotConfigured
	}
	user, err := s.users.FindByID(ctx, s.db, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", userdomain.ErrNotFound
	}
	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return "", domain.ErrNoCustomer
	}
	return s.client.CreatePortalSession(ctx, *user.StripeCustomerID, s.frontendURL+"/upgrade")
}
