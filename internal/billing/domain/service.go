package domain

import (
	"context"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fintrack/pkg/db"
)

type Repository interface {
	// InsertEvent records a delivery; ErrDuplicateEvent when its provider
	// event id was recorded before.
	InsertEvent(ctx context.Context, gw db.Gateway, event *EventRecord) error
	FindEvent(ctx context.Context, gw db.Gateway, provider, providerEventID string) (*EventRecord, error)
}

// Client is the subset of the payment provider API the service calls.
type Client interface {
	Configured() bool
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	RetrieveSubscription(ctx context.Context, id string) (*Subscription, error)
}

type Service interface {
	// HandleWebhook verifies and applies one delivery. Duplicate and unknown
	// events return nil.
	HandleWebhook(ctx context.Context, payload []byte, headers http.Header) error
	CreateCheckoutSession(ctx context.Context, userID snowflake.ID, priceID, planType string) (*CheckoutResult, error)
	CreatePortalSession(ctx context.Context, userID snowflake.ID) (string, error)
}
