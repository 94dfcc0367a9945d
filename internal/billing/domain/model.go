package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const ProviderStripe = "stripe"

const (
	EventCheckoutCompleted      = "checkout.session.completed"
	EventSubscriptionUpdated    = "customer.subscription.updated"
	EventSubscriptionDeleted    = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded ="invoice.payment_succeeded"
	EventInvoicePaymentFailed   = "invoice.payment_failed"
)

// EventRecord is one processed provider delivery, keyed by the provider's
// event id.
type EventRecord struct {
	ID              snowflake.ID   `json:"id"`
	Provider        string         `json:"provider"`
	ProviderEventID string         `json:"provider_event_id"`
	EventType       string         `json:"event_type"`
	Payload         datatypes.JSON `json:"payload"`
	ProcessedAt     time.Time      `json:"processed_at"`
}

// Event is the verified envelope of a webhook delivery.
type Event struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    EventData       `json:"data"`
	Raw     json.RawMessage `json:"-"`
}

type EventData struct {
	Object json.RawMessage `json:"object"`
}

type CheckoutSession struct {
	ID                string            `json:"id"`
	URL               string            `json:"url"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

type Subscription struct {
	ID               string `json:"id"`
	Customer         string `json:"customer"`
	Status           string `json:"status"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
}

// PeriodEnd converts the provider's unix period end, nil when unset.
func (s *Subscription) PeriodEnd() *time.Time {
	if s == nil || s.CurrentPeriodEnd <= 0 {
		return nil
	}
	t := time.Unix(s.CurrentPeriodEnd, 0).UTC()
	return &t
}

type Invoice struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
}

type CheckoutRequest struct {
	PriceID       string
	CustomerEmail string
	UserID        snowflake.ID
	PlanType      string
	SuccessURL    string
	CancelURL     string
}

type CheckoutResult struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}
