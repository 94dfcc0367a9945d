package domain

import "errors"

var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrNotConfigured    = errors.New("billing_not_configured")
	ErrPriceRequired    = errors.New("price_id_required")
	ErrNoCustomer       = errors.New("no_billing_customer")
	ErrDuplicateEvent   = errors.New("duplicate_event")
)

// ProviderError carries a non-success answer of the payment provider API.
type ProviderError struct {
	Status  int
	Type    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return "payment provider error"
	}
	return e.Message
}
