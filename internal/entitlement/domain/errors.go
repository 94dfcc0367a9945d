package domain

import (
	"errors"

	userdomain "github.com/smallbiznis/fintrack/internal/user/domain"
)

var (
	ErrLimitReached        = errors.New("limit_reached")
	ErrFeatureNotAvailable = errors.New("feature_not_available")
	ErrPremiumRequired     = errors.New("premium_required")
	ErrSubscriptionExpired = errors.New("subscription_expired")
	ErrUnsupportedResource = errors.New("unsupported_resource")
)

// UpgradeURL is where clients send users to lift a restriction.
const UpgradeURL = "/upgrade"

// DeniedError carries the context a client needs to explain a rejection.
type DeniedError struct {
	Err      error
	Tier     userdomain.Tier
	Resource Resource
	Feature  Feature
	Current  int64
	Limit    int64
}

func (e *DeniedError) Error() string {
	return e.Err.Error()
}

func (e *DeniedError) Unwrap() error {
	return e.Err
}

// AsDenied extracts a DeniedError from err's chain.
func AsDenied(err error) (*DeniedError, bool) {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return denied, true
	}
	return nil, false
}
