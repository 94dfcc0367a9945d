package server

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/fintrack/internal/auth/domain"
	"github.com/smallbiznis/fintrack/internal/auth/oauth"
	billingdomain "github.com/smallbiznis/fintrack/internal/billing/domain"
	entitlementdomain "github.com/smallbiznis/fintrack/internal/entitlement/domain"
	financedomain "github.com/smallbiznis/fintrack/internal/finance/domain"
	"github.com/smallbiznis/fintrack/internal/observability/logger"
	userdomain "github.com/smallbiznis/fintrack/internal/user/domain"
	"github.com/smallbiznis/fintrack/internal/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string                  `json:"type"`
	Message string                  `json:"message"`
	Errors  []validation.FieldError `json:"errors,omitempty"`

	Tier       userdomain.Tier            `json:"tier,omitempty"`
	Resource   entitlementdomain.Resource `json:"resource,omitempty"`
	Feature    entitlementdomain.Feature  `json:"feature,omitempty"`
	Current    *int64                     `json:"current,omitempty"`
	Limit      *int64                     `json:"limit,omitempty"`
	UpgradeURL string                     `json:"upgrade_url,omitempty"`

	Detail string `json:"detail,omitempty"`
	Stack  string `json:"stack,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

// ErrorHandlingMiddleware renders the last error attached to the context.
// With exposeDetail set, internal errors carry their message.
func ErrorHandlingMiddleware(exposeDetail bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if status == http.StatusInternalServerError {
			logger.FromContext(c.Request.Context()).Error("request failed", zap.Error(lastErr.Err))
			if exposeDetail {
				payload.Detail = lastErr.Err.Error()
			}
		}
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

// RecoveryMiddleware turns a panic into an internal_error response. The
// stack is only returned with exposeDetail.
func RecoveryMiddleware(exposeDetail bool) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		stack := string(debug.Stack())
		logger.FromContext(c.Request.Context()).Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("stack", stack),
		)

		_, payload := mapError(nil)
		if exposeDetail {
			payload.Detail = fmt.Sprint(recovered)
			payload.Stack = stack
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: payload})
	})
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return validation.Invalid("request", "invalid request")
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr, ok := validation.As(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: vErr.Message,
			Errors:  vErr.Fields,
		}
	}

	if denied, ok := entitlementdomain.AsDenied(err); ok {
		return http.StatusForbidden, deniedPayload(denied)
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: unauthorizedMessage(err),
		}
	case errors.Is(err, oauth.ErrInvalidCredential):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "Invalid Google credential",
		}
	case errors.Is(err, oauth.ErrNotConfigured):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "Google sign-in is not configured",
		}
	case errors.Is(err, authdomain.ErrEmailNotVerified):
		return http.StatusForbidden, errorPayload{
			Type:    "email_not_verified",
			Message: "Please verify your email address before logging in",
		}
	case errors.Is(err, authdomain.ErrEmailRegistered):
		return http.StatusBadRequest, errorPayload{
			Type:    "conflict",
			Message: "Email already registered",
		}
	case errors.Is(err, authdomain.ErrEmailPendingVerification):
		return http.StatusBadRequest, errorPayload{
			Type:    "conflict",
			Message: "Email already registered but not verified. Please check your email or request a new verification link.",
		}
	case errors.Is(err, authdomain.ErrInvalidToken):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_token",
			Message: "Invalid or unknown token",
		}
	case errors.Is(err, authdomain.ErrTokenUsed):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_token",
			Message: "Token has already been used",
		}
	case errors.Is(err, authdomain.ErrTokenExpired):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_token",
			Message: "Token has expired",
		}
	case errors.Is(err, billingdomain.ErrInvalidSignature):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_signature",
			Message: "webhook signature verification failed",
		}
	case errors.Is(err, billingdomain.ErrInvalidPayload),
		errors.Is(err, billingdomain.ErrPriceRequired),
		errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: err.Error(),
		}
	case errors.Is(err, billingdomain.ErrNoCustomer):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: "No billing customer for this user",
		}
	case errors.Is(err, billingdomain.ErrNotConfigured):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "billing is not configured",
		}
	case errors.Is(err, entitlementdomain.ErrUnsupportedResource):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "Unknown resource type",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "Too many requests, please try again later.",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: notFoundMessage(err),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func deniedPayload(denied *entitlementdomain.DeniedError) errorPayload {
	current, limit := denied.Current, denied.Limit
	payload := errorPayload{
		Type:       denied.Err.Error(),
		Tier:       denied.Tier,
		Resource:   denied.Resource,
		Feature:    denied.Feature,
		Current:    &current,
		Limit:      &limit,
		UpgradeURL: entitlementdomain.UpgradeURL,
	}

	switch {
	case errors.Is(denied, entitlementdomain.ErrLimitReached):
		payload.Message = fmt.Sprintf("You've reached your limit of %d %s. Upgrade to Premium for unlimited access.",
			denied.Limit, humanize(string(denied.Resource)))
	case errors.Is(denied, entitlementdomain.ErrSubscriptionExpired):
		payload.Message = "Your Premium subscription has expired. Please renew to continue using Premium features."
	case errors.Is(denied, entitlementdomain.ErrFeatureNotAvailable):
		payload.Message = "This feature is not available on your current plan"
	default:
		payload.Message = "This feature requires a Premium subscription"
	}
	return payload
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, financedomain.ErrNotFound),
		errors.Is(err, financedomain.ErrBankAccountNotFound),
		errors.Is(err, financedomain.ErrCreditCardNotFound),
		errors.Is(err, financedomain.ErrDebitCardNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, userdomain.ErrNotFound):
		return "User not found"
	case errors.Is(err, financedomain.ErrBankAccountNotFound):
		return "Bank account not found"
	case errors.Is(err, financedomain.ErrCreditCardNotFound):
		return "Credit card not found"
	case errors.Is(err, financedomain.ErrDebitCardNotFound):
		return "Debit card not found"
	default:
		return "not found"
	}
}

func unauthorizedMessage(err error) string {
	if errors.Is(err, authdomain.ErrInvalidCredentials) {
		return "Invalid credentials"
	}
	return "Authentication required"
}

// classifyErrorForLog feeds the request logger the same type the client sees.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	return payload.Type, http.StatusText(status)
}

func humanize(resource string) string {
	return strings.ReplaceAll(resource, "_", " ")
}
