package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	entitlementdomain "github.com/smallbiznis/fintrack/internal/entitlement/domain"
	obscontext "github.com/smallbiznis/fintrack/internal/observability/context"
	"github.com/smallbiznis/fintrack/internal/observability/logger"
	userdomain "github.com/smallbiznis/fintrack/internal/user/domain"
	"github.com/smallbiznis/fintrack/internal/usercontext"
	"go.uber.org/zap"
)

const contextUserIDKey = "user_id"

// AuthRequired resolves the bearer token into the request's user id.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		userID, err := s.authsvc.Authenticate(c.Request.Context(), raw)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := usercontext.WithUserID(c.Request.Context(), userID)
		ctx = obscontext.WithUserID(ctx, userID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextUserIDKey, userID.String())
		c.Next()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// currentUserID aborts with 401 when the request carries no user.
func currentUserID(c *gin.Context) (snowflake.ID, bool) {
	userID, ok := usercontext.UserIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return 0, false
	}
	return userID, true
}

// RequireLimit rejects the request once the user's quota of resource is used.
func (s *Server) RequireLimit(resource entitlementdomain.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		if _, err := s.entitlementSvc.RequireLimit(c.Request.Context(), userID, resource); err != nil {
			logDenied(c, err)
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) RequireFeature(feature entitlementdomain.Feature) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		if err := s.entitlementSvc.RequireFeature(c.Request.Context(), userID, feature); err != nil {
			logDenied(c, err)
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) RequireTier(tier userdomain.Tier) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		if err := s.entitlementSvc.RequireTier(c.Request.Context(), userID, tier); err != nil {
			logDenied(c, err)
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func logDenied(c *gin.Context, err error) {
	denied, ok := entitlementdomain.AsDenied(err)
	if !ok {
		return
	}
	logger.FromContext(c.Request.Context()).Info("entitlement denied",
		zap.String("reason", denied.Err.Error()),
		zap.String("tier", string(denied.Tier)),
		zap.String("resource", string(denied.Resource)),
		zap.String("feature", string(denied.Feature)),
	)
}
