package auth

import (
	"github.com/smallbiznis/fintrack/internal/auth/oauth"
	"github.com/smallbiznis/fintrack/internal/auth/repository"
	"github.com/smallbiznis/fintrack/internal/auth/service"
	"github.com/smallbiznis/fintrack/internal/auth/token"
	"go.uber.org/fx"
)

var Module = fx.Module("auth",
	fx.Provide(repository.Provide),
	fx.Provide(token.NewIssuer),
	fx.Provide(oauth.NewGoogleVerifier),
	fx.Provide(service.New),
)
