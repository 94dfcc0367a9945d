package billing

import (
	"github.com/smallbiznis/fintrack/internal/billing/domain"
	"github.com/smallbiznis/fintrack/internal/billing/repository"
	"github.com/smallbiznis/fintrack/internal/billing/service"
	"github.com/smallbiznis/fintrack/internal/billing/stripe"
	"go.uber.org/fx"
)

var Module = fx.Module("billing",
	fx.Provide(repository.Provide),
	fx.Provide(
		fx.Annotate(stripe.NewClient, fx.As(new(domain.Client))),
	),
	fx.Provide(service.New),
)
