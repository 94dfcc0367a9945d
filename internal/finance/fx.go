package finance

import (
	"github.com/smallbiznis/fintrack/internal/finance/repository"
	"github.com/smallbiznis/fintrack/internal/finance/service"
	"go.uber.org/fx"
)

var Module = fx.Module("finance.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
