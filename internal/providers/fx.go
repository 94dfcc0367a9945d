package providers

import (
	"github.com/smallbiznis/fintrack/internal/providers/email"
	"github.com/smallbiznis/fintrack/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	fx.Provide(pdf.New),
)
