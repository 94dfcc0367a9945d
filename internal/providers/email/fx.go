package email

import (
	"fmt"

	"github.com/smallbiznis/fintrack/internal/config"
	"github.com/smallbiznis/fintrack/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewTransportFromConfig),
	fx.Provide(NewTemplates),
	fx.Provide(
		fx.Annotate(provideDispatcher, fx.As(new(Sender))),
	),
)

func provideDispatcher(cfg config.Config, transport Transport, log *zap.Logger, m *metrics.Metrics) *Dispatcher {
	d := NewDispatcher(transport, log, m)
	d.Throttle(cfg.Email.SendRate)
	return d
}

// NewTransportFromConfig picks the first configured transport: Resend,
// SendGrid, SMTP, then a no-op that reports every message as unsent.
func NewTransportFromConfig(cfg config.Config, log *zap.Logger) Transport {
	from := cfg.Email.From
	var t Transport
	switch {
	case cfg.Email.ResendAPIKey != "":
		t = NewResend(cfg.Email.ResendAPIKey, fmt.Sprintf("%s <%s>", cfg.Email.FromName, from))
	case cfg.Email.SendGridAPIKey != "":
		t = NewSendGrid(cfg.Email.SendGridAPIKey, from, cfg.Email.FromName)
	case cfg.Email.SMTPHost != "" && cfg.Email.SMTPUser != "":
		if from == "" {
			from = cfg.Email.SMTPUser
		}
		t = NewSMTP(SMTPConfig{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUser,
			Password: cfg.Email.SMTPPassword,
			From:     from,
			FromName: cfg.Email.FromName,
		})
	default:
		t = NoOpTransport{}
	}
	log.Info("email transport selected", zap.String("transport", t.Name()))
	return t
}

var _ Sender = (*Dispatcher)(nil)
