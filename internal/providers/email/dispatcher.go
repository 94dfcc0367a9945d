package email

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/fintrack/internal/observability/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// SendTimeout bounds every delivery attempt.
const SendTimeout = 15 * time.Second

// Dispatcher runs each delivery on its own goroutine so callers decide
// whether to wait for the result.
type Dispatcher struct {
	transport Transport
	log       *zap.Logger
	metrics   *metrics.Metrics
	timeout   time.Duration
	limiter   *rate.Limiter
}

func NewDispatcher(transport Transport, log *zap.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		log:       log.Named("email.dispatcher"),
		metrics:   m,
		timeout:   SendTimeout,
	}
}

// Throttle caps deliveries at perSecond across all callers; email APIs
// reject bursts above their account rate. Zero or less removes the cap.
func (d *Dispatcher) Throttle(perSecond int) {
	if perSecond <= 0 {
		d.limiter = nil
		return
	}
	d.limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
}

func (d *Dispatcher) Send(ctx context.Context, msg Message) <-chan Result {
	out := make(chan Result, 1)

	// Detached from the request so a finished handler does not cancel delivery.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	go func() {
		defer cancel()
		out <- d.deliver(sendCtx, msg)
	}()
	return out
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("email transport panic: %v", r)}
		}
		d.metrics.RecordEmailSend(ctx, d.transport.Name(), res.Sent)
		if res.Err != nil && !errors.Is(res.Err, ErrNotConfigured) {
			d.log.Warn("email delivery failed",
				zap.String("transport", d.transport.Name()),
				zap.String("subject", msg.Subject),
				zap.Error(res.Err),
			)
		}
	}()

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return Result{Err: fmt.Errorf("email send throttled: %w", err)}
		}
	}

	id, err := d.transport.Deliver(ctx, msg)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("email send timed out after %s: %w", d.timeout, err)
		}
		return Result{Err: err}
	}
	d.log.Debug("email sent",
		zap.String("transport", d.transport.Name()),
		zap.String("message_id", id),
	)
	return Result{Sent: true, MessageID: id}
}

// Wait blocks for the result until ctx ends or SendTimeout passes, even
// when the transport ignores its own deadline.
func Wait(ctx context.Context, ch <-chan Result) Result {
	return wait(ctx, ch, SendTimeout)
}

func wait(ctx context.Context, ch <-chan Result, limit time.Duration) Result {
	timer := time.NewTimer(limit)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	case <-timer.C:
		return Result{Err: fmt.Errorf("email result not ready after %s: %w", limit, context.DeadlineExceeded)}
	}
}
