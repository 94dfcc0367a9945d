package email

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/fintrack/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubTransport struct {
	delay time.Duration
	id    string
	err   error
	panic bool
}

func (s *stubTransport) Name() string { return "stub" }

func (s *stubTransport) Deliver(ctx context.Context, msg Message) (string, error) {
	if s.panic {
		panic("boom")
	}
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return s.id, s.err
}

func newTestDispatcher(t *testing.T, tr Transport) *Dispatcher {
	return NewDispatcher(tr, zaptest.NewLogger(t), metrics.NewNoop())
}

func TestDispatcherDeliversResult(t *testing.T) {
	d := newTestDispatcher(t, &stubTransport{id: "msg-1"})

	res := Wait(context.Background(), d.Send(context.Background(), Message{To: "a@example.com"}))
	require.NoError(t, res.Err)
	assert.True(t, res.Sent)
	assert.Equal(t, "msg-1", res.MessageID)
}

func TestDispatcherTimeout(t *testing.T) {
	d := newTestDispatcher(t, &stubTransport{delay: time.Second})
	d.timeout = 20 * time.Millisecond

	res := Wait(context.Background(), d.Send(context.Background(), Message{To: "a@example.com"}))
	assert.False(t, res.Sent)
	require.Error(t, res.Err)
	assert.True(t, errors.Is(res.Err, context.DeadlineExceeded))
	assert.Contains(t, res.Err.Error(), "timed out")
}

// stuckTransport never returns until the test ends, whatever its ctx says.
type stuckTransport struct {
	release chan struct{}
}

func (s *stuckTransport) Name() string { return "stuck" }

func (s *stuckTransport) Deliver(ctx context.Context, msg Message) (string, error) {
	<-s.release
	return "", errors.New("released")
}

func TestWaitIsCappedWhenTransportIgnoresDeadline(t *testing.T) {
	tr := &stuckTransport{release: make(chan struct{})}
	t.Cleanup(func() { close(tr.release) })
	d := newTestDispatcher(t, tr)

	start := time.Now()
	res := wait(context.Background(), d.Send(context.Background(), Message{To: "a@example.com"}), 20*time.Millisecond)
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, res.Sent)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func TestDispatcherThrottlesBursts(t *testing.T) {
	d := newTestDispatcher(t, &stubTransport{id: "msg"})
	d.Throttle(1)
	d.timeout = 50 * time.Millisecond

	first := Wait(context.Background(), d.Send(context.Background(), Message{To: "a@example.com"}))
	require.NoError(t, first.Err)

	// The next token is a second away, past the send deadline.
	second := Wait(context.Background(), d.Send(context.Background(), Message{To: "b@example.com"}))
	assert.False(t, second.Sent)
	require.Error(t, second.Err)
	assert.Contains(t, second.Err.Error(), "throttled")

	d.Throttle(0)
	third := Wait(context.Background(), d.Send(context.Background(), Message{To: "c@example.com"}))
	assert.NoError(t, third.Err)
}

func TestDispatcherSurvivesCancelledRequest(t *testing.T) {
	d := newTestDispatcher(t, &stubTransport{delay: 20 * time.Millisecond, id: "late"})

	ctx, cancel := context.WithCancel(context.Background())
	ch := d.Send(ctx, Message{To: "a@example.com"})
	cancel()

	res := Wait(context.Background(), ch)
	require.NoError(t, res.Err)
	assert.Equal(t, "late", res.MessageID)
}

func TestDispatcherRecoversPanic(t *testing.T) {
	d := newTestDispatcher(t, &stubTransport{panic: true})

	res := Wait(context.Background(), d.Send(context.Background(), Message{}))
	assert.False(t, res.Sent)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "panic")
}

func TestNoOpTransportReportsUnsent(t *testing.T) {
	d := newTestDispatcher(t, NoOpTransport{})

	res := Wait(context.Background(), d.Send(context.Background(), Message{To: "a@example.com"}))
	assert.False(t, res.Sent)
	assert.ErrorIs(t, res.Err, ErrNotConfigured)
}

func TestTemplatesRender(t *testing.T) {
	tpl, err := NewTemplates()
	require.NoError(t, err)

	msg, err := tpl.Render(TemplateVerification, "ana@example.com", TemplateData{
		AppName:   "FinTrack",
		Name:      "Ana <script>",
		Link:      "https://app.example.com/verify-email?token=abc",
		ExpiresAt: "2025-01-02 10:00 UTC",
	})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", msg.To)
	assert.Equal(t, "Verify your FinTrack email address", msg.Subject)
	assert.Contains(t, msg.HTML, "token=abc")
	assert.NotContains(t, msg.HTML, "<script>")
	assert.True(t, strings.Contains(msg.Text, "Ana <script>"))

	_, err = tpl.Render(TemplateName("missing"), "x@example.com", TemplateData{})
	assert.Error(t, err)
}

func TestBuildMIME(t *testing.T) {
	body, err := buildMIME("noreply@example.com", "FinTrack", "<id@example.com>", Message{
		To:      "ana@example.com",
		Subject: "Olá",
		HTML:    "<p>hi</p>",
		Text:    "hi",
	})
	require.NoError(t, err)
	s := string(body)
	assert.Contains(t, s, "To: ana@example.com")
	assert.Contains(t, s, "Subject: =?utf-8?q?")
	assert.Contains(t, s, "multipart/alternative")
	assert.Contains(t, s, "text/html; charset=UTF-8")
}
