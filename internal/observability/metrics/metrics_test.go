package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("tier", "free"),
		attribute.String("user_id", "456"),
		attribute.String("resource", "expenses_per_month"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "user_id" {
			t.Fatalf("expected user_id to be dropped")
		}
	}
}

func TestNoopMetricsAcceptRecords(t *testing.T) {
	m := NewNoop()
	if m == nil {
		t.Fatalf("expected noop metrics")
	}
	ctx := context.Background()
	m.RecordEntitlementDenied(ctx, "limit_reached", "free", "bank_accounts")
	m.RecordWebhookEvent(ctx, "stripe", "checkout.session.completed", "processed")

	var nilMetrics *Metrics
	nilMetrics.RecordEmailSend(ctx, "smtp", false)
}

func TestHTTPMetricsExposeRouteCounters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	httpMetrics, err := newHTTPMetrics(prometheus.NewRegistry(), Config{ServiceName: "fintrack", Environment: "test"})
	if err != nil {
		t.Fatalf("new http metrics: %v", err)
	}
	sched, err := NewSchedulerMetrics(Config{}, httpMetrics)
	if err != nil {
		t.Fatalf("new scheduler metrics: %v", err)
	}
	sched.ObserveJob("expire_subscriptions", 10*time.Millisecond, 2, errors.New("boom"))

	r := gin.New()
	r.Use(httpMetrics.GinMiddleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(httpMetrics.Handler()))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `fintrack_http_requests_total{env="test",method="GET",route="/health",service="fintrack",status_code="200"} 1`) {
		t.Fatalf("expected request counter in output, got:\n%s", body)
	}
	if !strings.Contains(body, "fintrack_scheduler_job_errors_total") {
		t.Fatalf("expected scheduler metrics in output")
	}
}
