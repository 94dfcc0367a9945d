package stripe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fintrack/internal/billing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCheckoutSessionEncodesForm(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "sk_test", user)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		_, _ = w.Write([]byte(`{"id":"cs_1","url":"https://checkout.example/cs_1"}`))
	}))
	defer srv.Close()

	client := New("sk_test", srv.URL, srv.Client())
	session, err := client.CreateCheckoutSession(context.Background(), domain.CheckoutRequest{
		PriceID:       "price_1",
		CustomerEmail: "a@example.com",
		UserID:        snowflake.ID(42),
		PlanType:      "yearly",
		SuccessURL:    "https://app/upgrade?success=true",
		CancelURL:     "https://app/upgrade?canceled=true",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", session.ID)
	assert.Equal(t, "https://checkout.example/cs_1", session.URL)

	assert.Equal(t, "subscription", form.Get("mode"))
	assert.Equal(t, "price_1", form.Get("line_items[0][price]"))
	assert.Equal(t, "42", form.Get("metadata[userId]"))
	assert.Equal(t, "yearly", form.Get("metadata[planType]"))
	assert.Equal(t, "a@example.com", form.Get("customer_email"))
}

func TestClientSurfacesProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such price"}}`))
	}))
	defer srv.Close()

	client := New("sk_test", srv.URL, srv.Client())
	_, err := client.RetrieveSubscription(context.Background(), "sub_1")

	var perr *domain.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusBadRequest, perr.Status)
	assert.Equal(t, "No such price", perr.Message)
}

func TestClientRequiresSecretKey(t *testing.T) {
	client := New("", "", nil)
	assert.False(t, client.Configured())

	_, err := client.CreatePortalSession(context.Background(), "cus_1", "https://app/upgrade")
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}
