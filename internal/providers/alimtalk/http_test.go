package alimtalk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smallbiznis/ordersignal/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, status int, body sendResponse) *HTTPProvider {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/alimtalk/messages", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return NewHTTP(Config{APIURL: srv.URL, APIKey: "test-key"})
}

func TestSendSuccess(t *testing.T) {
	p := newTestProvider(t, http.StatusOK, sendResponse{MessageID: "at-123"})

	res, err := p.Send(context.Background(), "010-1234-5678", "order_delivery_confirm", map[string]string{"company": "Hanil"})
	require.NoError(t, err)
	assert.Equal(t, "at-123", res.ProviderMessageID)
}

func TestTemplateRejectionIsPermanent(t *testing.T) {
	p := newTestProvider(t, http.StatusUnprocessableEntity, sendResponse{Code: "TEMPLATE_NOT_APPROVED"})

	_, err := p.Send(context.Background(), "010-1234-5678", "bad_template", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, providers.ErrPermanent)
	assert.NotErrorIs(t, err, providers.ErrCritical)
}

func TestAccountFailureIsCritical(t *testing.T) {
	p := newTestProvider(t, http.StatusPaymentRequired, sendResponse{Code: "ACCOUNT_SUSPENDED"})

	_, err := p.Send(context.Background(), "010-1234-5678", "order_delivery_confirm", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, providers.ErrCritical)
}

func TestServerErrorIsTransient(t *testing.T) {
	p := newTestProvider(t, http.StatusBadGateway, sendResponse{})

	_, err := p.Send(context.Background(), "010-1234-5678", "order_delivery_confirm", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, providers.ErrPermanent)
	assert.NotErrorIs(t, err, providers.ErrCritical)
}
