package sms

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
		assert.Equal(t, "/v1/messages", r.URL.Path)

		var req sendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "1588-0000", req.Sender)

		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return NewHTTP(Config{APIURL: srv.URL, APIKey: "test-key", Sender: "1588-0000"})
}

func TestSendSuccess(t *testing.T) {
	p := newTestProvider(t, http.StatusOK, sendResponse{MessageID: "sms-9"})

	res, err := p.Send(context.Background(), "010-1234-5678", "order received")
	require.NoError(t, err)
	assert.Equal(t, "sms-9", res.ProviderMessageID)
}

func TestInvalidRecipientIsPermanent(t *testing.T) {
	p := newTestProvider(t, http.StatusBadRequest, sendResponse{Code: "INVALID_RECIPIENT"})

	_, err := p.Send(context.Background(), "not-a-phone", "order received")
	require.Error(t, err)
	assert.ErrorIs(t, err, providers.ErrPermanent)
}

func TestUnauthorizedIsCritical(t *testing.T) {
	p := newTestProvider(t, http.StatusUnauthorized, sendResponse{Code: "BAD_API_KEY"})

	_, err := p.Send(context.Background(), "010-1234-5678", "order received")
	require.Error(t, err)
	assert.ErrorIs(t, err, providers.ErrCritical)
}
