package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/smallbiznis/ordersignal/internal/providers"
)

type Config struct {
	APIURL string
	APIKey string
	Sender string
}

type HTTPProvider struct {
	cfg    Config
	client *http.Client
}

func NewHTTP(cfg Config) *HTTPProvider {
	return &HTTPProvider{cfg: cfg, client: http.DefaultClient}
}

type sendRequest struct {
	Sender  string `json:"sender"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Code      string `json:"code"`
	Detail    string `json:"detail"`
}

func (p *HTTPProvider) Send(ctx context.Context, phone, message string) (providers.Result, error) {
	payload, err := json.Marshal(sendRequest{Sender: p.cfg.Sender, Phone: phone, Message: message})
	if err != nil {
		return providers.Result{}, fmt.Errorf("sms: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return providers.Result{}, fmt.Errorf("sms: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return providers.Result{}, fmt.Errorf("sms: send: %w", err)
	}
	defer resp.Body.Close()

	var body sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil && resp.StatusCode < 300 {
		return providers.Result{}, fmt.Errorf("sms: decode response: %w", err)
	}

	switch {
	case resp.StatusCode < 300:
		return providers.Result{ProviderMessageID: body.MessageID}, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusPaymentRequired:
		return providers.Result{}, fmt.Errorf("sms: %s (%s): %w", body.Code, body.Detail, providers.ErrCritical)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return providers.Result{}, fmt.Errorf("sms: %s (%s): %w", body.Code, body.Detail, providers.ErrPermanent)
	default:
		return providers.Result{}, fmt.Errorf("sms: provider returned %d", resp.StatusCode)
	}
}
