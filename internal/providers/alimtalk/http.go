package alimtalk

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
}

type HTTPProvider struct {
	cfg    Config
	client *http.Client
}

func NewHTTP(cfg Config) *HTTPProvider {
	return &HTTPProvider{cfg: cfg, client: http.DefaultClient}
}

type sendRequest struct {
	Phone        string            `json:"phone"`
	TemplateCode string            `json:"template_code"`
	Variables    map[string]string `json:"variables,omitempty"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Code      string `json:"code"`
	Detail    string `json:"detail"`
}

func (p *HTTPProvider) Send(ctx context.Context, phone, templateCode string, variables map[string]string) (providers.Result, error) {
	payload, err := json.Marshal(sendRequest{Phone: phone, TemplateCode: templateCode, Variables: variables})
	if err != nil {
		return providers.Result{}, fmt.Errorf("alimtalk: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIURL+"/v2/alimtalk/messages", bytes.NewReader(payload))
	if err != nil {
		return providers.Result{}, fmt.Errorf("alimtalk: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return providers.Result{}, fmt.Errorf("alimtalk: send: %w", err)
	}
	defer resp.Body.Close()

	var body sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil && resp.StatusCode < 300 {
		return providers.Result{}, fmt.Errorf("alimtalk: decode response: %w", err)
	}

	switch {
	case resp.StatusCode < 300:
		return providers.Result{ProviderMessageID: body.MessageID}, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusPaymentRequired:
		return providers.Result{}, fmt.Errorf("alimtalk: %s (%s): %w", body.Code, body.Detail, providers.ErrCritical)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Template rejections and invalid recipients land here; the SMS
		// fallback picks the contact up.
		return providers.Result{}, fmt.Errorf("alimtalk: %s (%s): %w", body.Code, body.Detail, providers.ErrPermanent)
	default:
		return providers.Result{}, fmt.Errorf("alimtalk: provider returned %d", resp.StatusCode)
	}
}
