package sms

import (
	"context"

	"github.com/smallbiznis/ordersignal/internal/providers"
)

type Provider interface {
	Send(ctx context.Context, phone, message string) (providers.Result, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, phone, message string) (providers.Result, error) {
	return providers.Result{ProviderMessageID: "noop"}, nil
}
