package alimtalk

import (
	"context"

	"github.com/smallbiznis/ordersignal/internal/providers"
)

type Provider interface {
	Send(ctx context.Context, phone, templateCode string, variables map[string]string) (providers.Result, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, phone, templateCode string, variables map[string]string) (providers.Result, error) {
	return providers.Result{ProviderMessageID: "noop"}, nil
}
