// Package adminalert notifies operators about emails that could not be
// matched to a registered company.
package adminalert

import "context"

type Alert struct {
	TenantID string         `json:"tenant_id"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Context  map[string]any `json:"context,omitempty"`
}

type Sink interface {
	Notify(ctx context.Context, alert Alert) error
}

type NoOpSink struct{}

func (s *NoOpSink) Notify(ctx context.Context, alert Alert) error {
	return nil
}
