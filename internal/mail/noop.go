package mail

import "context"

// NoOpClient is a mailbox that never has new messages. It stands in until a
// real transport is configured and keeps the pool and ingestor loops honest.
type NoOpClient struct{}

func (NoOpClient) Connect(ctx context.Context) error                     { return nil }
func (NoOpClient) FetchNew(ctx context.Context) ([]IncomingEmail, error) { return nil, nil }
func (NoOpClient) Disconnect() error                                     { return nil }

type NoOpDialer struct{}

func (NoOpDialer) Dial(ctx context.Context) (Client, error) {
	return NoOpClient{}, nil
}
