// Package providers defines the contract shared by the outbound messaging
// integrations and the error taxonomy the dispatcher keys retry decisions on.
package providers

import "errors"

// Result is returned by a successful provider call.
type Result struct {
	ProviderMessageID string
}

var (
	// ErrPermanent marks a rejection that retrying cannot fix, such as an
	// invalid recipient or an unapproved template. The dispatcher records
	// the failure and moves on to the fallback channel.
	ErrPermanent = errors.New("permanent_provider_failure")

	// ErrCritical marks a failure that must abort the whole dispatch in
	// strict transaction mode, such as a suspended provider account.
	ErrCritical = errors.New("critical_provider_failure")
)
