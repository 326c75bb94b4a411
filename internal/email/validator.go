// Package email validates incoming messages before any domain logic runs.
package email

import (
	"errors"
	netmail "net/mail"
	"strings"

	"github.com/smallbiznis/ordersignal/internal/mail"
)

var ErrInvalidEmailFormat = errors.New("invalid_email_format")

// Validator enforces structural well-formedness. It holds no state and is
// constructed explicitly so call sites stay free of package-level singletons.
type Validator struct{}

func NewValidator() Validator { return Validator{} }

// Validate fails when the subject is empty, the sender does not parse as an
// address, or the body is missing. Malformed input never reaches company
// matching; the caller still writes a FAILED EmailLog so the rejection is
// auditable.
func (Validator) Validate(msg mail.IncomingEmail) error {
	if strings.TrimSpace(msg.Subject) == "" {
		return ErrInvalidEmailFormat
	}
	if _, err := netmail.ParseAddress(msg.Sender.Address); err != nil {
		return ErrInvalidEmailFormat
	}
	if msg.BodyText == nil {
		return ErrInvalidEmailFormat
	}
	return nil
}
