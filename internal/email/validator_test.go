package email

import (
	"testing"
	"time"

	"github.com/smallbiznis/ordersignal/internal/mail"
	"github.com/stretchr/testify/assert"
)

func strptr(s string) *string { return &s }

func TestValidate(t *testing.T) {
	valid := mail.IncomingEmail{
		MessageID:  "msg-1",
		Subject:    "[발주] 3월 주문",
		Sender:     mail.Address{Address: "orders@acme.co.kr"},
		ReceivedAt: time.Now(),
		BodyText:   strptr("발주 내역입니다."),
	}

	v := NewValidator()
	assert.NoError(t, v.Validate(valid))

	empty := valid
	empty.Subject = "   "
	assert.ErrorIs(t, v.Validate(empty), ErrInvalidEmailFormat)

	badSender := valid
	badSender.Sender = mail.Address{Address: "not an address"}
	assert.ErrorIs(t, v.Validate(badSender), ErrInvalidEmailFormat)

	noBody := valid
	noBody.BodyText = nil
	assert.ErrorIs(t, v.Validate(noBody), ErrInvalidEmailFormat)
}
