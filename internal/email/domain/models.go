// Package domain contains the persisted audit record for processed emails.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusReceived Status = "RECEIVED"
	StatusMatched  Status = "MATCHED"
	StatusFailed   Status = "FAILED"
	StatusIgnored  Status = "IGNORED"
)

// EmailLog is created exactly once per incoming email. A (tenant, message_id)
// pair is never duplicated; StatusMatched implies CompanyID is set and
// StatusFailed implies ErrorMessage is set.
type EmailLog struct {
	ID           snowflake.ID  `gorm:"primaryKey"`
	TenantID     snowflake.ID  `gorm:"not null;uniqueIndex:idx_email_logs_tenant_message,priority:1"`
	MessageID    string        `gorm:"type:text;not null;uniqueIndex:idx_email_logs_tenant_message,priority:2"`
	Subject      string        `gorm:"type:text"`
	Sender       string        `gorm:"type:text;not null"`
	Status       Status        `gorm:"type:text;not null"`
	CompanyID    *snowflake.ID `gorm:"index"`
	ErrorMessage *string       `gorm:"type:text"`
	DeliveryDate *time.Time
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (EmailLog) TableName() string { return "email_logs" }
