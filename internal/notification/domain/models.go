// Package domain defines notification delivery records and the dispatcher
// contract that fans an order confirmation out to company contacts.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	companydomain "github.com/smallbiznis/ordersignal/internal/company/domain"
	"gorm.io/datatypes"
)

type NotificationType string

const (
	TypeSMS           NotificationType = "SMS"
	TypeKakaoAlimtalk NotificationType = "KAKAO_ALIMTALK"
	TypeAdmin         NotificationType = "ADMIN_NOTIFICATION"
)

type NotificationStatus string

const (
	StatusPending NotificationStatus = "PENDING"
	StatusSent    NotificationStatus = "SENT"
	StatusFailed  NotificationStatus = "FAILED"
)

// NotificationLog records one delivery attempt chain to one recipient over
// one channel. RetryCount equals the number of retries after the first
// attempt, matching the retry log rows that reference this record.
type NotificationLog struct {
	ID                snowflake.ID       `gorm:"primaryKey"`
	TenantID          snowflake.ID       `gorm:"not null;index"`
	EmailLogID        snowflake.ID       `gorm:"not null;index"`
	ContactID         *snowflake.ID      `gorm:"index"`
	Type              NotificationType   `gorm:"type:text;not null"`
	Recipient         string             `gorm:"type:text;not null"`
	Status            NotificationStatus `gorm:"type:text;not null"`
	RetryCount        int                `gorm:"not null;default:0"`
	ErrorMessage      *string            `gorm:"type:text"`
	ProviderMessageID *string            `gorm:"type:text"`
	Metadata          datatypes.JSONMap  `gorm:"type:jsonb"`
	SentAt            *time.Time
	CreatedAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (NotificationLog) TableName() string { return "notification_logs" }

// NotificationRetryLog records one retry of a notification, in attempt order.
type NotificationRetryLog struct {
	ID                snowflake.ID `gorm:"primaryKey"`
	NotificationLogID snowflake.ID `gorm:"not null;index"`
	Attempt           int          `gorm:"not null"`
	ErrorMessage      string       `gorm:"type:text;not null"`
	RetriedAt         time.Time    `gorm:"not null"`
}

func (NotificationRetryLog) TableName() string { return "notification_retry_logs" }

// DispatchRequest carries everything the dispatcher needs for one matched
// email. Contacts that are inactive or have no channel enabled are skipped
// silently.
type DispatchRequest struct {
	TenantID     snowflake.ID
	EmailLogID   snowflake.ID
	CompanyName  string
	Subject      string
	DeliveryDate time.Time
	Contacts     []companydomain.Contact
}

// DispatchResult holds the rows produced by a dispatch run. Nothing is
// persisted here; the caller commits the rows together with the email log in
// one transaction. Critical is non-nil when a provider failure must abort
// the whole batch in strict transaction mode.
type DispatchResult struct {
	Notifications []NotificationLog
	RetryLogs     []NotificationRetryLog
	Critical      error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) DispatchResult
}
