// Package domain contains the registered-sender entities and the resolver
// contract that maps incoming order emails onto them.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ordersignal/internal/mail"
)

// Company is a registered sender entity, scoped to a tenant. Email is unique
// within the tenant.
type Company struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	TenantID  snowflake.ID `gorm:"not null;uniqueIndex:idx_companies_tenant_email,priority:1"`
	Name      string       `gorm:"type:text;not null"`
	Email     string       `gorm:"type:text;not null;uniqueIndex:idx_companies_tenant_email,priority:2"`
	Region    string       `gorm:"type:text"`
	IsActive  bool         `gorm:"not null;default:true"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Company) TableName() string { return "companies" }

// Contact is a person at a company who may receive notifications.
type Contact struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	CompanyID    snowflake.ID `gorm:"not null;index"`
	Name         string       `gorm:"type:text;not null"`
	Phone        string       `gorm:"type:text"`
	Email        *string      `gorm:"type:text"`
	SmsEnabled   bool         `gorm:"not null;default:false"`
	KakaoEnabled bool         `gorm:"not null;default:false"`
	IsActive     bool         `gorm:"not null;default:true"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Contact) TableName() string { return "contacts" }

// Dispatchable reports whether the contact is eligible for notification
// dispatch at all: active with at least one channel enabled.
func (c Contact) Dispatchable() bool {
	return c.IsActive && (c.SmsEnabled || c.KakaoEnabled)
}

// ExtractedCompanyInfo is the best-effort result of the pattern heuristics run
// over an unmatched email's subject and body.
type ExtractedCompanyInfo struct {
	CompanyName      string   `json:"company_name"`
	ContactName      string   `json:"contact_name"`
	Phone            string   `json:"phone"`
	SuggestedActions []string `json:"suggested_actions"`
}

// Extractor derives candidate company fields from raw text. Implementations
// must be pure so heuristics can be swapped and tested in isolation.
type Extractor interface {
	Extract(subject, body string) ExtractedCompanyInfo
}

// Resolution is the outcome of sender matching. Unmatched is not an error;
// it carries the extracted candidate info instead of a company.
type Resolution struct {
	Matched   bool
	Company   *Company
	Extracted *ExtractedCompanyInfo
}

// AutoRegisterDecision signals that repeated unmatched emails from one sender
// have produced the same extracted company name often enough to propose
// registration. The mutation itself stays with the caller.
type AutoRegisterDecision struct {
	ShouldRegister bool
	CompanyName    string
}

type Service interface {
	Resolve(ctx context.Context, tenantID snowflake.ID, msg mail.IncomingEmail) (Resolution, error)
	ShouldAutoRegister(ctx context.Context, tenantID snowflake.ID, sender string) (AutoRegisterDecision, error)
	RegisterCompany(ctx context.Context, tenantID snowflake.ID, sender string, info ExtractedCompanyInfo) (*Company, error)
	ActiveContacts(ctx context.Context, companyID snowflake.ID) ([]Contact, error)
}

// SenderTracker counts unmatched (sender, extracted name) sightings per
// tenant, with decay handled by the store's TTL.
type SenderTracker interface {
	Observe(ctx context.Context, tenantID snowflake.ID, sender, companyName string) (int64, error)
	Counts(ctx context.Context, tenantID snowflake.ID, sender string) (map[string]int64, error)
	Reset(ctx context.Context, tenantID snowflake.ID, sender string) error
}

var (
	ErrInvalidSender      = errors.New("invalid_sender")
	ErrInvalidCompanyName = errors.New("invalid_company_name")
)
