package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ordersignal/internal/company/domain"
	"github.com/smallbiznis/ordersignal/internal/config"
	"github.com/smallbiznis/ordersignal/internal/mail"
	"github.com/smallbiznis/ordersignal/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Extractor domain.Extractor
	Tracker   domain.SenderTracker
	Config    config.Config
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	extractor   domain.Extractor
	tracker     domain.SenderTracker
	threshold   int
	contactRepo repository.Repository[domain.Contact]
}

func NewService(p ServiceParam) domain.Service {
	threshold := p.Config.AutoRegisterThreshold
	if threshold <= 0 {
		threshold = 3
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("company.service"),
		genID:       p.GenID,
		extractor:   p.Extractor,
		tracker:     p.Tracker,
		threshold:   threshold,
		contactRepo: repository.ProvideStore[domain.Contact](p.DB),
	}
}

// Resolve matches the sender address against the tenant's active companies,
// case-insensitively. An unmatched sender yields extracted candidate info and
// a tracker observation; it is a first-class outcome, not an error.
func (s *Service) Resolve(ctx context.Context, tenantID snowflake.ID, msg mail.IncomingEmail) (domain.Resolution, error) {
	sender := strings.ToLower(strings.TrimSpace(msg.Sender.Address))
	if sender == "" {
		return domain.Resolution{}, domain.ErrInvalidSender
	}

	var company domain.Company
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND lower(email) = ? AND is_active = ?", tenantID, sender, true).
		First(&company).Error
	if err == nil {
		return domain.Resolution{Matched: true, Company: &company}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Resolution{}, err
	}

	body := ""
	if msg.BodyText != nil {
		body = *msg.BodyText
	}
	info := s.extractor.Extract(msg.Subject, body)

	if info.CompanyName != "" {
		if _, err := s.tracker.Observe(ctx, tenantID, sender, info.CompanyName); err != nil {
			// Tracking is best effort; resolution itself still stands.
			s.log.Warn("sender tracking failed",
				zap.String("sender", sender),
				zap.Error(err),
			)
		}
	}

	return domain.Resolution{Matched: false, Extracted: &info}, nil
}

// ShouldAutoRegister reports whether repeated unmatched emails from the sender
// have produced the same extracted company name at least threshold times.
func (s *Service) ShouldAutoRegister(ctx context.Context, tenantID snowflake.ID, sender string) (domain.AutoRegisterDecision, error) {
	counts, err := s.tracker.Counts(ctx, tenantID, sender)
	if err != nil {
		return domain.AutoRegisterDecision{}, err
	}

	var bestName string
	var bestCount int64
	for name, count := range counts {
		if count > bestCount || (count == bestCount && name < bestName) {
			bestName = name
			bestCount = count
		}
	}

	if bestCount < int64(s.threshold) {
		return domain.AutoRegisterDecision{}, nil
	}
	return domain.AutoRegisterDecision{ShouldRegister: true, CompanyName: bestName}, nil
}

// RegisterCompany creates the company and a default contact in one
// transaction, then clears the sender's tracking state. This is the explicit
// mutation the resolver only signals readiness for.
func (s *Service) RegisterCompany(ctx context.Context, tenantID snowflake.ID, sender string, info domain.ExtractedCompanyInfo) (*domain.Company, error) {
	sender = strings.ToLower(strings.TrimSpace(sender))
	if sender == "" {
		return nil, domain.ErrInvalidSender
	}
	if strings.TrimSpace(info.CompanyName) == "" {
		return nil, domain.ErrInvalidCompanyName
	}

	now := time.Now().UTC()
	company := &domain.Company{
		ID:        s.genID.Generate(),
		TenantID:  tenantID,
		Name:      strings.TrimSpace(info.CompanyName),
		Email:     sender,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(company).Error; err != nil {
			return err
		}
		if info.ContactName == "" && info.Phone == "" {
			return nil
		}
		contact := &domain.Contact{
			ID:         s.genID.Generate(),
			CompanyID:  company.ID,
			Name:       info.ContactName,
			Phone:      info.Phone,
			SmsEnabled: info.Phone != "",
			IsActive:   true,
			CreatedAt:  now,
		}
		return tx.Create(contact).Error
	})
	if err != nil {
		return nil, err
	}

	if err := s.tracker.Reset(ctx, tenantID, sender); err != nil {
		s.log.Warn("tracker reset failed", zap.String("sender", sender), zap.Error(err))
	}

	s.log.Info("company registered from repeated sender",
		zap.String("tenant_id", tenantID.String()),
		zap.String("company", company.Name),
		zap.String("sender", sender),
	)
	return company, nil
}

func (s *Service) ActiveContacts(ctx context.Context, companyID snowflake.ID) ([]domain.Contact, error) {
	rows, err := s.contactRepo.Find(ctx, &domain.Contact{CompanyID: companyID, IsActive: true})
	if err != nil {
		return nil, err
	}
	contacts := make([]domain.Contact, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		contacts = append(contacts, *row)
	}
	return contacts, nil
}
