package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/ordersignal/internal/company/domain"
	"github.com/smallbiznis/ordersignal/internal/company/extract"
	"github.com/smallbiznis/ordersignal/internal/company/tracker"
	"github.com/smallbiznis/ordersignal/internal/config"
	"github.com/smallbiznis/ordersignal/internal/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.Company{}, &domain.Contact{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParam{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Extractor: extract.New(),
		Tracker:   tracker.NewMemory(),
		Config:    config.Config{AutoRegisterThreshold: 3},
	})
	return svc, db, node
}

func incoming(sender, subject, body string) mail.IncomingEmail {
	return mail.IncomingEmail{
		MessageID: "m-1",
		Subject:   subject,
		Sender:    mail.Address{Address: sender},
		BodyText:  &body,
	}
}

func TestResolveMatchesCaseInsensitively(t *testing.T) {
	svc, db, node := newTestService(t)
	tenantID := node.Generate()

	company := domain.Company{
		ID:       node.Generate(),
		TenantID: tenantID,
		Name:     "Hanil Foods",
		Email:    "orders@hanil.co.kr",
		IsActive: true,
	}
	require.NoError(t, db.Create(&company).Error)

	res, err := svc.Resolve(context.Background(), tenantID, incoming("Orders@Hanil.CO.KR", "Order", "20 boxes"))
	require.NoError(t, err)
	require.True(t, res.Matched)
	assert.Equal(t, company.ID, res.Company.ID)
}

func TestResolveIgnoresInactiveAndOtherTenants(t *testing.T) {
	svc, db, node := newTestService(t)
	tenantID := node.Generate()

	inactive := domain.Company{
		ID:       node.Generate(),
		TenantID: tenantID,
		Name:     "Dormant Co",
		Email:    "orders@dormant.example",
		IsActive: false,
	}
	otherTenant := domain.Company{
		ID:       node.Generate(),
		TenantID: node.Generate(),
		Name:     "Other Co",
		Email:    "orders@other.example",
		IsActive: true,
	}
	require.NoError(t, db.Create(&inactive).Error)
	// A default tag on is_active makes gorm skip the zero value on insert.
	require.NoError(t, db.Model(&inactive).Update("is_active", false).Error)
	require.NoError(t, db.Create(&otherTenant).Error)

	for _, sender := range []string{"orders@dormant.example", "orders@other.example"} {
		res, err := svc.Resolve(context.Background(), tenantID, incoming(sender, "Order", "20 boxes"))
		require.NoError(t, err)
		assert.False(t, res.Matched, sender)
	}
}

func TestUnmatchedSenderExtractsCandidateInfo(t *testing.T) {
	svc, _, node := newTestService(t)
	tenantID := node.Generate()

	body := "회사명: Daehan Trading\n담당자: Park\n연락처: 010-9999-0000"
	res, err := svc.Resolve(context.Background(), tenantID, incoming("new@vendor.example", "Order", body))
	require.NoError(t, err)

	require.False(t, res.Matched)
	require.NotNil(t, res.Extracted)
	assert.Equal(t, "Daehan Trading", res.Extracted.CompanyName)
	assert.Equal(t, "Park", res.Extracted.ContactName)
	assert.Contains(t, res.Extracted.SuggestedActions, "register_company")
}

func TestAutoRegisterThreshold(t *testing.T) {
	svc, _, node := newTestService(t)
	tenantID := node.Generate()
	ctx := context.Background()

	body := "회사명: Daehan Trading"
	for i := 0; i < 2; i++ {
		_, err := svc.Resolve(ctx, tenantID, incoming("new@vendor.example", "Order", body))
		require.NoError(t, err)

		decision, err := svc.ShouldAutoRegister(ctx, tenantID, "new@vendor.example")
		require.NoError(t, err)
		assert.False(t, decision.ShouldRegister, "below threshold after %d sightings", i+1)
	}

	_, err := svc.Resolve(ctx, tenantID, incoming("new@vendor.example", "Order", body))
	require.NoError(t, err)

	decision, err := svc.ShouldAutoRegister(ctx, tenantID, "new@vendor.example")
	require.NoError(t, err)
	assert.True(t, decision.ShouldRegister)
	assert.Equal(t, "Daehan Trading", decision.CompanyName)
}

func TestRegisterCompanyCreatesContactAndResetsTracker(t *testing.T) {
	svc, db, node := newTestService(t)
	tenantID := node.Generate()
	ctx := context.Background()

	body := "회사명: Daehan Trading\n담당자: Park\n연락처: 010-9999-0000"
	for i := 0; i < 3; i++ {
		_, err := svc.Resolve(ctx, tenantID, incoming("New@Vendor.Example", "Order", body))
		require.NoError(t, err)
	}

	company, err := svc.RegisterCompany(ctx, tenantID, "New@Vendor.Example", domain.ExtractedCompanyInfo{
		CompanyName: "Daehan Trading",
		ContactName: "Park",
		Phone:       "010-9999-0000",
	})
	require.NoError(t, err)
	assert.Equal(t, "new@vendor.example", company.Email)

	var contact domain.Contact
	require.NoError(t, db.Where("company_id = ?", company.ID).First(&contact).Error)
	assert.Equal(t, "Park", contact.Name)
	assert.True(t, contact.SmsEnabled)

	// Registration clears the counters.
	decision, err := svc.ShouldAutoRegister(ctx, tenantID, "new@vendor.example")
	require.NoError(t, err)
	assert.False(t, decision.ShouldRegister)

	// And the next resolution matches.
	res, err := svc.Resolve(ctx, tenantID, incoming("new@vendor.example", "Order", body))
	require.NoError(t, err)
	assert.True(t, res.Matched)
}

func TestRegisterCompanyValidation(t *testing.T) {
	svc, _, node := newTestService(t)
	tenantID := node.Generate()
	ctx := context.Background()

	_, err := svc.RegisterCompany(ctx, tenantID, "  ", domain.ExtractedCompanyInfo{CompanyName: "X"})
	assert.ErrorIs(t, err, domain.ErrInvalidSender)

	_, err = svc.RegisterCompany(ctx, tenantID, "a@b.example", domain.ExtractedCompanyInfo{CompanyName: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidCompanyName)
}

func TestActiveContactsFiltersInactive(t *testing.T) {
	svc, db, node := newTestService(t)
	companyID := node.Generate()

	active := domain.Contact{ID: node.Generate(), CompanyID: companyID, Name: "Kim", IsActive: true, SmsEnabled: true}
	inactive := domain.Contact{ID: node.Generate(), CompanyID: companyID, Name: "Lee", IsActive: false}
	require.NoError(t, db.Create(&active).Error)
	require.NoError(t, db.Create(&inactive).Error)
	require.NoError(t, db.Model(&inactive).Update("is_active", false).Error)

	contacts, err := svc.ActiveContacts(context.Background(), companyID)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Kim", contacts[0].Name)
}
