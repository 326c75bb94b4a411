package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ordersignal/internal/clock"
	companydomain "github.com/smallbiznis/ordersignal/internal/company/domain"
	"github.com/smallbiznis/ordersignal/internal/notification/domain"
	"github.com/smallbiznis/ordersignal/internal/providers"
	usagedomain "github.com/smallbiznis/ordersignal/internal/usage/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSMS struct {
	mu    sync.Mutex
	calls int
	// errs[i] is returned for call i; calls past the slice succeed.
	errs []error
}

func (f *fakeSMS) Send(ctx context.Context, phone, message string) (providers.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := f.calls
	f.calls++
	if call < len(f.errs) && f.errs[call] != nil {
		return providers.Result{}, f.errs[call]
	}
	return providers.Result{ProviderMessageID: fmt.Sprintf("sms-%d", call)}, nil
}

type fakeAlimtalk struct {
	mu    sync.Mutex
	calls int
	errs  []error
}

func (f *fakeAlimtalk) Send(ctx context.Context, phone, templateCode string, variables map[string]string) (providers.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := f.calls
	f.calls++
	if call < len(f.errs) && f.errs[call] != nil {
		return providers.Result{}, f.errs[call]
	}
	return providers.Result{ProviderMessageID: fmt.Sprintf("at-%d", call)}, nil
}

type stubUsage struct {
	mu         sync.Mutex
	blocked    map[usagedomain.ResourceType]bool
	increments map[usagedomain.ResourceType]int64
}

func newStubUsage() *stubUsage {
	return &stubUsage{
		blocked:    map[usagedomain.ResourceType]bool{},
		increments: map[usagedomain.ResourceType]int64{},
	}
}

func (s *stubUsage) IncrementUsage(ctx context.Context, tenantID snowflake.ID, resource usagedomain.ResourceType, amount int64, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.increments[resource] += amount
	return nil
}

func (s *stubUsage) CheckUsageLimits(ctx context.Context, tenantID snowflake.ID, resource usagedomain.ResourceType) (usagedomain.LimitStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocked[resource] {
		return usagedomain.LimitStatus{
			ResourceType: resource,
			Allowed:      false,
			WarningLevel: usagedomain.WarningExceeded,
			Message:      fmt.Sprintf("monthly %s limit exceeded", resource),
		}, nil
	}
	return usagedomain.LimitStatus{ResourceType: resource, Allowed: true, WarningLevel: usagedomain.WarningNone}, nil
}

func (s *stubUsage) CheckAllUsageLimits(ctx context.Context, tenantID snowflake.ID) ([]usagedomain.LimitStatus, error) {
	return nil, nil
}

func (s *stubUsage) sent(resource usagedomain.ResourceType) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.increments[resource]
}

func newTestDispatcher(t *testing.T, smsP *fakeSMS, at *fakeAlimtalk, usage *stubUsage, attempts int) *Dispatcher {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return &Dispatcher{
		log:      zap.NewNop(),
		genID:    node,
		clock:    clock.NewFakeClock(time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)),
		sms:      smsP,
		alimtalk: at,
		usage:    usage,
		opts: Options{
			RetryAttempts: attempts,
			RetryDelay:    time.Millisecond,
			SendTimeout:   time.Second,
			FanOutLimit:   4,
		},
	}
}

func testRequest(node *snowflake.Node, contacts ...companydomain.Contact) domain.DispatchRequest {
	return domain.DispatchRequest{
		TenantID:     node.Generate(),
		EmailLogID:   node.Generate(),
		CompanyName:  "Hanil Foods",
		Subject:      "Order 2025-06-15",
		DeliveryDate: time.Date(2025, 6, 17, 0, 0, 0, 0, time.UTC),
		Contacts:     contacts,
	}
}

func contact(node *snowflake.Node, smsEnabled, kakaoEnabled bool) companydomain.Contact {
	return companydomain.Contact{
		ID:           node.Generate(),
		CompanyID:    node.Generate(),
		Name:         "Kim",
		Phone:        "010-1234-5678",
		SmsEnabled:   smsEnabled,
		KakaoEnabled: kakaoEnabled,
		IsActive:     true,
	}
}

func byType(rows []domain.NotificationLog) map[domain.NotificationType][]domain.NotificationLog {
	out := map[domain.NotificationType][]domain.NotificationLog{}
	for _, row := range rows {
		out[row.Type] = append(out[row.Type], row)
	}
	return out
}

func TestDispatchMixedChannels(t *testing.T) {
	node, _ := snowflake.NewNode(2)
	smsP, at, usage := &fakeSMS{}, &fakeAlimtalk{}, newStubUsage()
	d := newTestDispatcher(t, smsP, at, usage, 3)

	// One SMS-only contact and one contact with both channels enabled.
	req := testRequest(node, contact(node, true, false), contact(node, true, true))
	result := d.Dispatch(context.Background(), req)

	require.NoError(t, result.Critical)
	require.Len(t, result.Notifications, 3)

	grouped := byType(result.Notifications)
	assert.Len(t, grouped[domain.TypeSMS], 2)
	assert.Len(t, grouped[domain.TypeKakaoAlimtalk], 1)
	for _, row := range result.Notifications {
		assert.Equal(t, domain.StatusSent, row.Status)
		assert.Zero(t, row.RetryCount)
		assert.NotNil(t, row.SentAt)
		assert.Nil(t, row.Metadata["is_fallback"])
	}
	assert.Equal(t, int64(2), usage.sent(usagedomain.ResourceSMS))
	assert.Equal(t, int64(1), usage.sent(usagedomain.ResourceKakao))
}

func TestSMSFallbackWhenAlimtalkRejected(t *testing.T) {
	node, _ := snowflake.NewNode(3)
	smsP := &fakeSMS{}
	at := &fakeAlimtalk{errs: []error{fmt.Errorf("template not approved: %w", providers.ErrPermanent)}}
	d := newTestDispatcher(t, smsP, at, newStubUsage(), 3)

	req := testRequest(node, contact(node, true, true))
	result := d.Dispatch(context.Background(), req)

	require.NoError(t, result.Critical)
	require.Len(t, result.Notifications, 2)

	grouped := byType(result.Notifications)
	atRow := grouped[domain.TypeKakaoAlimtalk][0]
	assert.Equal(t, domain.StatusFailed, atRow.Status)
	assert.Zero(t, atRow.RetryCount) // permanent failures are not retried
	require.NotNil(t, atRow.ErrorMessage)

	smsRow := grouped[domain.TypeSMS][0]
	assert.Equal(t, domain.StatusSent, smsRow.Status)
	assert.Equal(t, true, smsRow.Metadata["is_fallback"])

	// Every failed alimtalk recipient with SMS enabled got the fallback.
	assert.Equal(t, 1, smsP.calls)
	assert.Equal(t, 1, at.calls)
}

func TestTransientFailuresRetriedThenSent(t *testing.T) {
	node, _ := snowflake.NewNode(4)
	smsP := &fakeSMS{errs: []error{fmt.Errorf("gateway timeout"), fmt.Errorf("gateway timeout")}}
	d := newTestDispatcher(t, smsP, &fakeAlimtalk{}, newStubUsage(), 3)

	req := testRequest(node, contact(node, true, false))
	result := d.Dispatch(context.Background(), req)

	require.Len(t, result.Notifications, 1)
	row := result.Notifications[0]
	assert.Equal(t, domain.StatusSent, row.Status)
	assert.Equal(t, 2, row.RetryCount)

	require.Len(t, result.RetryLogs, 2)
	for i, retry := range result.RetryLogs {
		assert.Equal(t, row.ID, retry.NotificationLogID)
		assert.Equal(t, i+1, retry.Attempt)
		assert.Equal(t, "gateway timeout", retry.ErrorMessage)
	}
}

func TestRetriesExhausted(t *testing.T) {
	node, _ := snowflake.NewNode(5)
	smsP := &fakeSMS{errs: []error{
		fmt.Errorf("gateway timeout"),
		fmt.Errorf("gateway timeout"),
		fmt.Errorf("gateway timeout"),
	}}
	usage := newStubUsage()
	d := newTestDispatcher(t, smsP, &fakeAlimtalk{}, usage, 2)

	req := testRequest(node, contact(node, true, false))
	result := d.Dispatch(context.Background(), req)

	require.Len(t, result.Notifications, 1)
	row := result.Notifications[0]
	assert.Equal(t, domain.StatusFailed, row.Status)
	assert.Equal(t, 2, row.RetryCount)
	assert.Len(t, result.RetryLogs, 2)
	assert.Equal(t, 3, smsP.calls)
	assert.Zero(t, usage.sent(usagedomain.ResourceSMS))
}

func TestCriticalFailureSurfaced(t *testing.T) {
	node, _ := snowflake.NewNode(6)
	smsP := &fakeSMS{errs: []error{fmt.Errorf("account suspended: %w", providers.ErrCritical)}}
	d := newTestDispatcher(t, smsP, &fakeAlimtalk{}, newStubUsage(), 3)

	req := testRequest(node, contact(node, true, false))
	result := d.Dispatch(context.Background(), req)

	require.Error(t, result.Critical)
	assert.ErrorIs(t, result.Critical, providers.ErrCritical)
	require.Len(t, result.Notifications, 1)
	assert.Equal(t, domain.StatusFailed, result.Notifications[0].Status)
	assert.Equal(t, 1, smsP.calls) // no retries on critical failures
}

func TestQuotaExceededBlocksWithoutProviderCall(t *testing.T) {
	node, _ := snowflake.NewNode(7)
	smsP := &fakeSMS{}
	usage := newStubUsage()
	usage.blocked[usagedomain.ResourceSMS] = true
	d := newTestDispatcher(t, smsP, &fakeAlimtalk{}, usage, 3)

	req := testRequest(node, contact(node, true, false))
	result := d.Dispatch(context.Background(), req)

	require.NoError(t, result.Critical)
	require.Len(t, result.Notifications, 1)
	row := result.Notifications[0]
	assert.Equal(t, domain.StatusFailed, row.Status)
	require.NotNil(t, row.ErrorMessage)
	assert.Contains(t, *row.ErrorMessage, "limit exceeded")
	assert.Zero(t, smsP.calls)
	assert.Zero(t, usage.sent(usagedomain.ResourceSMS))
}

func TestNonDispatchableContactsSkipped(t *testing.T) {
	node, _ := snowflake.NewNode(8)
	inactive := contact(node, true, true)
	inactive.IsActive = false
	noChannels := contact(node, false, false)

	d := newTestDispatcher(t, &fakeSMS{}, &fakeAlimtalk{}, newStubUsage(), 3)
	result := d.Dispatch(context.Background(), testRequest(node, inactive, noChannels))

	assert.Empty(t, result.Notifications)
	assert.Empty(t, result.RetryLogs)
	assert.NoError(t, result.Critical)
}
