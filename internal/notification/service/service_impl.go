package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ordersignal/internal/clock"
	companydomain "github.com/smallbiznis/ordersignal/internal/company/domain"
	"github.com/smallbiznis/ordersignal/internal/notification/domain"
	"github.com/smallbiznis/ordersignal/internal/providers"
	"github.com/smallbiznis/ordersignal/internal/providers/alimtalk"
	"github.com/smallbiznis/ordersignal/internal/providers/sms"
	usagedomain "github.com/smallbiznis/ordersignal/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// AlimtalkTemplateCode identifies the approved order-confirmation template.
const AlimtalkTemplateCode = "order_delivery_confirm"

// Options bound the dispatcher's retry and fan-out behavior.
type Options struct {
	RetryAttempts int
	RetryDelay    time.Duration
	SendTimeout   time.Duration
	FanOutLimit   int
}

func (o Options) withDefaults() Options {
	if o.RetryAttempts < 0 {
		o.RetryAttempts = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 2 * time.Second
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 10 * time.Second
	}
	if o.FanOutLimit <= 0 {
		o.FanOutLimit = 10
	}
	return o
}

type ServiceParam struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	SMS      sms.Provider
	Alimtalk alimtalk.Provider
	Usage    usagedomain.Service
	Options  Options
}

type Dispatcher struct {
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	sms      sms.Provider
	alimtalk alimtalk.Provider
	usage    usagedomain.Service
	opts     Options
}

func NewDispatcher(p ServiceParam) domain.Dispatcher {
	return &Dispatcher{
		log:      p.Log.Named("notification.dispatcher"),
		genID:    p.GenID,
		clock:    p.Clock,
		sms:      p.SMS,
		alimtalk: p.Alimtalk,
		usage:    p.Usage,
		opts:     p.Options.withDefaults(),
	}
}

// Dispatch fans out to every dispatchable contact concurrently, bounded by
// the fan-out limit. Each contact is handled sequentially across its own
// channels so the SMS send can observe the alimtalk outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, req domain.DispatchRequest) domain.DispatchResult {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result domain.DispatchResult
	)
	sem := make(chan struct{}, d.opts.FanOutLimit)

	for _, contact := range req.Contacts {
		if !contact.Dispatchable() {
			continue
		}
		wg.Add(1)
		go func(c companydomain.Contact) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			rows, retries, critical := d.dispatchContact(ctx, req, c)

			mu.Lock()
			result.Notifications = append(result.Notifications, rows...)
			result.RetryLogs = append(result.RetryLogs, retries...)
			if critical != nil && result.Critical == nil {
				result.Critical = critical
			}
			mu.Unlock()
		}(contact)
	}
	wg.Wait()
	return result
}

// dispatchContact sends over every channel the contact has enabled. The
// preferred alimtalk channel goes first; the SMS row is flagged as a
// fallback only when the alimtalk attempt terminally failed.
func (d *Dispatcher) dispatchContact(ctx context.Context, req domain.DispatchRequest, c companydomain.Contact) ([]domain.NotificationLog, []domain.NotificationRetryLog, error) {
	var (
		rows     []domain.NotificationLog
		retries  []domain.NotificationRetryLog
		critical error
	)

	alimtalkFailed := false
	if c.KakaoEnabled {
		row, rowRetries, err := d.send(ctx, req, c, domain.TypeKakaoAlimtalk, nil)
		alimtalkFailed = row.Status == domain.StatusFailed
		rows = append(rows, row)
		retries = append(retries, rowRetries...)
		if err != nil {
			critical = err
		}
	}

	if c.SmsEnabled {
		var metadata datatypes.JSONMap
		if c.KakaoEnabled && alimtalkFailed {
			metadata = datatypes.JSONMap{"is_fallback": true}
		}
		row, rowRetries, err := d.send(ctx, req, c, domain.TypeSMS, metadata)
		rows = append(rows, row)
		retries = append(retries, rowRetries...)
		if err != nil && critical == nil {
			critical = err
		}
	}

	return rows, retries, critical
}

// send runs the retry loop for one channel. The returned error is non-nil
// only for critical provider failures.
func (d *Dispatcher) send(ctx context.Context, req domain.DispatchRequest, c companydomain.Contact, kind domain.NotificationType, metadata datatypes.JSONMap) (domain.NotificationLog, []domain.NotificationRetryLog, error) {
	contactID := c.ID
	row := domain.NotificationLog{
		ID:         d.genID.Generate(),
		TenantID:   req.TenantID,
		EmailLogID: req.EmailLogID,
		ContactID:  &contactID,
		Type:       kind,
		Recipient:  c.Phone,
		Status:     domain.StatusPending,
		Metadata:   metadata,
		CreatedAt:  d.clock.Now().UTC(),
	}

	resource := usagedomain.ResourceSMS
	if kind == domain.TypeKakaoAlimtalk {
		resource = usagedomain.ResourceKakao
	}

	if status, err := d.usage.CheckUsageLimits(ctx, req.TenantID, resource); err != nil {
		d.log.Warn("usage check failed, proceeding with send",
			zap.String("tenant_id", req.TenantID.String()),
			zap.Error(err))
	} else if !status.Allowed {
		row.Status = domain.StatusFailed
		msg := status.Message
		row.ErrorMessage = &msg
		d.log.Warn("notification blocked by quota",
			zap.String("tenant_id", req.TenantID.String()),
			zap.String("type", string(kind)),
			zap.String("message", status.Message))
		return row, nil, nil
	}

	var (
		retryRows []domain.NotificationRetryLog
		lastErr   error
	)
	for attempt := 0; attempt <= d.opts.RetryAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
		res, err := d.call(callCtx, req, c, kind)
		cancel()

		if err == nil {
			now := d.clock.Now().UTC()
			row.Status = domain.StatusSent
			row.SentAt = &now
			if res.ProviderMessageID != "" {
				id := res.ProviderMessageID
				row.ProviderMessageID = &id
			}
			d.recordSentUsage(ctx, req.TenantID, resource, row.ID)
			return row, retryRows, nil
		}

		lastErr = err
		if errors.Is(err, providers.ErrPermanent) || errors.Is(err, providers.ErrCritical) {
			break
		}
		if attempt == d.opts.RetryAttempts {
			break
		}

		row.RetryCount++
		retryRows = append(retryRows, domain.NotificationRetryLog{
			ID:                d.genID.Generate(),
			NotificationLogID: row.ID,
			Attempt:           row.RetryCount,
			ErrorMessage:      err.Error(),
			RetriedAt:         d.clock.Now().UTC(),
		})

		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = d.opts.RetryAttempts
		case <-time.After(d.opts.RetryDelay):
		}
	}

	row.Status = domain.StatusFailed
	msg := lastErr.Error()
	row.ErrorMessage = &msg
	d.log.Warn("notification send failed",
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("type", string(kind)),
		zap.String("recipient", c.Phone),
		zap.Int("retry_count", row.RetryCount),
		zap.Error(lastErr))

	if errors.Is(lastErr, providers.ErrCritical) {
		return row, retryRows, lastErr
	}
	return row, retryRows, nil
}

func (d *Dispatcher) call(ctx context.Context, req domain.DispatchRequest, c companydomain.Contact, kind domain.NotificationType) (providers.Result, error) {
	deliveryDate := "TBD"
	if !req.DeliveryDate.IsZero() {
		deliveryDate = req.DeliveryDate.Format("2006-01-02")
	}
	if kind == domain.TypeKakaoAlimtalk {
		return d.alimtalk.Send(ctx, c.Phone, AlimtalkTemplateCode, map[string]string{
			"company":       req.CompanyName,
			"delivery_date": deliveryDate,
		})
	}
	message := fmt.Sprintf("[%s] Order received. Scheduled delivery: %s", req.CompanyName, deliveryDate)
	return d.sms.Send(ctx, c.Phone, message)
}

func (d *Dispatcher) recordSentUsage(ctx context.Context, tenantID snowflake.ID, resource usagedomain.ResourceType, notificationID snowflake.ID) {
	err := d.usage.IncrementUsage(ctx, tenantID, resource, 1, map[string]any{
		"notification_id": notificationID.String(),
	})
	if err != nil {
		d.log.Warn("usage increment failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("resource", string(resource)),
			zap.Error(err))
	}
}
