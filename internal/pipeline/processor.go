// Package pipeline orchestrates one incoming order email from validation
// through company matching, delivery-date calculation and notification
// dispatch, committing the full outcome transactionally.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ordersignal/internal/clock"
	companydomain "github.com/smallbiznis/ordersignal/internal/company/domain"
	deliverydomain "github.com/smallbiznis/ordersignal/internal/deliveryrule/domain"
	"github.com/smallbiznis/ordersignal/internal/email"
	emaildomain "github.com/smallbiznis/ordersignal/internal/email/domain"
	"github.com/smallbiznis/ordersignal/internal/mail"
	notifdomain "github.com/smallbiznis/ordersignal/internal/notification/domain"
	"github.com/smallbiznis/ordersignal/internal/observability/metrics"
	"github.com/smallbiznis/ordersignal/internal/providers/adminalert"
	usagedomain "github.com/smallbiznis/ordersignal/internal/usage/domain"
	"github.com/smallbiznis/ordersignal/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Outcome summarizes one processed email. Duplicate means the email had
// already been processed and nothing was written.
type Outcome struct {
	EmailLog  emaildomain.EmailLog
	Duplicate bool
	Dispatch  *notifdomain.DispatchResult
}

type ProcessorParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Companies  companydomain.Service
	Delivery   deliverydomain.Service
	Dispatcher notifdomain.Dispatcher
	Usage      usagedomain.Service
	Alerts     adminalert.Sink
	Writer     *TxWriter
}

type Processor struct {
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	validator  email.Validator
	companies  companydomain.Service
	delivery   deliverydomain.Service
	dispatcher notifdomain.Dispatcher
	usage      usagedomain.Service
	alerts     adminalert.Sink
	writer     *TxWriter
	emailRepo  repository.Repository[emaildomain.EmailLog]
	metrics    *metrics.PipelineMetrics
}

func NewProcessor(p ProcessorParam) *Processor {
	return &Processor{
		log:        p.Log.Named("pipeline.processor"),
		genID:      p.GenID,
		clock:      p.Clock,
		validator:  email.NewValidator(),
		companies:  p.Companies,
		delivery:   p.Delivery,
		dispatcher: p.Dispatcher,
		usage:      p.Usage,
		alerts:     p.Alerts,
		writer:     p.Writer,
		emailRepo:  repository.ProvideStore[emaildomain.EmailLog](p.DB),
		metrics:    metrics.Pipeline(),
	}
}

// ProcessEmail runs the full pipeline for one message. A returned error means
// nothing was persisted and the message can be reprocessed; business outcomes
// such as validation failure or an unmatched sender are committed rows, not
// errors.
func (p *Processor) ProcessEmail(ctx context.Context, tenantID snowflake.ID, msg mail.IncomingEmail) (Outcome, error) {
	started := p.clock.Now()

	existing, err := p.emailRepo.FindOne(ctx, &emaildomain.EmailLog{TenantID: tenantID, MessageID: msg.MessageID})
	if err != nil {
		return Outcome{}, err
	}
	if existing != nil {
		p.log.Debug("duplicate message skipped",
			zap.String("tenant_id", tenantID.String()),
			zap.String("message_id", msg.MessageID))
		return Outcome{EmailLog: *existing, Duplicate: true}, nil
	}

	if err := p.usage.IncrementUsage(ctx, tenantID, usagedomain.ResourceEmail, 1, nil); err != nil {
		p.log.Warn("email usage increment failed",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
	}

	emailLog := emaildomain.EmailLog{
		ID:        p.genID.Generate(),
		TenantID:  tenantID,
		MessageID: msg.MessageID,
		Subject:   msg.Subject,
		Sender:    msg.Sender.Address,
		CreatedAt: p.clock.Now().UTC(),
	}

	if err := p.validator.Validate(msg); err != nil {
		emailLog.Status = emaildomain.StatusFailed
		reason := err.Error()
		emailLog.ErrorMessage = &reason
		if err := p.writer.Commit(ctx, &emailLog, nil); err != nil {
			return Outcome{}, err
		}
		p.metrics.IncEmailProcessed(string(emaildomain.StatusFailed))
		return Outcome{EmailLog: emailLog}, nil
	}

	resolution, err := p.companies.Resolve(ctx, tenantID, msg)
	if err != nil {
		return Outcome{}, err
	}

	if !resolution.Matched {
		return p.processUnmatched(ctx, tenantID, msg, emailLog, resolution)
	}

	company := resolution.Company
	emailLog.Status = emaildomain.StatusMatched
	emailLog.CompanyID = &company.ID

	deliveryDate, err := p.delivery.DeliveryDateFor(ctx, tenantID, company.Region, msg.ReceivedAt)
	switch {
	case err == nil:
		emailLog.DeliveryDate = &deliveryDate
	case errors.Is(err, deliverydomain.ErrRuleMissing):
		p.log.Warn("no delivery rule configured, skipping estimate",
			zap.String("tenant_id", tenantID.String()),
			zap.String("region", company.Region))
	default:
		p.log.Warn("delivery date calculation failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("region", company.Region),
			zap.Error(err))
	}

	contacts, err := p.companies.ActiveContacts(ctx, company.ID)
	if err != nil {
		return Outcome{}, err
	}

	req := notifdomain.DispatchRequest{
		TenantID:    tenantID,
		EmailLogID:  emailLog.ID,
		CompanyName: company.Name,
		Subject:     msg.Subject,
		Contacts:    contacts,
	}
	if emailLog.DeliveryDate != nil {
		req.DeliveryDate = *emailLog.DeliveryDate
	}

	dispatch := p.dispatcher.Dispatch(ctx, req)
	if err := p.writer.Commit(ctx, &emailLog, &dispatch); err != nil {
		return Outcome{}, err
	}

	p.recordDispatchMetrics(dispatch)
	p.metrics.IncEmailProcessed(string(emaildomain.StatusMatched))
	p.metrics.ObserveDispatchDuration(p.clock.Now().Sub(started))

	p.log.Info("email processed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("message_id", msg.MessageID),
		zap.String("company", company.Name),
		zap.Int("notifications", len(dispatch.Notifications)))
	return Outcome{EmailLog: emailLog, Dispatch: &dispatch}, nil
}

// processUnmatched commits a RECEIVED row, alerts the operators and applies
// the auto-registration heuristic once the same extracted company name has
// recurred often enough.
func (p *Processor) processUnmatched(ctx context.Context, tenantID snowflake.ID, msg mail.IncomingEmail, emailLog emaildomain.EmailLog, resolution companydomain.Resolution) (Outcome, error) {
	emailLog.Status = emaildomain.StatusReceived
	if err := p.writer.Commit(ctx, &emailLog, nil); err != nil {
		return Outcome{}, err
	}
	p.metrics.IncEmailProcessed(string(emaildomain.StatusReceived))

	alertContext := map[string]any{
		"sender":     msg.Sender.Address,
		"subject":    msg.Subject,
		"message_id": msg.MessageID,
	}
	if info := resolution.Extracted; info != nil {
		if info.CompanyName != "" {
			alertContext["extracted_company"] = info.CompanyName
		}
		if info.ContactName != "" {
			alertContext["extracted_contact"] = info.ContactName
		}
		if info.Phone != "" {
			alertContext["extracted_phone"] = info.Phone
		}
		if len(info.SuggestedActions) > 0 {
			alertContext["suggested_actions"] = info.SuggestedActions
		}
	}
	err := p.alerts.Notify(ctx, adminalert.Alert{
		TenantID: tenantID.String(),
		Title:    "Unmatched order email",
		Message:  "An order email arrived from an unregistered sender.",
		Context:  alertContext,
	})
	if err != nil {
		p.log.Warn("admin alert failed",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
	}

	decision, err := p.companies.ShouldAutoRegister(ctx, tenantID, msg.Sender.Address)
	if err != nil {
		p.log.Warn("auto-register check failed",
			zap.String("sender", msg.Sender.Address),
			zap.Error(err))
	} else if decision.ShouldRegister && resolution.Extracted != nil {
		info := *resolution.Extracted
		info.CompanyName = decision.CompanyName
		if _, err := p.companies.RegisterCompany(ctx, tenantID, msg.Sender.Address, info); err != nil {
			p.log.Warn("auto-registration failed",
				zap.String("sender", msg.Sender.Address),
				zap.Error(err))
		}
	}

	return Outcome{EmailLog: emailLog}, nil
}

func (p *Processor) recordDispatchMetrics(dispatch notifdomain.DispatchResult) {
	for _, row := range dispatch.Notifications {
		p.metrics.IncNotification(string(row.Type), string(row.Status))
		p.metrics.AddRetries(row.RetryCount)
		if fallback, ok := row.Metadata["is_fallback"].(bool); ok && fallback {
			p.metrics.IncFallback()
		}
	}
}

// BatchSummary aggregates a ProcessBatch run.
type BatchSummary struct {
	Processed  int
	Duplicates int
	Errors     int
}

// ProcessBatch runs the pipeline over a batch with bounded concurrency.
// Cancellation stops new work; emails already in flight finish normally.
func (p *Processor) ProcessBatch(ctx context.Context, tenantID snowflake.ID, msgs []mail.IncomingEmail, concurrency int) BatchSummary {
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		summary BatchSummary
	)
	sem := make(chan struct{}, concurrency)

	for _, msg := range msgs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(m mail.IncomingEmail) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outcome, err := p.ProcessEmail(ctx, tenantID, m)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				summary.Errors++
			case outcome.Duplicate:
				summary.Duplicates++
			default:
				summary.Processed++
			}
		}(msg)
	}
	wg.Wait()
	return summary
}
