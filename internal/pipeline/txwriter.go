package pipeline

import (
	"context"
	"fmt"

	emaildomain "github.com/smallbiznis/ordersignal/internal/email/domain"
	notifdomain "github.com/smallbiznis/ordersignal/internal/notification/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TxWriter persists the full outcome of one processed email in a single
// transaction: the email log, every notification log and every retry log
// land together or not at all.
type TxWriter struct {
	db     *gorm.DB
	log    *zap.Logger
	strict bool
}

func NewTxWriter(db *gorm.DB, log *zap.Logger, strict bool) *TxWriter {
	return &TxWriter{db: db, log: log.Named("pipeline.txwriter"), strict: strict}
}

// Commit writes the email log together with the dispatch rows. In strict mode
// a critical provider failure aborts the commit entirely so the email can be
// reprocessed; otherwise the failure rows are persisted for the audit trail.
func (w *TxWriter) Commit(ctx context.Context, emailLog *emaildomain.EmailLog, dispatch *notifdomain.DispatchResult) error {
	if dispatch != nil && dispatch.Critical != nil {
		if w.strict {
			return fmt.Errorf("aborting commit on critical dispatch failure: %w", dispatch.Critical)
		}
		w.log.Error("critical dispatch failure recorded",
			zap.String("tenant_id", emailLog.TenantID.String()),
			zap.String("message_id", emailLog.MessageID),
			zap.Error(dispatch.Critical))
	}

	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(emailLog).Error; err != nil {
			return fmt.Errorf("create email log: %w", err)
		}
		if dispatch == nil {
			return nil
		}
		if len(dispatch.Notifications) > 0 {
			if err := tx.Create(&dispatch.Notifications).Error; err != nil {
				return fmt.Errorf("create notification logs: %w", err)
			}
		}
		if len(dispatch.RetryLogs) > 0 {
			if err := tx.Create(&dispatch.RetryLogs).Error; err != nil {
				return fmt.Errorf("create retry logs: %w", err)
			}
		}
		return nil
	})
}
