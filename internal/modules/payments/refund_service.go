package payments

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"
)

// RefundService moves a completed payment to refunded. Refunds are issued
// out-of-band by the back office; this records the outcome and cancels the
// linked booking through the reconciler.
type RefundService struct {
	db     *gorm.DB
	logger *slog.Logger
	rec    *Reconciler
}

func NewRefundService(db *gorm.DB, logger *slog.Logger, rec *Reconciler) *RefundService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefundService{db: db, logger: logger, rec: rec}
}

type RefundInput struct {
	PaymentID   string
	ActorUserID string // admin performing the refund
	Reason      string
}

func (s *RefundService) Refund(ctx context.Context, in RefundInput) (Payment, error) {
	var p Payment
	if err := s.db.WithContext(ctx).First(&p, "id = ?", in.PaymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Payment{}, ErrUnknownPayment
		}
		return Payment{}, err
	}

	// precondition enforced again under lock inside the reconciler; this
	// early check just produces the right error before any writes
	if p.Status != StatusCompleted {
		return Payment{}, ErrNotRefundable
	}

	meta := map[string]any{"refunded_by": in.ActorUserID}
	if in.Reason != "" {
		meta["refund_reason"] = in.Reason
	}
	if err := s.rec.Reconcile(ctx, p.ID, StatusRefunded, Result{Metadata: meta}); err != nil {
		return Payment{}, err
	}

	s.logger.InfoContext(ctx, "payment refunded",
		"payment_id", p.ID, "actor", in.ActorUserID)

	var out Payment
	if err := s.db.WithContext(ctx).First(&out, "id = ?", p.ID).Error; err != nil {
		return Payment{}, err
	}
	return out, nil
}
