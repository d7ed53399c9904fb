package payments

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// PushCallback is the provider-agnostic view of a mobile-money callback,
// extracted by the adapter before it reaches this layer.
type PushCallback struct {
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	Receipt           string
	Metadata          map[string]any
}

// HandlePushCallback reconciles an asynchronous mobile-money result. The
// checkout request id is the idempotency key: a callback that matches no
// payment row is a stray or duplicate delivery, acknowledged and dropped,
// never an error the provider should retry.
func (s *Service) HandlePushCallback(ctx context.Context, cb PushCallback) error {
	p, found, err := s.findByProviderRef(ctx, s.momo.Name(), cb.CheckoutRequestID)
	if err != nil {
		return err
	}
	if !found {
		s.logger.InfoContext(ctx, "push callback matched no payment, dropping",
			"checkout_request_id", cb.CheckoutRequestID, "result_code", cb.ResultCode)
		return nil
	}

	if cb.ResultCode == 0 {
		meta := map[string]any{}
		for k, v := range cb.Metadata {
			meta[k] = v
		}
		if cb.Receipt != "" {
			meta["receipt_number"] = cb.Receipt
		}
		return s.rec.Reconcile(ctx, p.ID, StatusCompleted, Result{Metadata: meta})
	}

	// non-zero result: the human-readable description is kept for support
	return s.rec.Reconcile(ctx, p.ID, StatusFailed, Result{Reason: cb.ResultDesc})
}

type PollResult struct {
	Payment Payment
	Status  MobileMoneyStatus
}

// PollPush is the synchronous fallback for when the callback never arrived:
// query the provider and reconcile any terminal answer.
func (s *Service) PollPush(ctx context.Context, actor Actor, paymentID string) (PollResult, error) {
	p, err := s.Get(ctx, actor, paymentID)
	if err != nil {
		return PollResult{}, err
	}
	if p.Provider != s.momo.Name() || p.ProviderRef == nil {
		return PollResult{}, ErrUnknownPayment
	}

	// a payment already settled locally needs no provider round-trip
	if p.Status != StatusPending {
		return PollResult{Payment: p, Status: statusToMobileMoney(p.Status)}, nil
	}

	q, err := s.momo.QueryStatus(ctx, *p.ProviderRef)
	if err != nil {
		return PollResult{}, err
	}

	switch q.Status {
	case MobileMoneyCompleted:
		meta := map[string]any{}
		if q.Receipt != "" {
			meta["receipt_number"] = q.Receipt
		}
		if err := s.rec.Reconcile(ctx, p.ID, StatusCompleted, Result{Metadata: meta}); err != nil {
			return PollResult{}, err
		}
	case MobileMoneyCancelled:
		if err := s.rec.Reconcile(ctx, p.ID, StatusCancelled, Result{Reason: q.Description}); err != nil {
			return PollResult{}, err
		}
	case MobileMoneyTimeout, MobileMoneyFailed:
		// timeout is terminal and surfaces as failed
		if err := s.rec.Reconcile(ctx, p.ID, StatusFailed, Result{Reason: q.Description}); err != nil {
			return PollResult{}, err
		}
	case MobileMoneyPending:
		return PollResult{Payment: p, Status: MobileMoneyPending}, nil
	}

	refreshed, err := s.Get(ctx, actor, paymentID)
	if err != nil {
		return PollResult{}, err
	}
	return PollResult{Payment: refreshed, Status: q.Status}, nil
}

func (s *Service) findByProviderRef(ctx context.Context, provider, ref string) (Payment, bool, error) {
	if ref == "" {
		return Payment{}, false, nil
	}
	var p Payment
	err := s.db.WithContext(ctx).First(&p, "provider = ? AND provider_ref = ?", provider, ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Payment{}, false, nil
	}
	if err != nil {
		return Payment{}, false, err
	}
	return p, true, nil
}

func statusToMobileMoney(s Status) MobileMoneyStatus {
	switch s {
	case StatusCompleted, StatusRefunded:
		return MobileMoneyCompleted
	case StatusCancelled:
		return MobileMoneyCancelled
	case StatusFailed:
		return MobileMoneyFailed
	default:
		return MobileMoneyPending
	}
}
