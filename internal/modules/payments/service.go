package payments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"safarifleet.com/app/internal/modules/bookings"
)

type Service struct {
	db     *gorm.DB
	logger *slog.Logger
	card   CardProvider
	momo   MobileMoneyProvider
	rec    *Reconciler
}

func NewService(db *gorm.DB, logger *slog.Logger, card CardProvider, momo MobileMoneyProvider, rec *Reconciler) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, logger: logger, card: card, momo: momo, rec: rec}
}

type InitiateCardInput struct {
	BookingID   string
	ActorUserID string
}

type InitiateCardResult struct {
	PaymentID    string
	IntentID     string
	ClientSecret string
	Status       Status
}

// InitiateCard creates (or reuses) the payment attempt and asks the card
// processor for an intent. Three phases: attempt row inside a transaction,
// provider call outside it, finalize inside a second one.
func (s *Service) InitiateCard(ctx context.Context, in InitiateCardInput) (InitiateCardResult, error) {
	attempt, bk, err := s.openAttempt(ctx, in.BookingID, in.ActorUserID, s.card.Name())
	if err != nil {
		return InitiateCardResult{}, err
	}

	resp, perr := s.card.CreateIntent(ctx, CreateIntentRequest{
		PaymentID:   attempt.ID,
		BookingID:   bk.ID,
		AmountCents: bk.TotalCents,
		Currency:    bk.Currency,
	})

	if perr != nil {
		s.markInitiationFailed(ctx, attempt.ID, perr)
		return InitiateCardResult{}, perr
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&Payment{}).
		Where("id = ?", attempt.ID).
		Updates(map[string]any{"provider_ref": resp.IntentID, "updated_at": now}).Error; err != nil {
		return InitiateCardResult{}, err
	}

	// stays pending; the webhook finalizes it
	return InitiateCardResult{
		PaymentID:    attempt.ID,
		IntentID:     resp.IntentID,
		ClientSecret: resp.ClientSecret,
		Status:       StatusPending,
	}, nil
}

type InitiatePushInput struct {
	BookingID   string
	ActorUserID string
	Phone       string // already normalized by the caller
}

type InitiatePushResult struct {
	PaymentID         string
	CheckoutRequestID string
	Status            Status
}

// InitiatePush sends the mobile-money prompt to the customer's phone. The
// pending-attempt reuse in openAttempt is the guard against a double-tapped
// "pay now" firing two prompts.
func (s *Service) InitiatePush(ctx context.Context, in InitiatePushInput) (InitiatePushResult, error) {
	attempt, bk, err := s.openAttempt(ctx, in.BookingID, in.ActorUserID, s.momo.Name())
	if err != nil {
		return InitiatePushResult{}, err
	}

	resp, perr := s.momo.Push(ctx, PushRequest{
		PaymentID:   attempt.ID,
		Phone:       in.Phone,
		AmountCents: bk.TotalCents,
		Reference:   shortRef(bk.ID),
		Description: "Vehicle rental booking " + shortRef(bk.ID),
	})

	if perr != nil {
		s.markInitiationFailed(ctx, attempt.ID, perr)
		return InitiatePushResult{}, perr
	}

	now := time.Now()
	meta, err := mergeMetadata(attempt.Metadata, map[string]any{
		"merchant_request_id": resp.MerchantRequestID,
	})
	if err != nil {
		return InitiatePushResult{}, err
	}
	if err := s.db.WithContext(ctx).Model(&Payment{}).
		Where("id = ?", attempt.ID).
		Updates(map[string]any{
			"provider_ref": resp.CheckoutRequestID,
			"metadata":     meta,
			"updated_at":   now,
		}).Error; err != nil {
		return InitiatePushResult{}, err
	}

	return InitiatePushResult{
		PaymentID:         attempt.ID,
		CheckoutRequestID: resp.CheckoutRequestID,
		Status:            StatusPending,
	}, nil
}

// openAttempt locks the booking, gates on payability and ownership, and
// returns an open pending attempt for (booking, provider). An existing
// pending attempt is reused with its amount refreshed instead of stacking
// duplicates.
func (s *Service) openAttempt(ctx context.Context, bookingID, actorUserID, provider string) (Payment, bookings.Booking, error) {
	var attempt Payment
	var bk bookings.Booking

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&bk, "id = ?", bookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return bookings.ErrUnknownBooking
			}
			return err
		}
		if bk.UserID != actorUserID {
			return ErrForbidden
		}
		if bk.Status != bookings.StatusPending {
			return ErrBookingNotPayable
		}

		var existing Payment
		e := tx.First(&existing, "booking_id = ? AND provider = ? AND status = ?",
			bk.ID, provider, StatusPending).Error
		if e == nil {
			if existing.AmountCents != bk.TotalCents {
				if err := tx.Model(&Payment{}).Where("id = ?", existing.ID).
					Updates(map[string]any{"amount_cents": bk.TotalCents, "updated_at": time.Now()}).Error; err != nil {
					return err
				}
				existing.AmountCents = bk.TotalCents
			}
			attempt = existing
			return nil
		}
		if !errors.Is(e, gorm.ErrRecordNotFound) {
			return e
		}

		now := time.Now()
		attempt = Payment{
			ID:          uuid.NewString(),
			BookingID:   &bk.ID,
			UserID:      bk.UserID,
			AmountCents: bk.TotalCents,
			Currency:    bk.Currency,
			Provider:    provider,
			Status:      StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.Create(&attempt).Error
	})
	if err != nil {
		return Payment{}, bookings.Booking{}, err
	}
	return attempt, bk, nil
}

func (s *Service) markInitiationFailed(ctx context.Context, paymentID string, cause error) {
	if err := s.rec.Reconcile(ctx, paymentID, StatusFailed, Result{Reason: cause.Error()}); err != nil {
		s.logger.ErrorContext(ctx, "failed to record initiation failure",
			"payment_id", paymentID, "err", err)
	}
}

type Actor struct {
	UserID string
	Admin  bool
}

func (s *Service) Get(ctx context.Context, actor Actor, id string) (Payment, error) {
	var p Payment
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Payment{}, ErrUnknownPayment
		}
		return Payment{}, err
	}
	if !actor.Admin && p.UserID != actor.UserID {
		return Payment{}, ErrForbidden
	}
	return p, nil
}

type ListParams struct {
	UserID    string // empty for admin "all"
	BookingID string
	Status    Status
	Page      int
	PageSize  int
}

func (s *Service) List(ctx context.Context, in ListParams) ([]Payment, int64, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	size := in.PageSize
	if size < 1 || size > 100 {
		size = 20
	}

	q := s.db.WithContext(ctx).Model(&Payment{})
	if in.UserID != "" {
		q = q.Where("user_id = ?", in.UserID)
	}
	if in.BookingID != "" {
		q = q.Where("booking_id = ?", in.BookingID)
	}
	if in.Status != "" {
		q = q.Where("status = ?", in.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []Payment
	if err := q.Order("created_at DESC").Limit(size).Offset((page - 1) * size).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func shortRef(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
