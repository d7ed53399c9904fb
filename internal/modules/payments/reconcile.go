package payments

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"safarifleet.com/app/internal/modules/bookings"
	"safarifleet.com/app/internal/modules/email"
	"safarifleet.com/app/internal/modules/users"
	"safarifleet.com/app/internal/modules/vehicles"
)

var ErrIllegalTransition = errors.New("illegal payment status transition")

// Reconciler is the single choke point that applies a terminal provider
// result to a payment and cascades the linked booking. Every path that
// mutates payment status goes through here.
type Reconciler struct {
	db     *gorm.DB
	logger *slog.Logger
	mail   *email.Notifier // optional
}

func NewReconciler(db *gorm.DB, logger *slog.Logger, mail *email.Notifier) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{db: db, logger: logger, mail: mail}
}

// Result carries what the provider reported alongside the status.
type Result struct {
	ProviderRef string         // overwrite the external ref if non-empty
	Reason      string         // failure reason, kept for support
	Metadata    map[string]any // receipt fields, merged into payment metadata
}

type outcome struct {
	payment      Payment
	completedNow bool
	bookingID    string
}

// Reconcile moves the payment to target and, inside the same transaction,
// cascades the booking update. A payment already in target is a no-op: the
// booking is not touched again and no second receipt goes out.
func (r *Reconciler) Reconcile(ctx context.Context, paymentID string, target Status, res Result) error {
	var o outcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		o, err = r.apply(ctx, tx, paymentID, target, res)
		return err
	})
	if err != nil {
		return err
	}
	if o.completedNow {
		r.notifyCompleted(ctx, o)
	}
	return nil
}

// apply runs inside the caller's transaction so the webhook service can
// combine it with event dedupe. The payment write and the booking cascade
// commit or roll back together; a partial failure is surfaced, never hidden.
func (r *Reconciler) apply(ctx context.Context, tx *gorm.DB, paymentID string, target Status, res Result) (outcome, error) {
	var p Payment
	if err := lockForUpdate(tx).First(&p, "id = ?", paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return outcome{}, ErrUnknownPayment
		}
		return outcome{}, err
	}

	// idempotent: duplicate delivery of the same terminal result
	if p.Status == target {
		r.logger.InfoContext(ctx, "payment already in target status",
			"payment_id", p.ID, "status", target)
		return outcome{payment: p}, nil
	}

	now := time.Now()
	updates := map[string]any{"status": target, "updated_at": now}
	if res.ProviderRef != "" {
		updates["provider_ref"] = res.ProviderRef
	}

	switch target {
	case StatusCompleted:
		if p.Status == StatusRefunded {
			return outcome{}, ErrIllegalTransition
		}
		meta, err := mergeMetadata(p.Metadata, res.Metadata)
		if err != nil {
			return outcome{}, err
		}
		updates["metadata"] = meta
		updates["failure_reason"] = nil
		if err := tx.Model(&Payment{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
			return outcome{}, err
		}

		o := outcome{payment: p, completedNow: true}
		if p.BookingID != nil {
			confirmed, err := r.confirmBooking(tx, *p.BookingID, now)
			if err != nil {
				return outcome{}, err
			}
			if confirmed {
				o.bookingID = *p.BookingID
			}
		}
		return o, nil

	case StatusFailed, StatusCancelled:
		// a terminal payment stays terminal; a late failure event for a
		// payment that already completed is dropped
		if p.Status != StatusPending {
			r.logger.WarnContext(ctx, "ignoring out-of-order payment result",
				"payment_id", p.ID, "current", p.Status, "reported", target)
			return outcome{payment: p}, nil
		}
		if res.Reason != "" {
			updates["failure_reason"] = truncate(res.Reason, 250)
		}
		// the booking stays untouched: the customer may retry with another attempt
		if err := tx.Model(&Payment{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
			return outcome{}, err
		}
		return outcome{payment: p}, nil

	case StatusRefunded:
		if p.Status != StatusCompleted {
			return outcome{}, ErrNotRefundable
		}
		meta, err := mergeMetadata(p.Metadata, res.Metadata)
		if err != nil {
			return outcome{}, err
		}
		updates["metadata"] = meta
		if err := tx.Model(&Payment{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
			return outcome{}, err
		}
		if p.BookingID != nil {
			if err := r.cancelBooking(tx, *p.BookingID, now); err != nil {
				return outcome{}, err
			}
		}
		return outcome{payment: p}, nil

	default:
		return outcome{}, ErrIllegalTransition
	}
}

func (r *Reconciler) confirmBooking(tx *gorm.DB, bookingID string, now time.Time) (bool, error) {
	var b bookings.Booking
	if err := lockForUpdate(tx).First(&b, "id = ?", bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// booking deleted since the attempt was created; payment status still counts
			return false, nil
		}
		return false, err
	}
	if b.Status != bookings.StatusPending {
		return false, nil
	}
	err := tx.Model(&bookings.Booking{}).Where("id = ?", bookingID).
		Updates(map[string]any{"status": bookings.StatusConfirmed, "updated_at": now}).Error
	return err == nil, err
}

func (r *Reconciler) cancelBooking(tx *gorm.DB, bookingID string, now time.Time) error {
	var b bookings.Booking
	if err := lockForUpdate(tx).First(&b, "id = ?", bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	switch b.Status {
	case bookings.StatusCancelled, bookings.StatusCompleted:
		return nil
	}
	return tx.Model(&bookings.Booking{}).Where("id = ?", bookingID).
		Updates(map[string]any{"status": bookings.StatusCancelled, "updated_at": now}).Error
}

// notifyCompleted is fire-and-forget: a mail failure must never unwind a
// completed payment. The booking confirmation goes out only when this
// reconcile actually flipped the booking, so duplicate deliveries stay quiet.
func (r *Reconciler) notifyCompleted(ctx context.Context, o outcome) {
	if r.mail == nil {
		return
	}

	var u users.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", o.payment.UserID).Error; err != nil {
		r.logger.ErrorContext(ctx, "notifications skipped: user lookup failed",
			"payment_id", o.payment.ID, "err", err)
		return
	}

	if o.bookingID != "" {
		r.sendBookingConfirmation(ctx, u, o.bookingID)
	}
	r.sendReceipt(ctx, u, o)
}

func (r *Reconciler) sendBookingConfirmation(ctx context.Context, u users.User, bookingID string) {
	var b bookings.Booking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", bookingID).Error; err != nil {
		r.logger.ErrorContext(ctx, "booking confirmation skipped: booking lookup failed",
			"booking_id", bookingID, "err", err)
		return
	}

	vehicleName := "your vehicle"
	var v vehicles.Vehicle
	if err := r.db.WithContext(ctx).First(&v, "id = ?", b.VehicleID).Error; err == nil {
		vehicleName = v.Name
	}

	if err := r.mail.SendBookingConfirmation(ctx, u.Email, u.FullName, b.ID, vehicleName,
		b.StartDate.Format("2006-01-02"), b.EndDate.Format("2006-01-02"),
		b.TotalCents, b.Currency); err != nil {
		r.logger.ErrorContext(ctx, "booking confirmation email failed",
			"booking_id", bookingID, "err", err)
	}
}

func (r *Reconciler) sendReceipt(ctx context.Context, u users.User, o outcome) {
	bookingID := ""
	if o.payment.BookingID != nil {
		bookingID = *o.payment.BookingID
	}
	ref := ""
	if o.payment.ProviderRef != nil {
		ref = *o.payment.ProviderRef
	}

	if err := r.mail.SendPaymentReceipt(ctx, u.Email, u.FullName, bookingID,
		o.payment.AmountCents, o.payment.Currency, ref); err != nil {
		r.logger.ErrorContext(ctx, "receipt email failed",
			"payment_id", o.payment.ID, "err", err)
	}
}

func mergeMetadata(existing datatypes.JSON, add map[string]any) (datatypes.JSON, error) {
	if len(add) == 0 {
		return existing, nil
	}
	m := map[string]any{}
	if len(existing) > 0 {
		_ = json.Unmarshal(existing, &m)
	}
	for k, v := range add {
		m[k] = v
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// lockForUpdate takes a row lock on MySQL. sqlite (tests) serializes the
// whole write transaction instead and rejects FOR UPDATE syntax.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "mysql" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
