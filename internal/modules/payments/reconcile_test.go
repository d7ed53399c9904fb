package payments

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"safarifleet.com/app/internal/mailer"
	"safarifleet.com/app/internal/modules/bookings"
	"safarifleet.com/app/internal/modules/email"
	"safarifleet.com/app/internal/modules/users"
	"safarifleet.com/app/internal/modules/vehicles"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&users.User{}, &vehicles.Vehicle{}, &bookings.Booking{}, &Payment{}, &ProviderEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB) users.User {
	t.Helper()
	now := time.Now()
	u := users.User{
		ID:           uuid.NewString(),
		Email:        uuid.NewString()[:8] + "@example.com",
		PasswordHash: "x",
		FullName:     "Wanjiku Kamau",
		Role:         users.RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedBooking(t *testing.T, db *gorm.DB, userID string, status bookings.Status) bookings.Booking {
	t.Helper()
	now := time.Now()
	b := bookings.Booking{
		ID:         uuid.NewString(),
		UserID:     userID,
		VehicleID:  uuid.NewString(),
		LocationID: uuid.NewString(),
		StartDate:  now.AddDate(0, 1, 0),
		EndDate:    now.AddDate(0, 1, 3),
		TotalCents: 15000,
		Currency:   "KES",
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.Create(&b).Error; err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	return b
}

func seedPayment(t *testing.T, db *gorm.DB, userID string, bookingID *string, provider string, status Status) Payment {
	t.Helper()
	now := time.Now()
	ref := "ref_" + uuid.NewString()[:8]
	p := Payment{
		ID:          uuid.NewString(),
		BookingID:   bookingID,
		UserID:      userID,
		AmountCents: 15000,
		Currency:    "KES",
		Provider:    provider,
		ProviderRef: &ref,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return p
}

func getPayment(t *testing.T, db *gorm.DB, id string) Payment {
	t.Helper()
	var p Payment
	if err := db.First(&p, "id = ?", id).Error; err != nil {
		t.Fatalf("load payment: %v", err)
	}
	return p
}

func getBooking(t *testing.T, db *gorm.DB, id string) bookings.Booking {
	t.Helper()
	var b bookings.Booking
	if err := db.First(&b, "id = ?", id).Error; err != nil {
		t.Fatalf("load booking: %v", err)
	}
	return b
}

func TestReconcileCompletedConfirmsBookingAndSendsReceipt(t *testing.T) {
	db := newTestDB(t)
	mock := &mailer.Mock{}
	rec := NewReconciler(db, nil, email.NewNotifier(mock, "no-reply@safarifleet.com", "SafariFleet"))

	u := seedUser(t, db)
	b := seedBooking(t, db, u.ID, bookings.StatusPending)
	p := seedPayment(t, db, u.ID, &b.ID, ProviderCard, StatusPending)

	err := rec.Reconcile(context.Background(), p.ID, StatusCompleted, Result{
		Metadata: map[string]any{"intent_id": "pi_123"},
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if got := getPayment(t, db, p.ID); got.Status != StatusCompleted {
		t.Errorf("payment status = %q, want completed", got.Status)
	}
	if got := getBooking(t, db, b.ID); got.Status != bookings.StatusConfirmed {
		t.Errorf("booking status = %q, want confirmed", got.Status)
	}
	if len(mock.Sent) != 2 {
		t.Fatalf("emails sent = %d, want confirmation + receipt", len(mock.Sent))
	}
	if subj := mock.Sent[0].Subject; !strings.Contains(subj, "Booking confirmed") {
		t.Errorf("first email subject = %q, want booking confirmation", subj)
	}
	if subj := mock.Sent[1].Subject; !strings.Contains(subj, "Payment received") {
		t.Errorf("second email subject = %q, want payment receipt", subj)
	}
	for i, e := range mock.Sent {
		if e.To[0] != u.Email {
			t.Errorf("email #%d sent to %q, want %q", i, e.To[0], u.Email)
		}
	}
}

func TestReconcileCompletedIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	mock := &mailer.Mock{}
	rec := NewReconciler(db, nil, email.NewNotifier(mock, "no-reply@safarifleet.com", "SafariFleet"))

	u := seedUser(t, db)
	b := seedBooking(t, db, u.ID, bookings.StatusPending)
	p := seedPayment(t, db, u.ID, &b.ID, ProviderCard, StatusPending)

	for i := 0; i < 2; i++ {
		if err := rec.Reconcile(context.Background(), p.ID, StatusCompleted, Result{}); err != nil {
			t.Fatalf("Reconcile #%d: %v", i+1, err)
		}
	}

	if len(mock.Sent) != 2 {
		t.Errorf("emails sent = %d, want 2 (duplicate must not resend)", len(mock.Sent))
	}
	if got := getBooking(t, db, b.ID); got.Status != bookings.StatusConfirmed {
		t.Errorf("booking status = %q, want confirmed", got.Status)
	}
}

func TestReconcileLateFailureDoesNotDowngrade(t *testing.T) {
	db := newTestDB(t)
	rec := NewReconciler(db, nil, nil)

	u := seedUser(t, db)
	b := seedBooking(t, db, u.ID, bookings.StatusConfirmed)
	p := seedPayment(t, db, u.ID, &b.ID, ProviderCard, StatusCompleted)

	// out-of-order failure after success: acknowledged, nothing changes
	if err := rec.Reconcile(context.Background(), p.ID, StatusFailed, Result{Reason: "late event"}); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	got := getPayment(t, db, p.ID)
	if got.Status != StatusCompleted {
		t.Errorf("payment status = %q, want completed", got.Status)
	}
	if got.FailureReason != nil {
		t.Errorf("failure_reason = %q, want unset", *got.FailureReason)
	}
	if got := getBooking(t, db, b.ID); got.Status != bookings.StatusConfirmed {
		t.Errorf("booking status = %q, want confirmed", got.Status)
	}
}

func TestReconcileFailedKeepsBookingOpen(t *testing.T) {
	db := newTestDB(t)
	rec := NewReconciler(db, nil, nil)

	u := seedUser(t, db)
	b := seedBooking(t, db, u.ID, bookings.StatusPending)
	p := seedPayment(t, db, u.ID, &b.ID, ProviderMobileMoney, StatusPending)

	if err := rec.Reconcile(context.Background(), p.ID, StatusFailed, Result{Reason: "Request cancelled by user"}); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	got := getPayment(t, db, p.ID)
	if got.Status != StatusFailed {
		t.Errorf("payment status = %q, want failed", got.Status)
	}
	if got.FailureReason == nil || *got.FailureReason != "Request cancelled by user" {
		t.Errorf("failure_reason = %v, want recorded", got.FailureReason)
	}
	// the customer can retry with another attempt
	if got := getBooking(t, db, b.ID); got.Status != bookings.StatusPending {
		t.Errorf("booking status = %q, want pending", got.Status)
	}
}

func TestReconcileRefundRules(t *testing.T) {
	db := newTestDB(t)
	rec := NewReconciler(db, nil, nil)
	u := seedUser(t, db)

	for _, status := range []Status{StatusPending, StatusFailed, StatusCancelled} {
		p := seedPayment(t, db, u.ID, nil, ProviderCard, status)
		if err := rec.Reconcile(context.Background(), p.ID, StatusRefunded, Result{}); !errors.Is(err, ErrNotRefundable) {
			t.Errorf("refund from %s: err = %v, want ErrNotRefundable", status, err)
		}
	}

	b := seedBooking(t, db, u.ID, bookings.StatusConfirmed)
	p := seedPayment(t, db, u.ID, &b.ID, ProviderCard, StatusCompleted)
	if err := rec.Reconcile(context.Background(), p.ID, StatusRefunded, Result{}); err != nil {
		t.Fatalf("refund from completed: %v", err)
	}
	if got := getPayment(t, db, p.ID); got.Status != StatusRefunded {
		t.Errorf("payment status = %q, want refunded", got.Status)
	}
	if got := getBooking(t, db, b.ID); got.Status != bookings.StatusCancelled {
		t.Errorf("booking status = %q, want cancelled", got.Status)
	}

	// refunding again is rejected, a refund is final
	if err := rec.Reconcile(context.Background(), p.ID, StatusCompleted, Result{}); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("complete after refund: err = %v, want ErrIllegalTransition", err)
	}
}

func TestReconcileRefundLeavesFinishedBookingAlone(t *testing.T) {
	db := newTestDB(t)
	rec := NewReconciler(db, nil, nil)
	u := seedUser(t, db)

	b := seedBooking(t, db, u.ID, bookings.StatusCompleted)
	p := seedPayment(t, db, u.ID, &b.ID, ProviderCard, StatusCompleted)

	if err := rec.Reconcile(context.Background(), p.ID, StatusRefunded, Result{}); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if got := getBooking(t, db, b.ID); got.Status != bookings.StatusCompleted {
		t.Errorf("booking status = %q, want completed (rental already happened)", got.Status)
	}
}

func TestReconcileUnknownPayment(t *testing.T) {
	db := newTestDB(t)
	rec := NewReconciler(db, nil, nil)

	err := rec.Reconcile(context.Background(), uuid.NewString(), StatusCompleted, Result{})
	if !errors.Is(err, ErrUnknownPayment) {
		t.Errorf("err = %v, want ErrUnknownPayment", err)
	}
}
