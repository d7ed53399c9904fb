package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"safarifleet.com/app/internal/modules/bookings"
)

type fakeCard struct {
	err   error
	calls int
}

func (f *fakeCard) Name() string { return ProviderCard }

func (f *fakeCard) CreateIntent(ctx context.Context, req CreateIntentRequest) (CreateIntentResponse, error) {
	f.calls++
	if f.err != nil {
		return CreateIntentResponse{}, f.err
	}
	return CreateIntentResponse{IntentID: "pi_test", ClientSecret: "cs_test"}, nil
}

func (f *fakeCard) VerifyWebhook(h http.Header, body []byte) (CardEvent, error) {
	return CardEvent{}, errors.New("not used")
}

type fakeMomo struct {
	pushErr  error
	query    QueryResult
	queryErr error
	pushes   []PushRequest
}

func (f *fakeMomo) Name() string { return ProviderMobileMoney }

func (f *fakeMomo) Push(ctx context.Context, req PushRequest) (PushResponse, error) {
	f.pushes = append(f.pushes, req)
	if f.pushErr != nil {
		return PushResponse{}, f.pushErr
	}
	return PushResponse{CheckoutRequestID: "ws_CO_test", MerchantRequestID: "mr_test"}, nil
}

func (f *fakeMomo) QueryStatus(ctx context.Context, checkoutRequestID string) (QueryResult, error) {
	if f.queryErr != nil {
		return QueryResult{}, f.queryErr
	}
	return f.query, nil
}

func TestInitiateCardCreatesAndReusesAttempt(t *testing.T) {
	db := newTestDB(t)
	card := &fakeCard{}
	momo := &fakeMomo{}
	svc := NewService(db, nil, card, momo, NewReconciler(db, nil, nil))

	u := seedUser(t, db)
	b := seedBooking(t, db, u.ID, bookings.StatusPending)

	res, err := svc.InitiateCard(context.Background(), InitiateCardInput{BookingID: b.ID, ActorUserID: u.ID})
	if err != nil {
		t.Fatalf("InitiateCard: %v", err)
	}
	if res.Status != StatusPending {
		t.Errorf("status = %q, want pending", res.Status)
	}
	if res.IntentID != "pi_test" || res.ClientSecret != "cs_test" {
		t.Errorf("intent = %q/%q, want pi_test/cs_test", res.IntentID, res.ClientSecret)
	}

	p := getPayment(t, db, res.PaymentID)
	if p.ProviderRef == nil || *p.ProviderRef != "pi_test" {
		t.Errorf("provider_ref = %v, want pi_test", p.ProviderRef)
	}
	if p.AmountCents != b.TotalCents {
		t.Errorf("amount = %d, want %d", p.AmountCents, b.TotalCents)
	}

	// a second tap reuses the open attempt instead of stacking a new one
	res2, err := svc.InitiateCard(context.Background(), InitiateCardInput{BookingID: b.ID, ActorUserID: u.ID})
	if err != nil {
		t.Fatalf("InitiateCard again: %v", err)
	}
	if res2.PaymentID != res.PaymentID {
		t.Errorf("second attempt id = %s, want reuse of %s", res2.PaymentID, res.PaymentID)
	}

	var count int64
	db.Model(&Payment{}).Where("booking_id = ?", b.ID).Count(&count)
	if count != 1 {
		t.Errorf("payment rows = %d, want 1", count)
	}
}

func TestInitiateCardGates(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil, &fakeCard{}, &fakeMomo{}, NewReconciler(db, nil, nil))
	u := seedUser(t, db)

	// stranger cannot pay someone else's booking
	b := seedBooking(t, db, u.ID, bookings.StatusPending)
	if _, err := svc.InitiateCard(context.Background(), InitiateCardInput{BookingID: b.ID, ActorUserID: uuid.NewString()}); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger: err = %v, want ErrForbidden", err)
	}

	// confirmed bookings are already paid
	bc := seedBooking(t, db, u.ID, bookings.StatusConfirmed)
	if _, err := svc.InitiateCard(context.Background(), InitiateCardInput{BookingID: bc.ID, ActorUserID: u.ID}); !errors.Is(err, ErrBookingNotPayable) {
		t.Errorf("confirmed: err = %v, want ErrBookingNotPayable", err)
	}

	if _, err := svc.InitiateCard(context.Background(), InitiateCardInput{BookingID: uuid.NewString(), ActorUserID: u.ID}); !errors.Is(err, bookings.ErrUnknownBooking) {
		t.Errorf("missing: err = %v, want ErrUnknownBooking", err)
	}
}

func TestInitiateCardProviderFailureMarksAttemptFailed(t *testing.T) {
	db := newTestDB(t)
	card := &fakeCard{err: errors.New("processor unreachable")}
	svc := NewService(db, nil, card, &fakeMomo{}, NewReconciler(db, nil, nil))

	u := seedUser(t, db)
	b := seedBooking(t, db, u.ID, bookings.StatusPending)

	if _, err := svc.InitiateCard(context.Background(), InitiateCardInput{BookingID: b.ID, ActorUserID: u.ID}); err == nil {
		t.Fatal("expected provider error")
	}

	var p Payment
	if err := db.First(&p, "booking_id = ?", b.ID).Error; err != nil {
		t.Fatalf("load attempt: %v", err)
	}
	if p.Status != StatusFailed {
		t.Errorf("payment status = %q, want failed", p.Status)
	}
	if p.FailureReason == nil {
		t.Error("failure_reason not recorded")
	}
	// the booking survives for a retry
	if got := getBooking(t, db, b.ID); got.Status != bookings.StatusPending {
		t.Errorf("booking status = %q, want pending", got.Status)
	}
}

func TestInitiatePushStoresCheckoutRef(t *testing.T) {
	db := newTestDB(t)
	momo := &fakeMomo{}
	svc := NewService(db, nil, &fakeCard{}, momo, NewReconciler(db, nil, nil))

	u := seedUser(t, db)
	b := seedBooking(t, db, u.ID, bookings.StatusPending)

	res, err := svc.InitiatePush(context.Background(), InitiatePushInput{
		BookingID:   b.ID,
		ActorUserID: u.ID,
		Phone:       "254712345678",
	})
	if err != nil {
		t.Fatalf("InitiatePush: %v", err)
	}
	if res.CheckoutRequestID != "ws_CO_test" {
		t.Errorf("checkout id = %q, want ws_CO_test", res.CheckoutRequestID)
	}
	if len(momo.pushes) != 1 {
		t.Fatalf("pushes = %d, want 1", len(momo.pushes))
	}
	if momo.pushes[0].AmountCents != b.TotalCents {
		t.Errorf("push amount = %d, want %d", momo.pushes[0].AmountCents, b.TotalCents)
	}

	p := getPayment(t, db, res.PaymentID)
	if p.ProviderRef == nil || *p.ProviderRef != "ws_CO_test" {
		t.Errorf("provider_ref = %v, want ws_CO_test", p.ProviderRef)
	}

	var meta map[string]any
	if err := json.Unmarshal(p.Metadata, &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta["merchant_request_id"] != "mr_test" {
		t.Errorf("merchant_request_id = %v, want mr_test", meta["merchant_request_id"])
	}
}

func TestHandlePushCallback(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil, &fakeCard{}, &fakeMomo{}, NewReconciler(db, nil, nil))

	u := seedUser(t, db)
	b := seedBooking(t, db, u.ID, bookings.StatusPending)
	p := seedPayment(t, db, u.ID, &b.ID, ProviderMobileMoney, StatusPending)

	err := svc.HandlePushCallback(context.Background(), PushCallback{
		CheckoutRequestID: *p.ProviderRef,
		ResultCode:        0,
		Receipt:           "SFI12ABC34",
	})
	if err != nil {
		t.Fatalf("HandlePushCallback: %v", err)
	}

	got := getPayment(t, db, p.ID)
	if got.Status != StatusCompleted {
		t.Errorf("payment status = %q, want completed", got.Status)
	}
	var meta map[string]any
	_ = json.Unmarshal(got.Metadata, &meta)
	if meta["receipt_number"] != "SFI12ABC34" {
		t.Errorf("receipt_number = %v, want SFI12ABC34", meta["receipt_number"])
	}
	if gotB := getBooking(t, db, b.ID); gotB.Status != bookings.StatusConfirmed {
		t.Errorf("booking status = %q, want confirmed", gotB.Status)
	}

	// a stray callback is acknowledged and dropped
	if err := svc.HandlePushCallback(context.Background(), PushCallback{
		CheckoutRequestID: "ws_CO_unknown",
		ResultCode:        0,
	}); err != nil {
		t.Errorf("stray callback: err = %v, want nil", err)
	}
}

func TestHandlePushCallbackFailure(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil, &fakeCard{}, &fakeMomo{}, NewReconciler(db, nil, nil))

	u := seedUser(t, db)
	b := seedBooking(t, db, u.ID, bookings.StatusPending)
	p := seedPayment(t, db, u.ID, &b.ID, ProviderMobileMoney, StatusPending)

	err := svc.HandlePushCallback(context.Background(), PushCallback{
		CheckoutRequestID: *p.ProviderRef,
		ResultCode:        1032,
		ResultDesc:        "Request cancelled by user",
	})
	if err != nil {
		t.Fatalf("HandlePushCallback: %v", err)
	}

	got := getPayment(t, db, p.ID)
	if got.Status != StatusFailed {
		t.Errorf("payment status = %q, want failed", got.Status)
	}
	if got.FailureReason == nil || *got.FailureReason != "Request cancelled by user" {
		t.Errorf("failure_reason = %v, want the provider description", got.FailureReason)
	}
}

func TestPollPush(t *testing.T) {
	db := newTestDB(t)
	momo := &fakeMomo{}
	svc := NewService(db, nil, &fakeCard{}, momo, NewReconciler(db, nil, nil))

	u := seedUser(t, db)
	actor := Actor{UserID: u.ID}

	// provider reports success
	b := seedBooking(t, db, u.ID, bookings.StatusPending)
	p := seedPayment(t, db, u.ID, &b.ID, ProviderMobileMoney, StatusPending)
	momo.query = QueryResult{Status: MobileMoneyCompleted, Receipt: "SFI99XYZ"}

	res, err := svc.PollPush(context.Background(), actor, p.ID)
	if err != nil {
		t.Fatalf("PollPush: %v", err)
	}
	if res.Status != MobileMoneyCompleted {
		t.Errorf("status = %q, want completed", res.Status)
	}
	if res.Payment.Status != StatusCompleted {
		t.Errorf("payment status = %q, want completed", res.Payment.Status)
	}

	// provider still waiting on the customer: nothing changes
	b2 := seedBooking(t, db, u.ID, bookings.StatusPending)
	p2 := seedPayment(t, db, u.ID, &b2.ID, ProviderMobileMoney, StatusPending)
	momo.query = QueryResult{Status: MobileMoneyPending}

	res, err = svc.PollPush(context.Background(), actor, p2.ID)
	if err != nil {
		t.Fatalf("PollPush pending: %v", err)
	}
	if res.Status != MobileMoneyPending {
		t.Errorf("status = %q, want pending", res.Status)
	}
	if got := getPayment(t, db, p2.ID); got.Status != StatusPending {
		t.Errorf("payment status = %q, want still pending", got.Status)
	}

	// timeout is terminal
	b3 := seedBooking(t, db, u.ID, bookings.StatusPending)
	p3 := seedPayment(t, db, u.ID, &b3.ID, ProviderMobileMoney, StatusPending)
	momo.query = QueryResult{Status: MobileMoneyTimeout, Description: "DS timeout"}

	res, err = svc.PollPush(context.Background(), actor, p3.ID)
	if err != nil {
		t.Fatalf("PollPush timeout: %v", err)
	}
	if res.Payment.Status != StatusFailed {
		t.Errorf("payment status = %q, want failed", res.Payment.Status)
	}

	// polling a card payment makes no sense
	pc := seedPayment(t, db, u.ID, nil, ProviderCard, StatusPending)
	if _, err := svc.PollPush(context.Background(), actor, pc.ID); !errors.Is(err, ErrUnknownPayment) {
		t.Errorf("card poll: err = %v, want ErrUnknownPayment", err)
	}
}
