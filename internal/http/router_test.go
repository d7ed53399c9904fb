package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"safarifleet.com/app/internal/config"
	"safarifleet.com/app/internal/http/handlers"
	"safarifleet.com/app/internal/mailer"
	"safarifleet.com/app/internal/modules/bookings"
	"safarifleet.com/app/internal/modules/email"
	"safarifleet.com/app/internal/modules/images"
	"safarifleet.com/app/internal/modules/locations"
	"safarifleet.com/app/internal/modules/payments"
	"safarifleet.com/app/internal/modules/payments/card"
	"safarifleet.com/app/internal/modules/users"
	"safarifleet.com/app/internal/modules/vehicles"
	"safarifleet.com/app/internal/storage"
)

const testWebhookSecret = "whsec_router_test"

// stubCard initiates intents locally; webhook verification goes through the
// real adapter so the signature path is covered end to end.
type stubCard struct{ intents int }

func (s *stubCard) Name() string { return payments.ProviderCard }

func (s *stubCard) CreateIntent(ctx context.Context, req payments.CreateIntentRequest) (payments.CreateIntentResponse, error) {
	s.intents++
	return payments.CreateIntentResponse{
		IntentID:     fmt.Sprintf("pi_%d", s.intents),
		ClientSecret: fmt.Sprintf("pi_%d_secret", s.intents),
	}, nil
}

func (s *stubCard) VerifyWebhook(h http.Header, body []byte) (payments.CardEvent, error) {
	return payments.CardEvent{}, errors.New("stub does not verify")
}

type stubMomo struct{}

func (stubMomo) Name() string { return payments.ProviderMobileMoney }

func (stubMomo) Push(ctx context.Context, req payments.PushRequest) (payments.PushResponse, error) {
	return payments.PushResponse{CheckoutRequestID: "ws_CO_router", MerchantRequestID: "mr_router"}, nil
}

func (stubMomo) QueryStatus(ctx context.Context, id string) (payments.QueryResult, error) {
	return payments.QueryResult{Status: payments.MobileMoneyPending}, nil
}

type testApp struct {
	engine *gin.Engine
	db     *gorm.DB
	mail   *mailer.Mock
	card   *stubCard
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&users.User{}, &locations.Location{},
		&vehicles.Vehicle{}, &vehicles.Specification{}, &vehicles.VehicleImage{},
		&bookings.Booking{}, &payments.Payment{}, &payments.ProviderEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.Config{
		Env: "test",
		JWT: config.JWTConfig{Secret: "router-test-secret", TTL: time.Hour},
	}
	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))

	mock := &mailer.Mock{}
	notifier := email.NewNotifier(mock, "no-reply@safarifleet.com", "SafariFleet")
	cardStub := &stubCard{}
	verifier := card.New(config.CardConfig{WebhookSecret: testWebhookSecret})

	userSvc := users.NewService(db, cfg.JWT)
	locationRepo := locations.NewRepo(db)
	vehicleSvc := vehicles.NewService(db)
	imageSvc := images.NewService(db, storage.NewLocal(t.TempDir(), "/uploads"))
	bookingSvc := bookings.NewService(db)

	rec := payments.NewReconciler(db, logger, notifier)
	paymentSvc := payments.NewService(db, logger, cardStub, stubMomo{}, rec)
	webhookSvc := payments.NewWebhookService(db, logger, rec)
	refundSvc := payments.NewRefundService(db, logger, rec)

	engine := NewRouter(RouterDeps{
		Config:    cfg,
		Logger:    logger,
		Auth:      handlers.NewAuthHandler(userSvc, nil, logger),
		Users:     handlers.NewUserHandler(userSvc),
		Locations: handlers.NewLocationHandler(locationRepo),
		Vehicles:  handlers.NewVehicleHandler(vehicleSvc, bookingSvc),
		Images:    handlers.NewImageHandler(imageSvc),
		Bookings:  handlers.NewBookingHandler(bookingSvc),
		Payments:  handlers.NewPaymentHandler(paymentSvc, refundSvc),
		Webhooks:  handlers.NewWebhookHandler(logger, verifier, webhookSvc),
		Mpesa:     handlers.NewMpesaCallbackHandler(logger, paymentSvc),
	})

	return &testApp{engine: engine, db: db, mail: mock, card: cardStub}
}

func (a *testApp) do(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, wantStatus int) envelope {
	t.Helper()
	if w.Code != wantStatus {
		t.Fatalf("status = %d, want %d; body %s", w.Code, wantStatus, w.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v; body %s", err, w.Body.String())
	}
	return env
}

func dataField(t *testing.T, env envelope, key string) string {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(env.Data, &m); err != nil {
		t.Fatalf("data: %v", err)
	}
	s, _ := m[key].(string)
	return s
}

func (a *testApp) registerAndLogin(t *testing.T, addr, role string) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/auth/register", "", gin.H{
		"email":     addr,
		"password":  "s3cret-pass",
		"full_name": "Router Test",
	})
	decode(t, w, http.StatusCreated)

	if role == users.RoleAdmin {
		if err := a.db.Model(&users.User{}).Where("email = ?", addr).
			Update("role", users.RoleAdmin).Error; err != nil {
			t.Fatalf("promote: %v", err)
		}
	}

	w = a.do(t, http.MethodPost, "/auth/login", "", gin.H{
		"email":    addr,
		"password": "s3cret-pass",
	})
	env := decode(t, w, http.StatusOK)
	token := dataField(t, env, "token")
	if token == "" {
		t.Fatal("no token in login response")
	}
	return token
}

func signWebhook(body []byte) string {
	ts := time.Now().Unix()
	m := hmac.New(sha256.New, []byte(testWebhookSecret))
	m.Write([]byte(strconv.FormatInt(ts, 10)))
	m.Write([]byte("."))
	m.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(m.Sum(nil)))
}

func TestBookingPaymentFlow(t *testing.T) {
	app := newTestApp(t)

	adminTok := app.registerAndLogin(t, "ops@safarifleet.com", users.RoleAdmin)
	custTok := app.registerAndLogin(t, "wanjiku@example.com", users.RoleCustomer)

	// admin sets up a location and a vehicle
	env := decode(t, app.do(t, http.MethodPost, "/admin/locations", adminTok, gin.H{
		"name":    "JKIA Desk",
		"city":    "Nairobi",
		"address": "Airport North Rd",
	}), http.StatusCreated)
	locationID := dataField(t, env, "id")

	env = decode(t, app.do(t, http.MethodPost, "/admin/vehicles", adminTok, gin.H{
		"name":         "RAV4",
		"brand":        "Toyota",
		"model_year":   2023,
		"plate_number": "KDJ 123A",
		"daily_cents":  500000,
		"currency":     "KES",
		"location_id":  locationID,
	}), http.StatusCreated)
	vehicleID := dataField(t, env, "id")

	start := time.Now().AddDate(0, 1, 0).Format("2006-01-02")
	end := time.Now().AddDate(0, 1, 3).Format("2006-01-02")

	// availability before booking
	w := app.do(t, http.MethodGet,
		fmt.Sprintf("/vehicles/%s/availability?start=%s&end=%s", vehicleID, start, end), "", nil)
	env = decode(t, w, http.StatusOK)
	var avail struct {
		Available bool `json:"available"`
	}
	_ = json.Unmarshal(env.Data, &avail)
	if !avail.Available {
		t.Fatal("expected vehicle to be available")
	}

	// customer books
	env = decode(t, app.do(t, http.MethodPost, "/bookings", custTok, gin.H{
		"vehicle_id": vehicleID,
		"start_date": start,
		"end_date":   end,
	}), http.StatusCreated)
	bookingID := dataField(t, env, "id")

	// same range is now taken
	w = app.do(t, http.MethodGet,
		fmt.Sprintf("/vehicles/%s/availability?start=%s&end=%s", vehicleID, start, end), "", nil)
	env = decode(t, w, http.StatusOK)
	_ = json.Unmarshal(env.Data, &avail)
	if avail.Available {
		t.Fatal("expected vehicle to be taken")
	}

	// customer starts a card payment
	env = decode(t, app.do(t, http.MethodPost, "/payments/card", custTok, gin.H{
		"booking_id": bookingID,
	}), http.StatusAccepted)
	paymentID := dataField(t, env, "payment_id")
	intentID := dataField(t, env, "intent_id")
	if intentID == "" {
		t.Fatal("no intent id")
	}

	// processor webhook lands
	body := []byte(fmt.Sprintf(
		`{"id":"evt_router_1","type":"payment_intent.succeeded","data":{"object":{"id":"%s"}}}`, intentID))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/card", bytes.NewReader(body))
	req.Header.Set("X-Card-Signature", signWebhook(body))
	w = httptest.NewRecorder()
	app.engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("webhook status = %d; body %s", w.Code, w.Body.String())
	}

	// payment completed, booking confirmed, receipt sent
	env = decode(t, app.do(t, http.MethodGet, "/payments/"+paymentID, custTok, nil), http.StatusOK)
	var p struct {
		Status string `json:"status"`
	}
	_ = json.Unmarshal(env.Data, &p)
	if p.Status != "completed" {
		t.Errorf("payment status = %q, want completed", p.Status)
	}

	env = decode(t, app.do(t, http.MethodGet, "/bookings/"+bookingID, custTok, nil), http.StatusOK)
	var b struct {
		Status string `json:"status"`
	}
	_ = json.Unmarshal(env.Data, &b)
	if b.Status != "confirmed" {
		t.Errorf("booking status = %q, want confirmed", b.Status)
	}

	if len(app.mail.Sent) != 2 {
		t.Fatalf("emails sent = %d, want confirmation + receipt", len(app.mail.Sent))
	}
	if subj := app.mail.Sent[0].Subject; !strings.Contains(subj, "Booking confirmed") {
		t.Errorf("first email subject = %q, want booking confirmation", subj)
	}
	if subj := app.mail.Sent[1].Subject; !strings.Contains(subj, "Payment received") {
		t.Errorf("second email subject = %q, want payment receipt", subj)
	}

	// a confirmed booking can no longer be deleted
	if w := app.do(t, http.MethodDelete, "/bookings/"+bookingID, custTok, nil); w.Code != http.StatusBadRequest {
		t.Errorf("delete confirmed booking: status = %d, want 400", w.Code)
	}

	// admin refunds without a body; the booking is released
	decode(t, app.do(t, http.MethodPost, "/admin/payments/"+paymentID+"/refund", adminTok, nil), http.StatusOK)

	env = decode(t, app.do(t, http.MethodGet, "/bookings/"+bookingID, custTok, nil), http.StatusOK)
	_ = json.Unmarshal(env.Data, &b)
	if b.Status != "cancelled" {
		t.Errorf("booking after refund = %q, want cancelled", b.Status)
	}

	// refunding again is a rule violation, not a conflict
	w = app.do(t, http.MethodPost, "/admin/payments/"+paymentID+"/refund", adminTok, gin.H{
		"reason": "double refund attempt",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("refund refunded payment: status = %d, want 400", w.Code)
	}

	// the cancelled booking is terminal
	w = app.do(t, http.MethodPost, "/bookings/"+bookingID+"/status", custTok, gin.H{
		"status": "cancelled",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("cancel cancelled booking: status = %d, want 400", w.Code)
	}
}

func TestWebhookBadSignatureRejected(t *testing.T) {
	app := newTestApp(t)

	body := []byte(`{"id":"evt_evil","type":"payment_intent.succeeded","data":{"object":{"id":"pi_x"}}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/card", bytes.NewReader(body))
	req.Header.Set("X-Card-Signature", "t=1,v1=deadbeef")
	w := httptest.NewRecorder()
	app.engine.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAuthorization(t *testing.T) {
	app := newTestApp(t)
	custTok := app.registerAndLogin(t, "amina@example.com", users.RoleCustomer)

	// anonymous cannot book
	if w := app.do(t, http.MethodPost, "/bookings", "", gin.H{}); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous booking: status = %d, want 401", w.Code)
	}

	// customers cannot reach the back office
	if w := app.do(t, http.MethodGet, "/admin/users", custTok, nil); w.Code != http.StatusForbidden {
		t.Errorf("customer admin list: status = %d, want 403", w.Code)
	}

	// wrong password
	w := app.do(t, http.MethodPost, "/auth/login", "", gin.H{
		"email":    "amina@example.com",
		"password": "wrong-password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad login: status = %d, want 401", w.Code)
	}

	// me
	env := decode(t, app.do(t, http.MethodGet, "/auth/me", custTok, nil), http.StatusOK)
	var me struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	_ = json.Unmarshal(env.Data, &me)
	if me.Email != "amina@example.com" || me.Role != "customer" {
		t.Errorf("me = %+v", me)
	}
}

func TestMpesaCallbackAckShape(t *testing.T) {
	app := newTestApp(t)

	// unmatched callbacks are acked so the provider stops retrying
	body := []byte(`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_none","ResultCode":0,"ResultDesc":"ok"}}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/mpesa", bytes.NewReader(body))
	w := httptest.NewRecorder()
	app.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var ack struct {
		ResultCode int `json:"ResultCode"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.ResultCode != 0 {
		t.Errorf("ResultCode = %d, want 0", ack.ResultCode)
	}
}
