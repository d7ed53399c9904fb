package card

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"safarifleet.com/app/internal/config"
	"safarifleet.com/app/internal/modules/payments"
)

func testAdapter(baseURL string) *Adapter {
	return New(config.CardConfig{
		BaseURL:       baseURL,
		SecretKey:     "sk_test_123",
		WebhookSecret: "whsec_test",
	})
}

func signedHeader(secret string, ts int64, body []byte) string {
	return fmt.Sprintf("t=%d,v1=%s", ts, computeSignature([]byte(secret), ts, body))
}

func TestCreateIntent(t *testing.T) {
	var gotAuth string
	var gotBody intentRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payment_intents" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":            "pi_abc",
			"client_secret": "pi_abc_secret",
			"status":        "requires_payment_method",
		})
	}))
	defer srv.Close()

	a := testAdapter(srv.URL)
	resp, err := a.CreateIntent(context.Background(), payments.CreateIntentRequest{
		PaymentID:   "pay_1",
		BookingID:   "bk_1",
		AmountCents: 1500000,
		Currency:    "KES",
	})
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}

	if resp.IntentID != "pi_abc" {
		t.Errorf("IntentID = %q, want pi_abc", resp.IntentID)
	}
	if resp.ClientSecret != "pi_abc_secret" {
		t.Errorf("ClientSecret = %q", resp.ClientSecret)
	}
	if gotAuth != "Bearer sk_test_123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody.Amount != 1500000 {
		t.Errorf("amount = %d, want 1500000", gotBody.Amount)
	}
	if gotBody.Currency != "kes" {
		t.Errorf("currency = %q, want kes", gotBody.Currency)
	}
	if gotBody.Metadata["booking_id"] != "bk_1" {
		t.Errorf("metadata booking_id = %q", gotBody.Metadata["booking_id"])
	}
}

func TestCreateIntentErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":"insufficient_funds"}`))
	}))
	defer srv.Close()

	a := testAdapter(srv.URL)
	if _, err := a.CreateIntent(context.Background(), payments.CreateIntentRequest{AmountCents: 100, Currency: "KES"}); err == nil {
		t.Fatal("expected error on non-2xx")
	}
}

func TestVerifyWebhook(t *testing.T) {
	a := testAdapter("http://unused")
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`)
	now := time.Now().Unix()

	h := http.Header{}
	h.Set(SignatureHeader, signedHeader("whsec_test", now, body))

	ev, err := a.VerifyWebhook(h, body)
	if err != nil {
		t.Fatalf("VerifyWebhook: %v", err)
	}
	if ev.EventID != "evt_1" {
		t.Errorf("EventID = %q, want evt_1", ev.EventID)
	}
	if ev.Type != payments.CardEventSucceeded {
		t.Errorf("Type = %q", ev.Type)
	}
	if ev.IntentID != "pi_1" {
		t.Errorf("IntentID = %q, want pi_1", ev.IntentID)
	}
}

func TestVerifyWebhookFailureReason(t *testing.T) {
	a := testAdapter("http://unused")
	body := []byte(`{"id":"evt_2","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_2","last_payment_error":{"message":"card_declined"}}}}`)

	h := http.Header{}
	h.Set(SignatureHeader, signedHeader("whsec_test", time.Now().Unix(), body))

	ev, err := a.VerifyWebhook(h, body)
	if err != nil {
		t.Fatalf("VerifyWebhook: %v", err)
	}
	if ev.Reason != "card_declined" {
		t.Errorf("Reason = %q, want card_declined", ev.Reason)
	}
}

func TestVerifyWebhookRejections(t *testing.T) {
	a := testAdapter("http://unused")
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`)
	now := time.Now().Unix()

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"garbage header", "not-a-signature"},
		{"wrong secret", signedHeader("whsec_other", now, body)},
		{"tampered body", signedHeader("whsec_test", now, []byte(`{"id":"evt_evil"}`))},
		{"stale timestamp", signedHeader("whsec_test", now-3600, body)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := http.Header{}
			if tc.header != "" {
				h.Set(SignatureHeader, tc.header)
			}
			if _, err := a.VerifyWebhook(h, body); err == nil {
				t.Error("expected rejection")
			}
		})
	}
}
