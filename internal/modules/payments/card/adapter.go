package card

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"safarifleet.com/app/internal/config"
	"safarifleet.com/app/internal/modules/payments"
)

const (
	// SignatureHeader carries "t=<unix>,v1=<hex hmac>" over "<t>.<body>".
	SignatureHeader = "X-Card-Signature"

	signatureTolerance = 5 * time.Minute
)

var (
	ErrMissingSecret     = errors.New("card webhook secret not configured")
	ErrSignatureMismatch = errors.New("webhook signature mismatch")
)

type Adapter struct {
	cfg  config.CardConfig
	http *http.Client
	now  func() time.Time
}

func New(cfg config.CardConfig) *Adapter {
	return &Adapter{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
		now:  time.Now,
	}
}

func (a *Adapter) Name() string { return payments.ProviderCard }

type intentRequest struct {
	Amount   int64             `json:"amount"` // minor units
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
}

type intentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

func (a *Adapter) CreateIntent(ctx context.Context, req payments.CreateIntentRequest) (payments.CreateIntentResponse, error) {
	if a.cfg.SecretKey == "" {
		return payments.CreateIntentResponse{}, errors.New("card api key not configured")
	}

	body, err := json.Marshal(intentRequest{
		Amount:   req.AmountCents, // already stored in minor units, transmitted exactly
		Currency: strings.ToLower(req.Currency),
		Metadata: map[string]string{
			"booking_id": req.BookingID,
			"payment_id": req.PaymentID,
		},
	})
	if err != nil {
		return payments.CreateIntentResponse{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(a.cfg.BaseURL, "/")+"/v1/payment_intents", bytes.NewReader(body))
	if err != nil {
		return payments.CreateIntentResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.SecretKey)

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return payments.CreateIntentResponse{}, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return payments.CreateIntentResponse{}, fmt.Errorf("card intent create failed: status %d: %s",
			resp.StatusCode, snippet(raw))
	}

	var out intentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return payments.CreateIntentResponse{}, fmt.Errorf("card intent create: bad response: %w", err)
	}
	if out.ID == "" {
		return payments.CreateIntentResponse{}, errors.New("card intent create: response missing intent id")
	}
	return payments.CreateIntentResponse{IntentID: out.ID, ClientSecret: out.ClientSecret}, nil
}

type eventEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID               string `json:"id"`
			LastPaymentError *struct {
				Message string `json:"message"`
			} `json:"last_payment_error"`
		} `json:"object"`
	} `json:"data"`
}

// VerifyWebhook is the trust boundary: a body whose signature does not
// check out never becomes an event.
func (a *Adapter) VerifyWebhook(headers http.Header, body []byte) (payments.CardEvent, error) {
	if a.cfg.WebhookSecret == "" {
		return payments.CardEvent{}, ErrMissingSecret
	}

	ts, sig, err := parseSignatureHeader(headers.Get(SignatureHeader))
	if err != nil {
		return payments.CardEvent{}, err
	}

	age := a.now().Sub(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return payments.CardEvent{}, ErrSignatureMismatch
	}

	expected := computeSignature([]byte(a.cfg.WebhookSecret), ts, body)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return payments.CardEvent{}, ErrSignatureMismatch
	}

	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return payments.CardEvent{}, fmt.Errorf("webhook payload: %w", err)
	}
	if env.ID == "" || env.Type == "" {
		return payments.CardEvent{}, errors.New("webhook payload missing id or type")
	}

	ev := payments.CardEvent{
		EventID:  env.ID,
		Type:     env.Type,
		IntentID: env.Data.Object.ID,
	}
	if env.Data.Object.LastPaymentError != nil {
		ev.Reason = env.Data.Object.LastPaymentError.Message
	}
	return ev, nil
}

func parseSignatureHeader(h string) (ts int64, sig string, err error) {
	if h == "" {
		return 0, "", ErrSignatureMismatch
	}
	for _, part := range strings.Split(h, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err = strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, "", ErrSignatureMismatch
			}
		case "v1":
			sig = v
		}
	}
	if ts == 0 || sig == "" {
		return 0, "", ErrSignatureMismatch
	}
	return ts, sig, nil
}

func computeSignature(secret []byte, ts int64, body []byte) string {
	m := hmac.New(sha256.New, secret)
	m.Write([]byte(strconv.FormatInt(ts, 10)))
	m.Write([]byte("."))
	m.Write(body)
	return hex.EncodeToString(m.Sum(nil))
}

func snippet(b []byte) string {
	s := string(b)
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
