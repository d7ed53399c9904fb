package payments

import (
	"context"
	"net/http"
)

// Card processor (async, webhook-driven).

type CreateIntentRequest struct {
	PaymentID   string
	BookingID   string
	AmountCents int64 // minor units, transmitted as-is
	Currency    string
}

type CreateIntentResponse struct {
	IntentID     string
	ClientSecret string
}

const (
	CardEventSucceeded = "payment_intent.succeeded"
	CardEventFailed    = "payment_intent.payment_failed"
)

type CardEvent struct {
	EventID  string
	Type     string
	IntentID string
	Reason   string // set on failure events
}

type CardProvider interface {
	Name() string
	CreateIntent(ctx context.Context, req CreateIntentRequest) (CreateIntentResponse, error)

	// VerifyWebhook checks the signature and parses the event. An event that
	// fails verification must never reach the reconciler.
	VerifyWebhook(headers http.Header, body []byte) (CardEvent, error)
}

// Mobile-money push-payment provider (async, callback + query fallback).

type PushRequest struct {
	PaymentID   string
	Phone       string // canonical 254XXXXXXXXX
	AmountCents int64
	Reference   string // shown on the customer's statement
	Description string
}

type PushResponse struct {
	CheckoutRequestID string
	MerchantRequestID string
}

// MobileMoneyStatus is the internal vocabulary every provider result code
// must map into. Timeout is terminal and reported to callers as failed.
type MobileMoneyStatus string

const (
	MobileMoneyCompleted MobileMoneyStatus = "completed"
	MobileMoneyCancelled MobileMoneyStatus = "cancelled"
	MobileMoneyTimeout   MobileMoneyStatus = "timeout"
	MobileMoneyFailed    MobileMoneyStatus = "failed"
	MobileMoneyPending   MobileMoneyStatus = "pending"
)

type QueryResult struct {
	Status      MobileMoneyStatus
	Receipt     string
	Description string
}

type MobileMoneyProvider interface {
	Name() string
	Push(ctx context.Context, req PushRequest) (PushResponse, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (QueryResult, error)
}
