package mpesa

import (
	"encoding/json"
	"fmt"
	"strconv"

	"safarifleet.com/app/internal/modules/payments"
)

// CallbackEnvelope mirrors the nested JSON the provider posts to the
// callback URL after the customer answers (or ignores) the prompt.
type CallbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []CallbackItem `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

type CallbackItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// ParseCallback decodes the envelope and flattens the metadata items into
// the provider-agnostic shape the payments layer reconciles on.
func ParseCallback(raw []byte) (payments.PushCallback, error) {
	var env CallbackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return payments.PushCallback{}, fmt.Errorf("mpesa callback: %w", err)
	}
	cb := env.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return payments.PushCallback{}, fmt.Errorf("mpesa callback: missing CheckoutRequestID")
	}

	out := payments.PushCallback{
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
		Metadata:          map[string]any{},
	}
	if cb.MerchantRequestID != "" {
		out.Metadata["merchant_request_id"] = cb.MerchantRequestID
	}
	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "MpesaReceiptNumber":
			if s, ok := item.Value.(string); ok {
				out.Receipt = s
			}
		case "Amount":
			out.Metadata["provider_amount"] = item.Value
		case "PhoneNumber":
			out.Metadata["payer_phone"] = itemString(item.Value)
		case "TransactionDate":
			out.Metadata["transaction_date"] = itemString(item.Value)
		}
	}
	return out, nil
}

// itemString renders a metadata value without float exponent notation; the
// provider sends phone numbers and dates as bare JSON numbers.
func itemString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
