package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"safarifleet.com/app/internal/config"
	"safarifleet.com/app/internal/modules/payments"
	"safarifleet.com/app/internal/shared/phone"
)

const timestampLayout = "20060102150405"

// Client talks to the Daraja-style STK push API.
type Client struct {
	cfg     config.MpesaConfig
	baseURL string
	http    *http.Client
	tokens  *tokenCache
	now     func() time.Time
}

func NewClient(cfg config.MpesaConfig) *Client {
	c := &Client{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		now:     time.Now,
	}
	c.tokens = newTokenCache(c.fetchToken)
	return c
}

func (c *Client) Name() string { return payments.ProviderMobileMoney }

// password is base64(shortcode + passkey + timestamp), timestamp in the
// provider's local-time layout.
func (c *Client) password(ts time.Time) (stamp, pass string) {
	stamp = ts.Format(timestampLayout)
	pass = base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + stamp))
	return stamp, pass
}

type pushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type pushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
}

// Push fires the STK prompt at the customer's phone. The API only accepts
// whole shillings, so a fractional cent amount is rejected before any
// network traffic.
func (c *Client) Push(ctx context.Context, req payments.PushRequest) (payments.PushResponse, error) {
	if req.AmountCents%100 != 0 {
		return payments.PushResponse{}, payments.ErrAmountNotWhole
	}

	msisdn, err := phone.Normalize(req.Phone)
	if err != nil {
		return payments.PushResponse{}, err
	}

	stamp, pass := c.password(c.now())
	body := pushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          pass,
		Timestamp:         stamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            req.AmountCents / 100,
		PartyA:            msisdn,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       msisdn,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  req.Reference,
		TransactionDesc:   req.Description,
	}

	var out pushResponse
	if err := c.post(ctx, "/mpesa/stkpush/v1/processrequest", body, &out); err != nil {
		return payments.PushResponse{}, err
	}
	if out.ResponseCode != "0" {
		return payments.PushResponse{}, fmt.Errorf("mpesa push rejected: %s (%s)",
			out.ResponseDescription, out.ResponseCode)
	}
	if out.CheckoutRequestID == "" {
		return payments.PushResponse{}, errors.New("mpesa push: response missing CheckoutRequestID")
	}
	return payments.PushResponse{
		CheckoutRequestID: out.CheckoutRequestID,
		MerchantRequestID: out.MerchantRequestID,
	}, nil
}

type queryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type queryResponse struct {
	ResponseCode string `json:"ResponseCode"`
	ResultCode   string `json:"ResultCode"`
	ResultDesc   string `json:"ResultDesc"`
}

// QueryStatus asks the provider what became of a push whose callback never
// arrived.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (payments.QueryResult, error) {
	stamp, pass := c.password(c.now())
	body := queryRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          pass,
		Timestamp:         stamp,
		CheckoutRequestID: checkoutRequestID,
	}

	var out queryResponse
	if err := c.post(ctx, "/mpesa/stkpushquery/v1/query", body, &out); err != nil {
		// the API answers "still processing" with an error payload
		if isStillProcessing(err) {
			return payments.QueryResult{Status: payments.MobileMoneyPending}, nil
		}
		return payments.QueryResult{}, err
	}

	return payments.QueryResult{
		Status:      mapResultCode(out.ResultCode),
		Description: out.ResultDesc,
	}, nil
}

type apiError struct {
	status int
	code   string
	msg    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("mpesa api: status %d: %s (%s)", e.status, e.msg, e.code)
}

type errorResponse struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	token, err := c.tokens.get(ctx)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ae errorResponse
		_ = json.Unmarshal(data, &ae)
		return &apiError{status: resp.StatusCode, code: ae.ErrorCode, msg: ae.ErrorMessage}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("mpesa api: bad response for %s: %w", path, err)
	}
	return nil
}

// isStillProcessing recognizes the "transaction is being processed" error
// the query endpoint returns before the customer has answered the prompt.
func isStillProcessing(err error) bool {
	var ae *apiError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.code == "500.001.1001" || strings.Contains(strings.ToLower(ae.msg), "being processed")
}

func snippet(b []byte) string {
	s := string(b)
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
