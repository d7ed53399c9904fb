package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"safarifleet.com/app/internal/modules/payments"
	"safarifleet.com/app/internal/modules/payments/mpesa"
)

type MpesaCallbackHandler struct {
	Logger   *slog.Logger
	Payments *payments.Service
}

func NewMpesaCallbackHandler(logger *slog.Logger, svc *payments.Service) *MpesaCallbackHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MpesaCallbackHandler{Logger: logger, Payments: svc}
}

// POST /webhooks/mpesa
// The provider expects its own ack object back and keeps retrying until it
// gets ResultCode 0, so malformed payloads are acked and dropped too.
func (h *MpesaCallbackHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.ack(c)
		return
	}

	cb, err := mpesa.ParseCallback(body)
	if err != nil {
		h.Logger.Warn("unparseable mpesa callback, dropping", "err", err)
		h.ack(c)
		return
	}

	if err := h.Payments.HandlePushCallback(c.Request.Context(), cb); err != nil {
		h.Logger.Error("mpesa callback apply failed",
			"checkout_request_id", cb.CheckoutRequestID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"ResultCode": 1,
			"ResultDesc": "Internal error",
		})
		return
	}

	h.ack(c)
}

func (h *MpesaCallbackHandler) ack(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ResultCode": 0,
		"ResultDesc": "Accepted",
	})
}
