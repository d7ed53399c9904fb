package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"safarifleet.com/app/internal/http/render"
	"safarifleet.com/app/internal/modules/payments"
	"safarifleet.com/app/internal/shared/phone"
)

type PaymentHandler struct {
	Payments *payments.Service
	Refunds  *payments.RefundService
}

func NewPaymentHandler(svc *payments.Service, refunds *payments.RefundService) *PaymentHandler {
	return &PaymentHandler{Payments: svc, Refunds: refunds}
}

func (h *PaymentHandler) actor(c *gin.Context) payments.Actor {
	u := identity(c)
	return payments.Actor{UserID: u.UserID, Admin: isAdmin(c)}
}

type initiateCardInput struct {
	BookingID string `json:"booking_id" binding:"required,uuid"`
}

// POST /payments/card
func (h *PaymentHandler) InitiateCard(c *gin.Context) {
	var in initiateCardInput
	if err := c.ShouldBindJSON(&in); err != nil {
		failBind(c, err, &in)
		return
	}

	res, err := h.Payments.InitiateCard(c.Request.Context(), payments.InitiateCardInput{
		BookingID:   in.BookingID,
		ActorUserID: identity(c).UserID,
	})
	if err != nil {
		fail(c, err)
		return
	}

	render.OK(c, http.StatusAccepted, "card payment initiated", gin.H{
		"payment_id":    res.PaymentID,
		"intent_id":     res.IntentID,
		"client_secret": res.ClientSecret,
		"status":        res.Status,
	})
}

type initiatePushInput struct {
	BookingID string `json:"booking_id" binding:"required,uuid"`
	Phone     string `json:"phone" binding:"required"`
}

// POST /payments/mpesa
func (h *PaymentHandler) InitiatePush(c *gin.Context) {
	var in initiatePushInput
	if err := c.ShouldBindJSON(&in); err != nil {
		failBind(c, err, &in)
		return
	}

	msisdn, err := phone.Normalize(in.Phone)
	if err != nil {
		fail(c, err)
		return
	}

	res, err := h.Payments.InitiatePush(c.Request.Context(), payments.InitiatePushInput{
		BookingID:   in.BookingID,
		ActorUserID: identity(c).UserID,
		Phone:       msisdn,
	})
	if err != nil {
		fail(c, err)
		return
	}

	render.OK(c, http.StatusAccepted, "payment prompt sent to phone", gin.H{
		"payment_id":          res.PaymentID,
		"checkout_request_id": res.CheckoutRequestID,
		"status":              res.Status,
	})
}

// GET /payments/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	p, err := h.Payments.Get(c.Request.Context(), h.actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	render.OK(c, http.StatusOK, "", toPaymentDTO(p))
}

// GET /payments lists own payments; admins see everything and may filter by user.
func (h *PaymentHandler) List(c *gin.Context) {
	page := queryInt(c, "page", 1)
	size := queryInt(c, "page_size", 20)

	params := payments.ListParams{
		BookingID: c.Query("booking_id"),
		Status:    payments.Status(c.Query("status")),
		Page:      page,
		PageSize:  size,
	}
	if isAdmin(c) {
		params.UserID = c.Query("user_id")
	} else {
		params.UserID = identity(c).UserID
	}

	list, total, err := h.Payments.List(c.Request.Context(), params)
	if err != nil {
		fail(c, err)
		return
	}
	render.OK(c, http.StatusOK, "", paged(toPaymentDTOs(list), page, size, total))
}

// POST /payments/:id/poll queries the mobile-money provider when the
// callback has not arrived.
func (h *PaymentHandler) Poll(c *gin.Context) {
	res, err := h.Payments.PollPush(c.Request.Context(), h.actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	render.OK(c, http.StatusOK, "", gin.H{
		"payment":         toPaymentDTO(res.Payment),
		"provider_status": res.Status,
	})
}

type refundInput struct {
	Reason string `json:"reason" binding:"omitempty,max=250"`
}

// POST /admin/payments/:id/refund
func (h *PaymentHandler) Refund(c *gin.Context) {
	// the body is optional; a bare POST refunds without a reason
	var in refundInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			failBind(c, err, &in)
			return
		}
	}

	p, err := h.Refunds.Refund(c.Request.Context(), payments.RefundInput{
		PaymentID:   c.Param("id"),
		ActorUserID: identity(c).UserID,
		Reason:      in.Reason,
	})
	if err != nil {
		fail(c, err)
		return
	}
	render.OK(c, http.StatusOK, "payment refunded", toPaymentDTO(p))
}
