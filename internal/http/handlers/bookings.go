package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"safarifleet.com/app/internal/http/render"
	"safarifleet.com/app/internal/modules/bookings"
)

type BookingHandler struct {
	Bookings *bookings.Service
}

func NewBookingHandler(svc *bookings.Service) *BookingHandler {
	return &BookingHandler{Bookings: svc}
}

func (h *BookingHandler) actor(c *gin.Context) bookings.Actor {
	u := identity(c)
	return bookings.Actor{UserID: u.UserID, Admin: isAdmin(c)}
}

type bookingCreateInput struct {
	VehicleID string `json:"vehicle_id" binding:"required,uuid"`
	StartDate string `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" binding:"required,datetime=2006-01-02"`
}

// POST /bookings
func (h *BookingHandler) Create(c *gin.Context) {
	var in bookingCreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		failBind(c, err, &in)
		return
	}

	start, _ := parseDate(in.StartDate)
	end, _ := parseDate(in.EndDate)

	b, err := h.Bookings.Create(c.Request.Context(), bookings.CreateInput{
		UserID:    identity(c).UserID,
		VehicleID: in.VehicleID,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		fail(c, err)
		return
	}
	render.OK(c, http.StatusCreated, "booking created", toBookingDTO(b))
}

// GET /bookings/:id
func (h *BookingHandler) Get(c *gin.Context) {
	b, err := h.Bookings.Get(c.Request.Context(), h.actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	render.OK(c, http.StatusOK, "", toBookingDTO(b))
}

// GET /bookings lists own bookings; admins see everything and may filter by user.
func (h *BookingHandler) List(c *gin.Context) {
	page := queryInt(c, "page", 1)
	size := queryInt(c, "page_size", 20)

	params := bookings.ListParams{
		VehicleID: c.Query("vehicle_id"),
		Status:    bookings.Status(c.Query("status")),
		Page:      page,
		PageSize:  size,
	}
	if isAdmin(c) {
		params.UserID = c.Query("user_id")
	} else {
		params.UserID = identity(c).UserID
	}

	list, total, err := h.Bookings.List(c.Request.Context(), params)
	if err != nil {
		fail(c, err)
		return
	}
	render.OK(c, http.StatusOK, "", paged(toBookingDTOs(list), page, size, total))
}

type transitionInput struct {
	Status string `json:"status" binding:"required,oneof=confirmed active completed cancelled"`
}

// POST /bookings/:id/status
func (h *BookingHandler) Transition(c *gin.Context) {
	var in transitionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		failBind(c, err, &in)
		return
	}

	b, err := h.Bookings.Transition(c.Request.Context(), h.actor(c), c.Param("id"), bookings.Status(in.Status))
	if err != nil {
		fail(c, err)
		return
	}
	render.OK(c, http.StatusOK, "booking updated", toBookingDTO(b))
}

// DELETE /bookings/:id
func (h *BookingHandler) Delete(c *gin.Context) {
	if err := h.Bookings.Delete(c.Request.Context(), h.actor(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	render.OK(c, http.StatusOK, "booking deleted", nil)
}
