package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"safarifleet.com/app/internal/http/middleware"
	"safarifleet.com/app/internal/http/render"
	"safarifleet.com/app/internal/modules/bookings"
	"safarifleet.com/app/internal/modules/vehicles"
	"safarifleet.com/app/internal/shared/apperr"
)

type VehicleHandler struct {
	Vehicles *vehicles.Service
	Bookings *bookings.Service
}

func NewVehicleHandler(vsvc *vehicles.Service, bsvc *bookings.Service) *VehicleHandler {
	return &VehicleHandler{Vehicles: vsvc, Bookings: bsvc}
}

// GET /vehicles
func (h *VehicleHandler) List(c *gin.Context) {
	page := queryInt(c, "page", 1)
	size := queryInt(c, "page_size", 20)

	list, total, err := h.Vehicles.List(c.Request.Context(), vehicles.ListParams{
		LocationID:    c.Query("location_id"),
		OnlyAvailable: c.Query("available") == "true",
		Page:          page,
		PageSize:      size,
	})
	if err != nil {
		fail(c, err)
		return
	}
	render.OK(c, http.StatusOK, "", paged(toVehicleDTOs(list), page, size, total))
}

// GET /vehicles/:id accepts an id or a slug.
func (h *VehicleHandler) Get(c *gin.Context) {
	key := c.Param("id")

	v, err := h.Vehicles.Get(c.Request.Context(), key)
	if errors.Is(err, vehicles.ErrUnknownVehicle) {
		v, err = h.Vehicles.GetBySlug(c.Request.Context(), key)
	}
	if err != nil {
		fail(c, err)
		return
	}
	render.OK(c, http.StatusOK, "", toVehicleDTO(v))
}

// GET /vehicles/:id/availability?start=2026-09-01&end=2026-09-05&location_id=...
func (h *VehicleHandler) Availability(c *gin.Context) {
	start, err := parseDate(c.Query("start"))
	if err != nil {
		middleware.Fail(c, apperr.InvalidErr("Validation failed.", map[string]string{"start": "Must be a valid date (" + dateLayout + ")."}))
		return
	}
	end, err := parseDate(c.Query("end"))
	if err != nil {
		middleware.Fail(c, apperr.InvalidErr("Validation failed.", map[string]string{"end": "Must be a valid date (" + dateLayout + ")."}))
		return
	}

	res, err := h.Bookings.CheckAvailability(c.Request.Context(), c.Param("id"), start, end, c.Query("location_id"))
	if err != nil {
		fail(c, err)
		return
	}

	payload := gin.H{"available": res.Available}
	if res.Reason != "" {
		payload["reason"] = res.Reason
	}
	if res.LocationID != "" {
		payload["location_id"] = res.LocationID
	}
	render.OK(c, http.StatusOK, "", payload)
}

type vehicleCreateInput struct {
	Name        string `json:"name" binding:"required,min=2,max=200"`
	Brand       string `json:"brand" binding:"required,min=2,max=100"`
	ModelYear   int    `json:"model_year" binding:"required,gt=1980"`
	PlateNumber string `json:"plate_number" binding:"required,min=4,max=16"`
	DailyCents  int64  `json:"daily_cents" binding:"required,gt=0"`
	Currency    string `json:"currency" binding:"required,len=3"`
	LocationID  string `json:"location_id" binding:"required,uuid"`
}

// POST /admin/vehicles
func (h *VehicleHandler) Create(c *gin.Context) {
	var in vehicleCreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		failBind(c, err, &in)
		return
	}

	v, err := h.Vehicles.Create(c.Request.Context(), vehicles.CreateInput{
		Name:        in.Name,
		Brand:       in.Brand,
		ModelYear:   in.ModelYear,
		PlateNumber: in.PlateNumber,
		DailyCents:  in.DailyCents,
		Currency:    in.Currency,
		LocationID:  in.LocationID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	render.OK(c, http.StatusCreated, "vehicle created", toVehicleDTO(v))
}

type vehicleUpdateInput struct {
	Name       *string `json:"name" binding:"omitempty,min=2,max=200"`
	Brand      *string `json:"brand" binding:"omitempty,min=2,max=100"`
	ModelYear  *int    `json:"model_year" binding:"omitempty,gt=1980"`
	DailyCents *int64  `json:"daily_cents" binding:"omitempty,gt=0"`
	Available  *bool   `json:"available"`
	LocationID *string `json:"location_id" binding:"omitempty,uuid"`
}

// PATCH /admin/vehicles/:id
func (h *VehicleHandler) Update(c *gin.Context) {
	var in vehicleUpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		failBind(c, err, &in)
		return
	}

	v, err := h.Vehicles.Update(c.Request.Context(), c.Param("id"), vehicles.UpdateInput{
		Name:       in.Name,
		Brand:      in.Brand,
		ModelYear:  in.ModelYear,
		DailyCents: in.DailyCents,
		Available:  in.Available,
		LocationID: in.LocationID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	render.OK(c, http.StatusOK, "vehicle updated", toVehicleDTO(v))
}

// DELETE /admin/vehicles/:id
func (h *VehicleHandler) Delete(c *gin.Context) {
	if err := h.Vehicles.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	render.OK(c, http.StatusOK, "vehicle deleted", nil)
}

type specInput struct {
	Seats        int      `json:"seats" binding:"required,gt=0"`
	Doors        int      `json:"doors" binding:"required,gt=0"`
	Transmission string   `json:"transmission" binding:"required,oneof=manual automatic"`
	FuelType     string   `json:"fuel_type" binding:"required,oneof=petrol diesel hybrid electric"`
	Consumption  *string  `json:"consumption" binding:"omitempty,max=32"`
	Features     []string `json:"features"`
}

// PUT /admin/vehicles/:id/spec
func (h *VehicleHandler) UpsertSpec(c *gin.Context) {
	var in specInput
	if err := c.ShouldBindJSON(&in); err != nil {
		failBind(c, err, &in)
		return
	}

	spec, err := h.Vehicles.UpsertSpec(c.Request.Context(), c.Param("id"), vehicles.SpecInput{
		Seats:        in.Seats,
		Doors:        in.Doors,
		Transmission: in.Transmission,
		FuelType:     in.FuelType,
		Consumption:  in.Consumption,
		Features:     in.Features,
	})
	if err != nil {
		fail(c, err)
		return
	}
	render.OK(c, http.StatusOK, "specification saved", toSpecDTO(spec))
}
