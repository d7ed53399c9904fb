package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"safarifleet.com/app/internal/http/render"
	"safarifleet.com/app/internal/modules/locations"
)

type LocationHandler struct {
	Locations *locations.Repo
}

func NewLocationHandler(repo *locations.Repo) *LocationHandler {
	return &LocationHandler{Locations: repo}
}

// GET /locations
func (h *LocationHandler) List(c *gin.Context) {
	list, err := h.Locations.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]locationDTO, 0, len(list))
	for _, l := range list {
		out = append(out, toLocationDTO(l))
	}
	render.OK(c, http.StatusOK, "", out)
}

// GET /locations/:id
func (h *LocationHandler) Get(c *gin.Context) {
	loc, err := h.Locations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	render.OK(c, http.StatusOK, "", toLocationDTO(loc))
}

type locationCreateInput struct {
	Name    string `json:"name" binding:"required,min=2,max=200"`
	City    string `json:"city" binding:"required,min=2,max=100"`
	Address string `json:"address" binding:"required,min=2,max=255"`
}

// POST /admin/locations
func (h *LocationHandler) Create(c *gin.Context) {
	var in locationCreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		failBind(c, err, &in)
		return
	}

	loc, err := h.Locations.Create(c.Request.Context(), locations.CreateInput{
		Name:    in.Name,
		City:    in.City,
		Address: in.Address,
	})
	if err != nil {
		fail(c, err)
		return
	}
	render.OK(c, http.StatusCreated, "location created", toLocationDTO(loc))
}

type locationUpdateInput struct {
	Name    *string `json:"name" binding:"omitempty,min=2,max=200"`
	City    *string `json:"city" binding:"omitempty,min=2,max=100"`
	Address *string `json:"address" binding:"omitempty,min=2,max=255"`
}

// PATCH /admin/locations/:id
func (h *LocationHandler) Update(c *gin.Context) {
	var in locationUpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		failBind(c, err, &in)
		return
	}

	loc, err := h.Locations.Update(c.Request.Context(), c.Param("id"), locations.UpdateInput{
		Name:    in.Name,
		City:    in.City,
		Address: in.Address,
	})
	if err != nil {
		fail(c, err)
		return
	}
	render.OK(c, http.StatusOK, "location updated", toLocationDTO(loc))
}

// DELETE /admin/locations/:id
func (h *LocationHandler) Delete(c *gin.Context) {
	if _, err := h.Locations.Get(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	if err := h.Locations.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	render.OK(c, http.StatusOK, "location deleted", nil)
}
