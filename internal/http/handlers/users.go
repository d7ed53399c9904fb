package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"safarifleet.com/app/internal/http/render"
	"safarifleet.com/app/internal/modules/users"
)

// UserHandler is admin-only user administration.
type UserHandler struct {
	Users *users.Service
}

func NewUserHandler(svc *users.Service) *UserHandler {
	return &UserHandler{Users: svc}
}

// GET /admin/users
func (h *UserHandler) List(c *gin.Context) {
	page := queryInt(c, "page", 1)
	size := queryInt(c, "page_size", 20)

	list, total, err := h.Users.List(c.Request.Context(), users.ListParams{
		Page:     page,
		PageSize: size,
		Role:     c.Query("role"),
	})
	if err != nil {
		fail(c, err)
		return
	}

	out := make([]userDTO, 0, len(list))
	for _, u := range list {
		out = append(out, toUserDTO(u))
	}
	render.OK(c, http.StatusOK, "", paged(out, page, size, total))
}

// GET /admin/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	u, err := h.Users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	render.OK(c, http.StatusOK, "", toUserDTO(u))
}
