package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"safarifleet.com/app/internal/http/render"
	"safarifleet.com/app/internal/modules/email"
	"safarifleet.com/app/internal/modules/users"
	"safarifleet.com/app/internal/shared/phone"
)

type AuthHandler struct {
	Users    *users.Service
	Notifier *email.Notifier // optional
	Logger   *slog.Logger
}

func NewAuthHandler(svc *users.Service, notifier *email.Notifier, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{Users: svc, Notifier: notifier, Logger: logger}
}

type registerInput struct {
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required,min=8,max=72"`
	FullName string  `json:"full_name" binding:"required,min=2,max=200"`
	Phone    *string `json:"phone"`
}

// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var in registerInput
	if err := c.ShouldBindJSON(&in); err != nil {
		failBind(c, err, &in)
		return
	}

	if in.Phone != nil && *in.Phone != "" {
		normalized, err := phone.Normalize(*in.Phone)
		if err != nil {
			fail(c, err)
			return
		}
		in.Phone = &normalized
	}

	u, err := h.Users.Register(c.Request.Context(), users.RegisterInput{
		Email:    in.Email,
		Password: in.Password,
		FullName: in.FullName,
		Phone:    in.Phone,
	})
	if err != nil {
		fail(c, err)
		return
	}

	if h.Notifier != nil {
		go func(to, name string) {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := h.Notifier.SendWelcome(ctx, to, name); err != nil {
				h.Logger.Error("welcome email failed", "email", to, "err", err)
			}
		}(u.Email, u.FullName)
	}

	render.OK(c, http.StatusCreated, "registered", toUserDTO(u))
}

type loginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var in loginInput
	if err := c.ShouldBindJSON(&in); err != nil {
		failBind(c, err, &in)
		return
	}

	res, err := h.Users.Login(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		fail(c, err)
		return
	}

	render.OK(c, http.StatusOK, "logged in", gin.H{
		"token": res.Token,
		"user":  toUserDTO(res.User),
	})
}

// GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	u, err := h.Users.Get(c.Request.Context(), identity(c).UserID)
	if err != nil {
		fail(c, err)
		return
	}
	render.OK(c, http.StatusOK, "", toUserDTO(u))
}
