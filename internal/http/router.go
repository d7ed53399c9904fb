package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"safarifleet.com/app/internal/config"
	"safarifleet.com/app/internal/http/handlers"
	"safarifleet.com/app/internal/http/middleware"
)

type RouterDeps struct {
	Config config.Config
	Logger *slog.Logger

	Auth      *handlers.AuthHandler
	Users     *handlers.UserHandler
	Locations *handlers.LocationHandler
	Vehicles  *handlers.VehicleHandler
	Images    *handlers.ImageHandler
	Bookings  *handlers.BookingHandler
	Payments  *handlers.PaymentHandler
	Webhooks  *handlers.WebhookHandler
	Mpesa     *handlers.MpesaCallbackHandler
}

func NewRouter(d RouterDeps) *gin.Engine {
	if d.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(d.Logger),
		middleware.Recovery(d.Logger),
		middleware.ErrorHandler(d.Logger),
		middleware.Auth(d.Config.JWT.Secret),
	)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	// public
	r.POST("/auth/register", d.Auth.Register)
	r.POST("/auth/login", d.Auth.Login)

	r.GET("/locations", d.Locations.List)
	r.GET("/locations/:id", d.Locations.Get)

	r.GET("/vehicles", d.Vehicles.List)
	r.GET("/vehicles/:id", d.Vehicles.Get)
	r.GET("/vehicles/:id/availability", d.Vehicles.Availability)
	r.GET("/vehicles/:id/images", d.Images.List)

	// provider callbacks authenticate themselves (signature / ack contract)
	r.POST("/webhooks/card", d.Webhooks.HandleCard)
	r.POST("/webhooks/mpesa", d.Mpesa.Handle)

	// signed-in customers
	auth := r.Group("/", middleware.RequireAuth())
	{
		auth.GET("/auth/me", d.Auth.Me)

		auth.POST("/bookings", d.Bookings.Create)
		auth.GET("/bookings", d.Bookings.List)
		auth.GET("/bookings/:id", d.Bookings.Get)
		auth.POST("/bookings/:id/status", d.Bookings.Transition)
		auth.DELETE("/bookings/:id", d.Bookings.Delete)

		auth.POST("/payments/card", d.Payments.InitiateCard)
		auth.POST("/payments/mpesa", d.Payments.InitiatePush)
		auth.GET("/payments", d.Payments.List)
		auth.GET("/payments/:id", d.Payments.Get)
		auth.POST("/payments/:id/poll", d.Payments.Poll)
	}

	// back office
	admin := r.Group("/admin", middleware.RequireAdmin())
	{
		admin.GET("/users", d.Users.List)
		admin.GET("/users/:id", d.Users.Get)

		admin.POST("/locations", d.Locations.Create)
		admin.PATCH("/locations/:id", d.Locations.Update)
		admin.DELETE("/locations/:id", d.Locations.Delete)

		admin.POST("/vehicles", d.Vehicles.Create)
		admin.PATCH("/vehicles/:id", d.Vehicles.Update)
		admin.DELETE("/vehicles/:id", d.Vehicles.Delete)
		admin.PUT("/vehicles/:id/spec", d.Vehicles.UpsertSpec)
		admin.POST("/vehicles/:id/images", d.Images.Upload)
		admin.DELETE("/images/:id", d.Images.Delete)

		admin.POST("/payments/:id/refund", d.Payments.Refund)
	}

	return r
}
