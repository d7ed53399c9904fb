package main

import (
	"context"
	"log"
	"os"

	"log/slog"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"safarifleet.com/app/internal/config"
	apphttp "safarifleet.com/app/internal/http"
	"safarifleet.com/app/internal/http/handlers"
	"safarifleet.com/app/internal/mailer"
	"safarifleet.com/app/internal/modules/bookings"
	"safarifleet.com/app/internal/modules/email"
	"safarifleet.com/app/internal/modules/images"
	"safarifleet.com/app/internal/modules/locations"
	"safarifleet.com/app/internal/modules/payments"
	"safarifleet.com/app/internal/modules/payments/card"
	"safarifleet.com/app/internal/modules/payments/mpesa"
	"safarifleet.com/app/internal/modules/users"
	"safarifleet.com/app/internal/modules/vehicles"
	"safarifleet.com/app/internal/storage"
)

func main() {
	// .env is optional; production uses real env vars
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := gorm.Open(mysql.Open(cfg.DBDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	store, err := storage.FromEnv(context.Background())
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	logger.Info("storage ready", "driver", store.Driver)

	// receipts are skipped when no SMTP host is configured
	var notifier *email.Notifier
	if cfg.SMTP.Host != "" {
		smtp := mailer.NewSMTPMailer(cfg.SMTP)
		notifier = email.NewNotifier(smtp, cfg.SMTP.FromAddr, cfg.SMTP.FromName)
	} else {
		logger.Warn("SMTP_HOST not set, transactional email disabled")
	}

	cardAdapter := card.New(cfg.Card)
	momoClient := mpesa.NewClient(cfg.Mpesa)

	userSvc := users.NewService(db, cfg.JWT)
	locationRepo := locations.NewRepo(db)
	vehicleSvc := vehicles.NewService(db)
	imageSvc := images.NewService(db, store.Storage)
	bookingSvc := bookings.NewService(db)

	reconciler := payments.NewReconciler(db, logger, notifier)
	paymentSvc := payments.NewService(db, logger, cardAdapter, momoClient, reconciler)
	webhookSvc := payments.NewWebhookService(db, logger, reconciler)
	refundSvc := payments.NewRefundService(db, logger, reconciler)

	r := apphttp.NewRouter(apphttp.RouterDeps{
		Config:    cfg,
		Logger:    logger,
		Auth:      handlers.NewAuthHandler(userSvc, notifier, logger),
		Users:     handlers.NewUserHandler(userSvc),
		Locations: handlers.NewLocationHandler(locationRepo),
		Vehicles:  handlers.NewVehicleHandler(vehicleSvc, bookingSvc),
		Images:    handlers.NewImageHandler(imageSvc),
		Bookings:  handlers.NewBookingHandler(bookingSvc),
		Payments:  handlers.NewPaymentHandler(paymentSvc, refundSvc),
		Webhooks:  handlers.NewWebhookHandler(logger, cardAdapter, webhookSvc),
		Mpesa:     handlers.NewMpesaCallbackHandler(logger, paymentSvc),
	})

	if store.Driver == "local" {
		r.Static(store.LocalPrefix, store.LocalDir)
	}

	logger.Info("listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
