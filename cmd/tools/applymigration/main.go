package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"safarifleet.com/app/internal/modules/bookings"
	"safarifleet.com/app/internal/modules/locations"
	"safarifleet.com/app/internal/modules/payments"
	"safarifleet.com/app/internal/modules/users"
	"safarifleet.com/app/internal/modules/vehicles"
)

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	err = db.AutoMigrate(
		&users.User{},
		&locations.Location{},
		&vehicles.Vehicle{},
		&vehicles.Specification{},
		&vehicles.VehicleImage{},
		&bookings.Booking{},
		&payments.Payment{},
		&payments.ProviderEvent{},
	)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	fmt.Println("✓ Schema migrated successfully!")
}
