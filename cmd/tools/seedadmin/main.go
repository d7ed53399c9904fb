package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"safarifleet.com/app/internal/modules/users"
)

// Bootstraps the first back-office account. Idempotent: an existing user
// with the same email is promoted to admin instead of duplicated.
func main() {
	email := flag.String("email", "", "Admin email")
	password := flag.String("password", "", "Admin password (min 8 chars)")
	name := flag.String("name", "Fleet Admin", "Full name")
	flag.Parse()

	_ = godotenv.Load()

	if *email == "" || len(*password) < 8 {
		fmt.Fprintln(os.Stderr, "Usage: seedadmin -email admin@example.com -password <min 8 chars> [-name \"Full Name\"]")
		os.Exit(1)
	}

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	addr := strings.ToLower(strings.TrimSpace(*email))

	var existing users.User
	err = db.First(&existing, "email = ?", addr).Error
	if err == nil {
		if existing.Role == users.RoleAdmin {
			fmt.Printf("✓ %s is already an admin\n", addr)
			return
		}
		if err := db.Model(&users.User{}).Where("id = ?", existing.ID).
			Updates(map[string]any{"role": users.RoleAdmin, "updated_at": time.Now()}).Error; err != nil {
			log.Fatalf("Failed to promote user: %v", err)
		}
		fmt.Printf("✓ Promoted %s to admin\n", addr)
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Fatalf("Lookup failed: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	now := time.Now()
	u := users.User{
		ID:           uuid.NewString(),
		Email:        addr,
		PasswordHash: string(hash),
		FullName:     *name,
		Role:         users.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.Create(&u).Error; err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}

	fmt.Printf("✓ Admin %s created\n", addr)
}
