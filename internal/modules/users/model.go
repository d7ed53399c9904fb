package users

import "time"

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

type User struct {
	ID           string    `gorm:"type:char(36);primaryKey"`
	Email        string    `gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	PasswordHash string    `gorm:"type:varchar(255);not null"`
	FullName     string    `gorm:"type:varchar(200);not null"`
	Phone        *string   `gorm:"type:varchar(32)"`
	Role         string    `gorm:"type:varchar(16);not null;default:customer"`
	CreatedAt    time.Time `gorm:"precision:3;not null"`
	UpdatedAt    time.Time `gorm:"precision:3;not null"`
}

func (User) TableName() string { return "users" }
