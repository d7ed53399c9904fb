package locations

import "time"

type Location struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Name      string    `gorm:"type:varchar(200);not null"`
	City      string    `gorm:"type:varchar(100);not null"`
	Address   string    `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `gorm:"precision:3;not null"`
	UpdatedAt time.Time `gorm:"precision:3;not null"`
}

func (Location) TableName() string { return "locations" }
