package vehicles

import (
	"time"

	"gorm.io/datatypes"
)

type Vehicle struct {
	ID          string    `gorm:"type:char(36);primaryKey"`
	Slug        string    `gorm:"type:varchar(220);not null;uniqueIndex:ux_vehicles_slug"`
	Name        string    `gorm:"type:varchar(200);not null"`
	Brand       string    `gorm:"type:varchar(100);not null"`
	ModelYear   int       `gorm:"not null"`
	PlateNumber string    `gorm:"type:varchar(16);not null;uniqueIndex:ux_vehicles_plate"`
	DailyCents  int64     `gorm:"not null"`
	Currency    string    `gorm:"type:char(3);not null"`
	Available   bool      `gorm:"not null;default:true"`
	LocationID  string    `gorm:"type:char(36);not null;index:ix_vehicles_location_id"`
	CreatedAt   time.Time `gorm:"precision:3;not null"`
	UpdatedAt   time.Time `gorm:"precision:3;not null"`

	Spec   *Specification `gorm:"foreignKey:VehicleID"`
	Images []VehicleImage `gorm:"foreignKey:VehicleID"`
}

func (Vehicle) TableName() string { return "vehicles" }

type Specification struct {
	ID           string         `gorm:"type:char(36);primaryKey"`
	VehicleID    string         `gorm:"type:char(36);not null;uniqueIndex:ux_specs_vehicle_id"`
	Seats        int            `gorm:"not null"`
	Doors        int            `gorm:"not null"`
	Transmission string         `gorm:"type:varchar(32);not null"` // manual | automatic
	FuelType     string         `gorm:"type:varchar(32);not null"` // petrol | diesel | hybrid | electric
	Consumption  *string        `gorm:"type:varchar(32)"`          // e.g. "6.5 l/100km"
	Features     datatypes.JSON `gorm:"type:json"`
	CreatedAt    time.Time      `gorm:"precision:3;not null"`
	UpdatedAt    time.Time      `gorm:"precision:3;not null"`
}

func (Specification) TableName() string { return "vehicle_specifications" }

type VehicleImage struct {
	ID          string    `gorm:"type:char(36);primaryKey"`
	VehicleID   string    `gorm:"type:char(36);not null;index:ix_vehicle_images_vehicle_id"`
	StorageKey  string    `gorm:"type:varchar(255);not null"`
	URL         string    `gorm:"type:varchar(512);not null"`
	ContentType string    `gorm:"type:varchar(64);not null"`
	Primary     bool      `gorm:"column:is_primary;not null;default:false"`
	CreatedAt   time.Time `gorm:"precision:3;not null"`
}

func (VehicleImage) TableName() string { return "vehicle_images" }
