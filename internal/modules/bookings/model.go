package bookings

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// blocking statuses hold the vehicle for their date range
var blockingStatuses = []Status{StatusPending, StatusConfirmed}

type Booking struct {
	ID         string    `gorm:"type:char(36);primaryKey"`
	UserID     string    `gorm:"type:char(36);not null;index:ix_bookings_user_id"`
	VehicleID  string    `gorm:"type:char(36);not null;index:ix_bookings_vehicle_id"`
	LocationID string    `gorm:"type:char(36);not null"`
	StartDate  time.Time `gorm:"precision:3;not null"`
	EndDate    time.Time `gorm:"precision:3;not null"`
	TotalCents int64     `gorm:"not null"`
	Currency   string    `gorm:"type:char(3);not null"`
	Status     Status    `gorm:"type:varchar(16);not null;index:ix_bookings_status"`
	CreatedAt  time.Time `gorm:"precision:3;not null"`
	UpdatedAt  time.Time `gorm:"precision:3;not null"`
}

func (Booking) TableName() string { return "bookings" }

// RentalDays charges any started day as a full day, minimum one.
func RentalDays(start, end time.Time) int64 {
	h := end.Sub(start).Hours()
	days := int64(h / 24)
	if float64(days*24) < h {
		days++
	}
	if days < 1 {
		days = 1
	}
	return days
}

// rangesOverlap uses inclusive bounds on both ends: a candidate that merely
// touches an existing booking's pickup or return date conflicts with it.
func rangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !aEnd.Before(bStart)
}
