package payments

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

const (
	ProviderCard         = "card"
	ProviderMobileMoney  = "mpesa"
	ProviderCash         = "cash"
	ProviderBankTransfer = "bank_transfer"
)

// Payment is one attempt to pay for a booking. Rows are never deleted;
// a refund is a status transition, not a removal.
type Payment struct {
	ID            string         `gorm:"type:char(36);primaryKey"`
	BookingID     *string        `gorm:"type:char(36);index:ix_payments_booking_id"`
	UserID        string         `gorm:"type:char(36);not null;index:ix_payments_user_id"`
	AmountCents   int64          `gorm:"not null"`
	Currency      string         `gorm:"type:char(3);not null"`
	Provider      string         `gorm:"type:varchar(32);not null"`
	ProviderRef   *string        `gorm:"type:varchar(128);index:ix_payments_provider_ref"` // intent / checkout id; callback lookup key
	Status        Status         `gorm:"type:varchar(16);not null"`
	FailureReason *string        `gorm:"type:varchar(255)"`
	Metadata      datatypes.JSON `gorm:"type:json"`
	CreatedAt     time.Time      `gorm:"precision:3;not null"`
	UpdatedAt     time.Time      `gorm:"precision:3;not null"`
}

func (Payment) TableName() string { return "payments" }

// ProviderEvent is the webhook dedupe ledger: unique(provider, event_id)
// makes duplicate deliveries a clean no-op.
type ProviderEvent struct {
	ID          string         `gorm:"type:char(36);primaryKey"`
	Provider    string         `gorm:"type:varchar(64);not null;uniqueIndex:ux_provider_events_provider_event,priority:1"`
	EventID     string         `gorm:"type:varchar(128);not null;uniqueIndex:ux_provider_events_provider_event,priority:2"`
	EventType   string         `gorm:"type:varchar(64);not null"`
	PayloadJSON datatypes.JSON `gorm:"type:json;not null"`

	ReceivedAt   time.Time  `gorm:"precision:3;not null"`
	ProcessedAt  *time.Time `gorm:"precision:3"`
	ProcessError *string    `gorm:"type:varchar(255)"`
}

func (ProviderEvent) TableName() string { return "provider_events" }
