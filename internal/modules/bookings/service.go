package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"safarifleet.com/app/internal/modules/vehicles"
)

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// lockForUpdate takes a row lock on MySQL. sqlite (tests) serializes the
// whole write transaction instead and rejects FOR UPDATE syntax.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "mysql" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// overlapQuery matches any blocking booking whose range shares at least one
// instant with [start, end]: candidate starts inside, ends inside, or encloses.
func overlapQuery(tx *gorm.DB, vehicleID string, start, end time.Time) *gorm.DB {
	return tx.Model(&Booking{}).
		Where("vehicle_id = ? AND status IN ?", vehicleID, blockingStatuses).
		Where(
			tx.Where("start_date <= ? AND end_date >= ?", start, start).
				Or("start_date <= ? AND end_date >= ?", end, end).
				Or("start_date >= ? AND end_date <= ?", start, end),
		)
}

type CreateInput struct {
	UserID    string
	VehicleID string
	StartDate time.Time
	EndDate   time.Time
}

// Create validates the date range, re-checks availability and inserts the
// booking in one transaction. The vehicle row lock closes the window where
// two concurrent requests both pass the overlap check.
func (s *Service) Create(ctx context.Context, in CreateInput) (Booking, error) {
	if !in.EndDate.After(in.StartDate) {
		return Booking{}, ErrEndBeforeStart
	}
	if in.StartDate.Before(startOfToday()) {
		return Booking{}, ErrStartInPast
	}

	var created Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var v vehicles.Vehicle
		if err := lockForUpdate(tx).First(&v, "id = ?", in.VehicleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return vehicles.ErrUnknownVehicle
			}
			return err
		}
		if !v.Available {
			return ErrVehicleUnavailable
		}

		var conflicts int64
		if err := overlapQuery(tx, in.VehicleID, in.StartDate, in.EndDate).Count(&conflicts).Error; err != nil {
			return err
		}
		if conflicts > 0 {
			return ErrDateConflict
		}

		now := time.Now()
		created = Booking{
			ID:         uuid.NewString(),
			UserID:     in.UserID,
			VehicleID:  in.VehicleID,
			LocationID: v.LocationID,
			StartDate:  in.StartDate,
			EndDate:    in.EndDate,
			TotalCents: RentalDays(in.StartDate, in.EndDate) * v.DailyCents,
			Currency:   v.Currency,
			Status:     StatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		return tx.Create(&created).Error
	})
	if err != nil {
		return Booking{}, err
	}
	return created, nil
}

type AvailabilityResult struct {
	Available  bool
	Reason     string
	LocationID string // resolved pickup location when available
}

// CheckAvailability answers "can this vehicle be booked for [start, end]",
// optionally constrained to a pickup location.
func (s *Service) CheckAvailability(ctx context.Context, vehicleID string, start, end time.Time, locationID string) (AvailabilityResult, error) {
	if !end.After(start) {
		return AvailabilityResult{}, ErrEndBeforeStart
	}

	var v vehicles.Vehicle
	if err := s.db.WithContext(ctx).First(&v, "id = ?", vehicleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AvailabilityResult{}, vehicles.ErrUnknownVehicle
		}
		return AvailabilityResult{}, err
	}

	if !v.Available {
		return AvailabilityResult{Available: false, Reason: "vehicle is not available for rental"}, nil
	}
	if locationID != "" && v.LocationID != locationID {
		return AvailabilityResult{Available: false, Reason: "vehicle is not at the requested location"}, nil
	}

	var conflicts int64
	if err := overlapQuery(s.db.WithContext(ctx), vehicleID, start, end).Count(&conflicts).Error; err != nil {
		return AvailabilityResult{}, err
	}
	if conflicts > 0 {
		return AvailabilityResult{
			Available: false,
			Reason:    fmt.Sprintf("conflicts with %d existing booking(s) in the requested range", conflicts),
		}, nil
	}

	return AvailabilityResult{Available: true, LocationID: v.LocationID}, nil
}

type Actor struct {
	UserID string
	Admin  bool
}

func (s *Service) Get(ctx context.Context, actor Actor, id string) (Booking, error) {
	var b Booking
	if err := s.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Booking{}, ErrUnknownBooking
		}
		return Booking{}, err
	}
	if !actor.Admin && b.UserID != actor.UserID {
		return Booking{}, ErrForbidden
	}
	return b, nil
}

type ListParams struct {
	UserID    string // empty for admin "all"
	VehicleID string
	Status    Status
	Page      int
	PageSize  int
}

func (s *Service) List(ctx context.Context, in ListParams) ([]Booking, int64, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	size := in.PageSize
	if size < 1 || size > 100 {
		size = 20
	}

	q := s.db.WithContext(ctx).Model(&Booking{})
	if in.UserID != "" {
		q = q.Where("user_id = ?", in.UserID)
	}
	if in.VehicleID != "" {
		q = q.Where("vehicle_id = ?", in.VehicleID)
	}
	if in.Status != "" {
		q = q.Where("status = ?", in.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []Booking
	if err := q.Order("created_at DESC").Limit(size).Offset((page - 1) * size).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// transition table for operator-driven status changes
var allowedTransitions = map[Status][]Status{
	StatusConfirmed: {StatusPending},
	StatusActive:    {StatusConfirmed},
	StatusCompleted: {StatusConfirmed, StatusActive},
	StatusCancelled: {StatusPending, StatusConfirmed},
}

func (s *Service) Transition(ctx context.Context, actor Actor, id string, to Status) (Booking, error) {
	from, ok := allowedTransitions[to]
	if !ok {
		return Booking{}, ErrInvalidTransition
	}

	// only cancel is open to the booking owner; the rest is back-office
	if !actor.Admin && to != StatusCancelled {
		return Booking{}, ErrForbidden
	}

	var b Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&b, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownBooking
			}
			return err
		}
		if !actor.Admin && b.UserID != actor.UserID {
			return ErrForbidden
		}
		if !statusIn(b.Status, from) {
			return ErrInvalidTransition
		}

		now := time.Now()
		if err := tx.Model(&Booking{}).Where("id = ?", b.ID).
			Updates(map[string]any{"status": to, "updated_at": now}).Error; err != nil {
			return err
		}
		b.Status = to
		b.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Booking{}, err
	}
	return b, nil
}

// Delete removes a booking that never reached a money-bearing state.
func (s *Service) Delete(ctx context.Context, actor Actor, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b Booking
		if err := lockForUpdate(tx).First(&b, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownBooking
			}
			return err
		}
		if !actor.Admin && b.UserID != actor.UserID {
			return ErrForbidden
		}
		if b.Status != StatusPending && b.Status != StatusCancelled {
			return ErrNotDeletable
		}
		return tx.Delete(&Booking{}, "id = ?", id).Error
	})
}

func statusIn(s Status, list []Status) bool {
	for _, v := range list {
		if s == v {
			return true
		}
	}
	return false
}

func startOfToday() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
