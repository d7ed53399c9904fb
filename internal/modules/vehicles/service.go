package vehicles

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"safarifleet.com/app/internal/shared/slug"
)

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

type CreateInput struct {
	Name        string
	Brand       string
	ModelYear   int
	PlateNumber string
	DailyCents  int64
	Currency    string
	LocationID  string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Vehicle, error) {
	plate := strings.ToUpper(strings.TrimSpace(in.PlateNumber))

	var existing Vehicle
	err := s.db.WithContext(ctx).First(&existing, "plate_number = ?", plate).Error
	if err == nil {
		return Vehicle{}, ErrPlateTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Vehicle{}, err
	}

	now := time.Now()
	v := Vehicle{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Brand:       strings.TrimSpace(in.Brand),
		ModelYear:   in.ModelYear,
		PlateNumber: plate,
		DailyCents:  in.DailyCents,
		Currency:    strings.ToUpper(in.Currency),
		Available:   true,
		LocationID:  in.LocationID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	// slug carries the plate suffix so two vehicles with the same name stay distinct
	v.Slug = slug.FromName(v.Brand+" "+v.Name) + "-" + strings.ToLower(plate)

	if err := s.db.WithContext(ctx).Create(&v).Error; err != nil {
		return Vehicle{}, err
	}
	return v, nil
}

type UpdateInput struct {
	Name       *string
	Brand      *string
	ModelYear  *int
	DailyCents *int64
	Available  *bool
	LocationID *string
}

// Update applies an explicit patch; unset fields are left alone.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Vehicle, error) {
	updates := map[string]any{"updated_at": time.Now()}
	if in.Name != nil {
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Brand != nil {
		updates["brand"] = strings.TrimSpace(*in.Brand)
	}
	if in.ModelYear != nil {
		updates["model_year"] = *in.ModelYear
	}
	if in.DailyCents != nil {
		updates["daily_cents"] = *in.DailyCents
	}
	if in.Available != nil {
		updates["available"] = *in.Available
	}
	if in.LocationID != nil {
		updates["location_id"] = *in.LocationID
	}

	res := s.db.WithContext(ctx).Model(&Vehicle{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return Vehicle{}, res.Error
	}
	if res.RowsAffected == 0 {
		return Vehicle{}, ErrUnknownVehicle
	}
	return s.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (Vehicle, error) {
	var v Vehicle
	err := s.db.WithContext(ctx).
		Preload("Spec").
		Preload("Images").
		First(&v, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Vehicle{}, ErrUnknownVehicle
	}
	return v, err
}

func (s *Service) GetBySlug(ctx context.Context, sl string) (Vehicle, error) {
	var v Vehicle
	err := s.db.WithContext(ctx).
		Preload("Spec").
		Preload("Images").
		First(&v, "slug = ?", sl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Vehicle{}, ErrUnknownVehicle
	}
	return v, err
}

type ListParams struct {
	LocationID    string // optional
	OnlyAvailable bool
	Page          int
	PageSize      int
}

func (s *Service) List(ctx context.Context, in ListParams) ([]Vehicle, int64, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	size := in.PageSize
	if size < 1 || size > 100 {
		size = 20
	}

	q := s.db.WithContext(ctx).Model(&Vehicle{})
	if in.LocationID != "" {
		q = q.Where("location_id = ?", in.LocationID)
	}
	if in.OnlyAvailable {
		q = q.Where("available = ?", true)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []Vehicle
	if err := q.Preload("Spec").Preload("Images").
		Order("brand, name").
		Limit(size).Offset((page - 1) * size).
		Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Delete refuses while the vehicle still has bookings that could be honored.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var v Vehicle
		if err := tx.First(&v, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownVehicle
			}
			return err
		}

		var open int64
		if err := tx.Table("bookings").
			Where("vehicle_id = ? AND status IN ?", id, []string{"pending", "confirmed", "active"}).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return ErrHasBookings
		}

		if err := tx.Delete(&Specification{}, "vehicle_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&Vehicle{}, "id = ?", id).Error
	})
}

type SpecInput struct {
	Seats        int
	Doors        int
	Transmission string
	FuelType     string
	Consumption  *string
	Features     []string
}

func (s *Service) UpsertSpec(ctx context.Context, vehicleID string, in SpecInput) (Specification, error) {
	var v Vehicle
	if err := s.db.WithContext(ctx).First(&v, "id = ?", vehicleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Specification{}, ErrUnknownVehicle
		}
		return Specification{}, err
	}

	raw, err := json.Marshal(in.Features)
	if err != nil {
		return Specification{}, err
	}
	features := datatypes.JSON(raw)

	now := time.Now()
	var spec Specification
	err = s.db.WithContext(ctx).First(&spec, "vehicle_id = ?", vehicleID).Error
	switch {
	case err == nil:
		spec.Seats = in.Seats
		spec.Doors = in.Doors
		spec.Transmission = in.Transmission
		spec.FuelType = in.FuelType
		spec.Consumption = in.Consumption
		spec.Features = features
		spec.UpdatedAt = now
		if err := s.db.WithContext(ctx).Save(&spec).Error; err != nil {
			return Specification{}, err
		}
		return spec, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		spec = Specification{
			ID:           uuid.NewString(),
			VehicleID:    vehicleID,
			Seats:        in.Seats,
			Doors:        in.Doors,
			Transmission: in.Transmission,
			FuelType:     in.FuelType,
			Consumption:  in.Consumption,
			Features:     features,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.db.WithContext(ctx).Create(&spec).Error; err != nil {
			return Specification{}, err
		}
		return spec, nil

	default:
		return Specification{}, err
	}
}
