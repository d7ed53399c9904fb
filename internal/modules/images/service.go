package images

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"safarifleet.com/app/internal/modules/vehicles"
	"safarifleet.com/app/internal/storage"
)

var ErrUnknownImage = errors.New("image not found")

type Service struct {
	db    *gorm.DB
	store storage.Storage
}

func NewService(db *gorm.DB, store storage.Storage) *Service {
	return &Service{db: db, store: store}
}

type UploadInput struct {
	VehicleID   string
	Filename    string
	ContentType string
	Size        int64
	Primary     bool
}

func (s *Service) Upload(ctx context.Context, r io.Reader, in UploadInput) (vehicles.VehicleImage, error) {
	var v vehicles.Vehicle
	if err := s.db.WithContext(ctx).First(&v, "id = ?", in.VehicleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return vehicles.VehicleImage{}, vehicles.ErrUnknownVehicle
		}
		return vehicles.VehicleImage{}, err
	}

	put, err := s.store.Put(ctx, r, storage.PutInput{
		Filename:    in.Filename,
		ContentType: in.ContentType,
		Size:        in.Size,
	})
	if err != nil {
		return vehicles.VehicleImage{}, err
	}

	img := vehicles.VehicleImage{
		ID:          uuid.NewString(),
		VehicleID:   in.VehicleID,
		StorageKey:  put.Key,
		URL:         put.URL,
		ContentType: in.ContentType,
		Primary:     in.Primary,
		CreatedAt:   time.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if img.Primary {
			if err := tx.Model(&vehicles.VehicleImage{}).
				Where("vehicle_id = ?", in.VehicleID).
				Update("is_primary", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(&img).Error
	})
	if err != nil {
		// best effort: don't leave the uploaded object orphaned
		_ = s.store.Delete(ctx, put.Key)
		return vehicles.VehicleImage{}, err
	}
	return img, nil
}

func (s *Service) List(ctx context.Context, vehicleID string) ([]vehicles.VehicleImage, error) {
	var out []vehicles.VehicleImage
	err := s.db.WithContext(ctx).
		Where("vehicle_id = ?", vehicleID).
		Order("is_primary DESC, created_at").
		Find(&out).Error
	return out, err
}

func (s *Service) Delete(ctx context.Context, id string) error {
	var img vehicles.VehicleImage
	if err := s.db.WithContext(ctx).First(&img, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnknownImage
		}
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&vehicles.VehicleImage{}, "id = ?", id).Error; err != nil {
		return err
	}
	// storage cleanup failure is logged by the caller, row removal wins
	return s.store.Delete(ctx, img.StorageKey)
}
