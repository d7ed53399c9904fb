package locations

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

type CreateInput struct {
	Name    string
	City    string
	Address string
}

func (r *Repo) Create(ctx context.Context, in CreateInput) (Location, error) {
	now := time.Now()
	loc := Location{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		City:      strings.TrimSpace(in.City),
		Address:   strings.TrimSpace(in.Address),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(&loc).Error; err != nil {
		return Location{}, err
	}
	return loc, nil
}

type UpdateInput struct {
	Name    *string
	City    *string
	Address *string
}

// Update persists only the fields the caller explicitly set.
func (r *Repo) Update(ctx context.Context, id string, in UpdateInput) (Location, error) {
	updates := map[string]any{"updated_at": time.Now()}
	if in.Name != nil {
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.City != nil {
		updates["city"] = strings.TrimSpace(*in.City)
	}
	if in.Address != nil {
		updates["address"] = strings.TrimSpace(*in.Address)
	}

	if err := r.db.WithContext(ctx).Model(&Location{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return Location{}, err
	}
	return r.Get(ctx, id)
}

func (r *Repo) Get(ctx context.Context, id string) (Location, error) {
	var loc Location
	err := r.db.WithContext(ctx).First(&loc, "id = ?", id).Error
	return loc, err
}

func (r *Repo) List(ctx context.Context) ([]Location, error) {
	var out []Location
	err := r.db.WithContext(ctx).Order("city, name").Find(&out).Error
	return out, err
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&Location{}, "id = ?", id).Error
}
