package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"chore-planner/internal/model"
)

// LocationRepository manages the room list.
type LocationRepository struct {
	db *gorm.DB
}

func NewLocationRepository(db *gorm.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

func (r *LocationRepository) Create(ctx context.Context, name string) (*model.Location, error) {
	loc := model.Location{Name: name}
	if err := r.db.WithContext(ctx).Create(&loc).Error; err != nil {
		return nil, fmt.Errorf("create location: %w", err)
	}
	return &loc, nil
}

func (r *LocationRepository) List(ctx context.Context) ([]model.Location, error) {
	var locations []model.Location
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&locations).Error; err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return locations, nil
}

// ReplaceAll rewrites the location table with the given names, in
// order. The table is dropped and recreated rather than updated row by
// row: that resets the autoincrement counter, so ids always match
// creation order and task joins on location_id stay stable as long as
// the order is preserved.
func (r *LocationRepository) ReplaceAll(ctx context.Context, names []string) error {
	db := r.db.WithContext(ctx)
	if err := db.Migrator().DropTable(&model.Location{}); err != nil {
		return fmt.Errorf("drop location table: %w", err)
	}
	if err := db.Migrator().CreateTable(&model.Location{}); err != nil {
		return fmt.Errorf("recreate location table: %w", err)
	}
	for _, name := range names {
		if err := db.Create(&model.Location{Name: name}).Error; err != nil {
			return fmt.Errorf("insert location %q: %w", name, err)
		}
	}
	return nil
}
