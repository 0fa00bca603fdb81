package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/randalmurphal/sprout/internal/model"
)

var plantCols = []string{"name", "description", "species", "location_hint", "acquired_at", "photo_ref", "led_profile_id"}

const plantSelect = `SELECT id, name, description, species, location_hint, acquired_at, photo_ref, led_profile_id FROM plants`

func plantArgs(p *model.Plant) []any {
	return []any{p.Name, p.Description, p.Species, p.LocationHint, toMillis(p.AcquiredAt), p.PhotoRef, nullInt(p.LedProfileID)}
}

func scanPlant(s interface{ Scan(...any) error }) (*model.Plant, error) {
	var p model.Plant
	var acquired int64
	var led sql.NullInt64
	if err := s.Scan(&p.ID, &p.Name, &p.Description, &p.Species, &p.LocationHint, &acquired, &p.PhotoRef, &led); err != nil {
		return nil, err
	}
	p.AcquiredAt = fromMillis(acquired)
	p.LedProfileID = intPtr(led)
	return &p, nil
}

// InsertPlant inserts a plant and sets its ID.
func (o *Ops) InsertPlant(ctx context.Context, p *model.Plant) error {
	id, err := o.insertRow(ctx, "plants", p.ID, plantCols, plantArgs(p))
	if err != nil {
		return fmt.Errorf("insert plant: %w", err)
	}
	p.ID = id
	return nil
}

// UpdatePlant overwrites a stored plant.
func (o *Ops) UpdatePlant(ctx context.Context, p *model.Plant) error {
	if err := o.updateRow(ctx, "plants", "id", p.ID, plantCols, plantArgs(p)); err != nil {
		return fmt.Errorf("update plant %d: %w", p.ID, err)
	}
	return nil
}

// DeletePlant deletes a plant and, by cascade, everything it owns.
func (o *Ops) DeletePlant(ctx context.Context, id int64) error {
	if err := o.deleteWhere(ctx, "plants", "id", id); err != nil {
		return fmt.Errorf("delete plant %d: %w", id, err)
	}
	return nil
}

// GetPlant returns one plant or ErrNotFound.
func (o *Ops) GetPlant(ctx context.Context, id int64) (*model.Plant, error) {
	p, err := scanPlant(o.queryRow(ctx, plantSelect+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plant %d: %w", id, err)
	}
	return p, nil
}

// GetAllPlants returns every plant ordered by id.
func (o *Ops) GetAllPlants(ctx context.Context) ([]*model.Plant, error) {
	rows, err := o.query(ctx, plantSelect+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list plants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var plants []*model.Plant
	for rows.Next() {
		p, err := scanPlant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plant: %w", err)
		}
		plants = append(plants, p)
	}
	return plants, rows.Err()
}

var plantPhotoCols = []string{"plant_id", "photo_ref", "created_at"}

const plantPhotoSelect = `SELECT id, plant_id, photo_ref, created_at FROM plant_photos`

func scanPlantPhoto(s interface{ Scan(...any) error }) (*model.PlantPhoto, error) {
	var p model.PlantPhoto
	var created int64
	if err := s.Scan(&p.ID, &p.PlantID, &p.PhotoRef, &created); err != nil {
		return nil, err
	}
	p.CreatedAt = fromMillis(created)
	return &p, nil
}

// InsertPlantPhoto inserts a gallery photo and sets its ID.
func (o *Ops) InsertPlantPhoto(ctx context.Context, p *model.PlantPhoto) error {
	id, err := o.insertRow(ctx, "plant_photos", p.ID, plantPhotoCols, []any{p.PlantID, p.PhotoRef, toMillis(p.CreatedAt)})
	if err != nil {
		return fmt.Errorf("insert plant photo: %w", err)
	}
	p.ID = id
	return nil
}

// UpdatePlantPhoto overwrites a stored gallery photo.
func (o *Ops) UpdatePlantPhoto(ctx context.Context, p *model.PlantPhoto) error {
	if err := o.updateRow(ctx, "plant_photos", "id", p.ID, plantPhotoCols, []any{p.PlantID, p.PhotoRef, toMillis(p.CreatedAt)}); err != nil {
		return fmt.Errorf("update plant photo %d: %w", p.ID, err)
	}
	return nil
}

// DeletePlantPhoto deletes a gallery photo row.
func (o *Ops) DeletePlantPhoto(ctx context.Context, id int64) error {
	if err := o.deleteWhere(ctx, "plant_photos", "id", id); err != nil {
		return fmt.Errorf("delete plant photo %d: %w", id, err)
	}
	return nil
}

// GetAllPlantPhotos returns every gallery photo.
func (o *Ops) GetAllPlantPhotos(ctx context.Context) ([]*model.PlantPhoto, error) {
	return o.listPlantPhotos(ctx, plantPhotoSelect+" ORDER BY id")
}

// GetPlantPhotosForPlant returns a plant's gallery photos.
func (o *Ops) GetPlantPhotosForPlant(ctx context.Context, plantID int64) ([]*model.PlantPhoto, error) {
	return o.listPlantPhotos(ctx, plantPhotoSelect+" WHERE plant_id = ? ORDER BY id", plantID)
}

func (o *Ops) listPlantPhotos(ctx context.Context, query string, args ...any) ([]*model.PlantPhoto, error) {
	rows, err := o.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list plant photos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var photos []*model.PlantPhoto
	for rows.Next() {
		p, err := scanPlantPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plant photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}
