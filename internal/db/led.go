package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/randalmurphal/sprout/internal/model"
)

var ledCols = []string{"name", "type", "mounting_distance_cm", "calibration_factors", "schedule"}

const ledSelect = `SELECT id, name, type, mounting_distance_cm, calibration_factors, schedule FROM led_profiles`

func ledArgs(l *model.LedProfile) ([]any, error) {
	factors := l.CalibrationFactors
	if factors == nil {
		factors = map[string]float64{}
	}
	schedule := l.Schedule
	if schedule == nil {
		schedule = []model.ScheduleEntry{}
	}
	f, err := marshalText(factors)
	if err != nil {
		return nil, err
	}
	s, err := marshalText(schedule)
	if err != nil {
		return nil, err
	}
	return []any{l.Name, l.Type, nullFloat(l.MountingDistanceCm), f, s}, nil
}

func scanLedProfile(s interface{ Scan(...any) error }) (*model.LedProfile, error) {
	var l model.LedProfile
	var distance sql.NullFloat64
	var factors, schedule string
	if err := s.Scan(&l.ID, &l.Name, &l.Type, &distance, &factors, &schedule); err != nil {
		return nil, err
	}
	l.MountingDistanceCm = floatPtr(distance)
	if err := unmarshalText(factors, &l.CalibrationFactors); err != nil {
		return nil, err
	}
	if err := unmarshalText(schedule, &l.Schedule); err != nil {
		return nil, err
	}
	return &l, nil
}

// InsertLedProfile inserts an LED profile and sets its ID.
func (o *Ops) InsertLedProfile(ctx context.Context, l *model.LedProfile) error {
	args, err := ledArgs(l)
	if err != nil {
		return err
	}
	id, err := o.insertRow(ctx, "led_profiles", l.ID, ledCols, args)
	if err != nil {
		return fmt.Errorf("insert led profile: %w", err)
	}
	l.ID = id
	return nil
}

// UpdateLedProfile overwrites a stored LED profile.
func (o *Ops) UpdateLedProfile(ctx context.Context, l *model.LedProfile) error {
	args, err := ledArgs(l)
	if err != nil {
		return err
	}
	if err := o.updateRow(ctx, "led_profiles", "id", l.ID, ledCols, args); err != nil {
		return fmt.Errorf("update led profile %d: %w", l.ID, err)
	}
	return nil
}

// DeleteLedProfile deletes an LED profile. Plants referencing it keep no profile.
func (o *Ops) DeleteLedProfile(ctx context.Context, id int64) error {
	if err := o.deleteWhere(ctx, "led_profiles", "id", id); err != nil {
		return fmt.Errorf("delete led profile %d: %w", id, err)
	}
	return nil
}

// GetLedProfile returns one LED profile or ErrNotFound.
func (o *Ops) GetLedProfile(ctx context.Context, id int64) (*model.LedProfile, error) {
	l, err := scanLedProfile(o.queryRow(ctx, ledSelect+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get led profile %d: %w", id, err)
	}
	return l, nil
}

// GetAllLedProfiles returns every LED profile ordered by id.
func (o *Ops) GetAllLedProfiles(ctx context.Context) ([]*model.LedProfile, error) {
	rows, err := o.query(ctx, ledSelect+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list led profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*model.LedProfile
	for rows.Next() {
		l, err := scanLedProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan led profile: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// InsertLedProfileAssociation links a plant to an LED profile. Linking an
// already linked pair is a no-op.
func (o *Ops) InsertLedProfileAssociation(ctx context.Context, a *model.LedProfileAssociation) error {
	_, err := o.exec(ctx, `INSERT INTO led_profile_associations (plant_id, led_profile_id) VALUES (?, ?)
		ON CONFLICT (plant_id, led_profile_id) DO NOTHING`, a.PlantID, a.LedProfileID)
	if err != nil {
		return fmt.Errorf("insert led profile association %d/%d: %w", a.PlantID, a.LedProfileID, err)
	}
	return nil
}

// DeleteLedProfileAssociation unlinks a plant from an LED profile.
func (o *Ops) DeleteLedProfileAssociation(ctx context.Context, a *model.LedProfileAssociation) error {
	_, err := o.exec(ctx, `DELETE FROM led_profile_associations WHERE plant_id = ? AND led_profile_id = ?`,
		a.PlantID, a.LedProfileID)
	if err != nil {
		return fmt.Errorf("delete led profile association %d/%d: %w", a.PlantID, a.LedProfileID, err)
	}
	return nil
}

// GetAllLedProfileAssociations returns every association.
func (o *Ops) GetAllLedProfileAssociations(ctx context.Context) ([]*model.LedProfileAssociation, error) {
	return o.listAssociations(ctx, `SELECT plant_id, led_profile_id FROM led_profile_associations ORDER BY plant_id, led_profile_id`)
}

// GetLedProfileAssociationsForPlant returns the associations of one plant.
func (o *Ops) GetLedProfileAssociationsForPlant(ctx context.Context, plantID int64) ([]*model.LedProfileAssociation, error) {
	return o.listAssociations(ctx, `SELECT plant_id, led_profile_id FROM led_profile_associations
		WHERE plant_id = ? ORDER BY led_profile_id`, plantID)
}

func (o *Ops) listAssociations(ctx context.Context, query string, args ...any) ([]*model.LedProfileAssociation, error) {
	rows, err := o.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list led profile associations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*model.LedProfileAssociation
	for rows.Next() {
		var a model.LedProfileAssociation
		if err := rows.Scan(&a.PlantID, &a.LedProfileID); err != nil {
			return nil, fmt.Errorf("scan led profile association: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
