package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/randalmurphal/sprout/internal/model"
)

var speciesCols = []string{
	"species_key", "common_name", "scientific_name", "category",
	"seedling_ppfd_min", "seedling_ppfd_max", "seedling_dli_min", "seedling_dli_max",
	"vegetative_ppfd_min", "vegetative_ppfd_max", "vegetative_dli_min", "vegetative_dli_max",
	"flower_ppfd_min", "flower_ppfd_max", "flower_dli_min", "flower_dli_max",
	"watering_frequency", "watering_soil", "watering_tolerance",
	"temperature_min", "temperature_max", "humidity_min", "humidity_max",
	"growth_habit", "toxic", "care_tips", "sources",
}

var speciesSelect = "SELECT " + strings.Join(speciesCols, ", ") + " FROM species_targets"

func lightArgs(l model.LightTarget) []any {
	return []any{nullFloat(l.PPFD.Min), nullFloat(l.PPFD.Max), nullFloat(l.DLI.Min), nullFloat(l.DLI.Max)}
}

func speciesArgs(s *model.SpeciesTarget) ([]any, error) {
	tips, err := marshalText(nonNil(s.CareTips))
	if err != nil {
		return nil, err
	}
	sources, err := marshalText(nonNil(s.Sources))
	if err != nil {
		return nil, err
	}
	args := []any{s.SpeciesKey, s.CommonName, s.ScientificName, s.Category}
	args = append(args, lightArgs(s.Seedling)...)
	args = append(args, lightArgs(s.Vegetative)...)
	args = append(args, lightArgs(s.Flower)...)
	args = append(args,
		s.Watering.Frequency, s.Watering.Soil, s.Watering.Tolerance,
		nullFloat(s.Temperature.Min), nullFloat(s.Temperature.Max),
		nullFloat(s.Humidity.Min), nullFloat(s.Humidity.Max),
		s.GrowthHabit, nullBool(s.Toxic), tips, sources,
	)
	return args, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func scanSpecies(s interface{ Scan(...any) error }) (*model.SpeciesTarget, error) {
	var t model.SpeciesTarget
	var f [20]sql.NullFloat64
	var toxic sql.NullInt64
	var tips, sources string
	err := s.Scan(&t.SpeciesKey, &t.CommonName, &t.ScientificName, &t.Category,
		&f[0], &f[1], &f[2], &f[3], &f[4], &f[5], &f[6], &f[7], &f[8], &f[9], &f[10], &f[11],
		&t.Watering.Frequency, &t.Watering.Soil, &t.Watering.Tolerance,
		&f[12], &f[13], &f[14], &f[15],
		&t.GrowthHabit, &toxic, &tips, &sources)
	if err != nil {
		return nil, err
	}
	stage := func(i int) model.LightTarget {
		return model.LightTarget{
			PPFD: model.Range{Min: floatPtr(f[i]), Max: floatPtr(f[i+1])},
			DLI:  model.Range{Min: floatPtr(f[i+2]), Max: floatPtr(f[i+3])},
		}
	}
	t.Seedling = stage(0)
	t.Vegetative = stage(4)
	t.Flower = stage(8)
	t.Temperature = model.Range{Min: floatPtr(f[12]), Max: floatPtr(f[13])}
	t.Humidity = model.Range{Min: floatPtr(f[14]), Max: floatPtr(f[15])}
	t.Toxic = boolPtr(toxic)
	if err := unmarshalText(tips, &t.CareTips); err != nil {
		return nil, err
	}
	if err := unmarshalText(sources, &t.Sources); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpsertSpeciesTarget inserts a species target or overwrites the one with the
// same key.
func (o *Ops) UpsertSpeciesTarget(ctx context.Context, s *model.SpeciesTarget) error {
	args, err := speciesArgs(s)
	if err != nil {
		return err
	}
	sets := make([]string, 0, len(speciesCols)-1)
	for _, c := range speciesCols[1:] {
		sets = append(sets, c+" = excluded."+c)
	}
	query := fmt.Sprintf("INSERT INTO species_targets (%s) VALUES (%s) ON CONFLICT (species_key) DO UPDATE SET %s",
		strings.Join(speciesCols, ", "), placeholders(len(speciesCols)), strings.Join(sets, ", "))
	if _, err := o.exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert species target %q: %w", s.SpeciesKey, err)
	}
	return nil
}

// DeleteSpeciesTarget deletes the species target with the given key.
func (o *Ops) DeleteSpeciesTarget(ctx context.Context, key string) error {
	if err := o.deleteWhere(ctx, "species_targets", "species_key", key); err != nil {
		return fmt.Errorf("delete species target %q: %w", key, err)
	}
	return nil
}

// GetSpeciesTarget returns the species target for key or ErrNotFound.
func (o *Ops) GetSpeciesTarget(ctx context.Context, key string) (*model.SpeciesTarget, error) {
	t, err := scanSpecies(o.queryRow(ctx, speciesSelect+" WHERE species_key = ?", key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get species target %q: %w", key, err)
	}
	return t, nil
}

// GetAllSpeciesTargets returns every species target ordered by key.
func (o *Ops) GetAllSpeciesTargets(ctx context.Context) ([]*model.SpeciesTarget, error) {
	rows, err := o.query(ctx, speciesSelect+" ORDER BY species_key")
	if err != nil {
		return nil, fmt.Errorf("list species targets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*model.SpeciesTarget
	for rows.Next() {
		t, err := scanSpecies(rows)
		if err != nil {
			return nil, fmt.Errorf("scan species target: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

var suggestionCols = []string{"plant_id", "interval_days", "last_evaluated_at", "confidence", "explanation"}

const suggestionSelect = `SELECT plant_id, interval_days, last_evaluated_at, confidence, explanation FROM reminder_suggestions`

// UpsertReminderSuggestion stores the suggestion for its plant, replacing any
// previous one.
func (o *Ops) UpsertReminderSuggestion(ctx context.Context, s *model.ReminderSuggestion) error {
	query := fmt.Sprintf(`INSERT INTO reminder_suggestions (%s) VALUES (%s)
		ON CONFLICT (plant_id) DO UPDATE SET interval_days = excluded.interval_days,
		last_evaluated_at = excluded.last_evaluated_at, confidence = excluded.confidence,
		explanation = excluded.explanation`, strings.Join(suggestionCols, ", "), placeholders(len(suggestionCols)))
	_, err := o.exec(ctx, query, s.PlantID, s.IntervalDays, toMillis(s.LastEvaluatedAt), s.Confidence, s.Explanation)
	if err != nil {
		return fmt.Errorf("upsert reminder suggestion for plant %d: %w", s.PlantID, err)
	}
	return nil
}

// DeleteReminderSuggestion removes a plant's suggestion.
func (o *Ops) DeleteReminderSuggestion(ctx context.Context, plantID int64) error {
	if err := o.deleteWhere(ctx, "reminder_suggestions", "plant_id", plantID); err != nil {
		return fmt.Errorf("delete reminder suggestion for plant %d: %w", plantID, err)
	}
	return nil
}

// GetAllReminderSuggestions returns every suggestion ordered by plant.
func (o *Ops) GetAllReminderSuggestions(ctx context.Context) ([]*model.ReminderSuggestion, error) {
	return o.listSuggestions(ctx, suggestionSelect+" ORDER BY plant_id")
}

// GetReminderSuggestionsForPlant returns the plant's suggestion, if any, as a
// zero- or one-element slice.
func (o *Ops) GetReminderSuggestionsForPlant(ctx context.Context, plantID int64) ([]*model.ReminderSuggestion, error) {
	return o.listSuggestions(ctx, suggestionSelect+" WHERE plant_id = ?", plantID)
}

func (o *Ops) listSuggestions(ctx context.Context, query string, args ...any) ([]*model.ReminderSuggestion, error) {
	rows, err := o.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reminder suggestions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*model.ReminderSuggestion
	for rows.Next() {
		var s model.ReminderSuggestion
		var evaluated int64
		if err := rows.Scan(&s.PlantID, &s.IntervalDays, &evaluated, &s.Confidence, &s.Explanation); err != nil {
			return nil, fmt.Errorf("scan reminder suggestion: %w", err)
		}
		s.LastEvaluatedAt = fromMillis(evaluated)
		out = append(out, &s)
	}
	return out, rows.Err()
}
