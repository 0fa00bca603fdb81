package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/randalmurphal/sprout/internal/model"
)

// Measurements, diary entries, environment entries and reminders are the
// per-plant journal: timestamped rows owned by exactly one plant.

var measurementCols = []string{"plant_id", "timestamp", "lux", "ppfd", "dli", "note"}

const measurementSelect = `SELECT id, plant_id, timestamp, lux, ppfd, dli, note FROM measurements`

func measurementArgs(m *model.Measurement) []any {
	return []any{m.PlantID, toMillis(m.Timestamp), m.Lux, nullFloat(m.PPFD), nullFloat(m.DLI), m.Note}
}

// InsertMeasurement inserts a measurement and sets its ID.
func (o *Ops) InsertMeasurement(ctx context.Context, m *model.Measurement) error {
	id, err := o.insertRow(ctx, "measurements", m.ID, measurementCols, measurementArgs(m))
	if err != nil {
		return fmt.Errorf("insert measurement: %w", err)
	}
	m.ID = id
	return nil
}

// UpdateMeasurement overwrites a stored measurement.
func (o *Ops) UpdateMeasurement(ctx context.Context, m *model.Measurement) error {
	if err := o.updateRow(ctx, "measurements", "id", m.ID, measurementCols, measurementArgs(m)); err != nil {
		return fmt.Errorf("update measurement %d: %w", m.ID, err)
	}
	return nil
}

// DeleteMeasurement deletes a measurement.
func (o *Ops) DeleteMeasurement(ctx context.Context, id int64) error {
	if err := o.deleteWhere(ctx, "measurements", "id", id); err != nil {
		return fmt.Errorf("delete measurement %d: %w", id, err)
	}
	return nil
}

// GetAllMeasurements returns every measurement.
func (o *Ops) GetAllMeasurements(ctx context.Context) ([]*model.Measurement, error) {
	return o.listMeasurements(ctx, measurementSelect+" ORDER BY id")
}

// GetMeasurementsForPlant returns a plant's measurements, oldest first.
func (o *Ops) GetMeasurementsForPlant(ctx context.Context, plantID int64) ([]*model.Measurement, error) {
	return o.listMeasurements(ctx, measurementSelect+" WHERE plant_id = ? ORDER BY timestamp, id", plantID)
}

func (o *Ops) listMeasurements(ctx context.Context, query string, args ...any) ([]*model.Measurement, error) {
	rows, err := o.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list measurements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Measurement
	for rows.Next() {
		var m model.Measurement
		var ts int64
		var ppfd, dli sql.NullFloat64
		if err := rows.Scan(&m.ID, &m.PlantID, &ts, &m.Lux, &ppfd, &dli, &m.Note); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		m.Timestamp = fromMillis(ts)
		m.PPFD = floatPtr(ppfd)
		m.DLI = floatPtr(dli)
		out = append(out, &m)
	}
	return out, rows.Err()
}

var diaryCols = []string{"plant_id", "timestamp", "type", "note", "photo_ref"}

const diarySelect = `SELECT id, plant_id, timestamp, type, note, photo_ref FROM diary_entries`

func diaryArgs(d *model.DiaryEntry) []any {
	return []any{d.PlantID, toMillis(d.Timestamp), d.Type, d.Note, d.PhotoRef}
}

// InsertDiaryEntry inserts a diary entry and sets its ID.
func (o *Ops) InsertDiaryEntry(ctx context.Context, d *model.DiaryEntry) error {
	id, err := o.insertRow(ctx, "diary_entries", d.ID, diaryCols, diaryArgs(d))
	if err != nil {
		return fmt.Errorf("insert diary entry: %w", err)
	}
	d.ID = id
	return nil
}

// UpdateDiaryEntry overwrites a stored diary entry.
func (o *Ops) UpdateDiaryEntry(ctx context.Context, d *model.DiaryEntry) error {
	if err := o.updateRow(ctx, "diary_entries", "id", d.ID, diaryCols, diaryArgs(d)); err != nil {
		return fmt.Errorf("update diary entry %d: %w", d.ID, err)
	}
	return nil
}

// DeleteDiaryEntry deletes a diary entry.
func (o *Ops) DeleteDiaryEntry(ctx context.Context, id int64) error {
	if err := o.deleteWhere(ctx, "diary_entries", "id", id); err != nil {
		return fmt.Errorf("delete diary entry %d: %w", id, err)
	}
	return nil
}

// GetAllDiaryEntries returns every diary entry.
func (o *Ops) GetAllDiaryEntries(ctx context.Context) ([]*model.DiaryEntry, error) {
	return o.listDiaryEntries(ctx, diarySelect+" ORDER BY id")
}

// GetDiaryEntriesForPlant returns a plant's diary, oldest first.
func (o *Ops) GetDiaryEntriesForPlant(ctx context.Context, plantID int64) ([]*model.DiaryEntry, error) {
	return o.listDiaryEntries(ctx, diarySelect+" WHERE plant_id = ? ORDER BY timestamp, id", plantID)
}

func (o *Ops) listDiaryEntries(ctx context.Context, query string, args ...any) ([]*model.DiaryEntry, error) {
	rows, err := o.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list diary entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*model.DiaryEntry
	for rows.Next() {
		var d model.DiaryEntry
		var ts int64
		if err := rows.Scan(&d.ID, &d.PlantID, &ts, &d.Type, &d.Note, &d.PhotoRef); err != nil {
			return nil, fmt.Errorf("scan diary entry: %w", err)
		}
		d.Timestamp = fromMillis(ts)
		out = append(out, &d)
	}
	return out, rows.Err()
}

var environmentCols = []string{
	"plant_id", "timestamp", "temperature", "humidity", "soil_moisture", "height", "width",
	"natural_dli", "artificial_dli", "artificial_hours", "notes", "photo_ref",
}

const environmentSelect = `SELECT id, plant_id, timestamp, temperature, humidity, soil_moisture, height, width,
	natural_dli, artificial_dli, artificial_hours, notes, photo_ref FROM environment_entries`

func environmentArgs(e *model.EnvironmentEntry) []any {
	return []any{
		e.PlantID, toMillis(e.Timestamp), nullFloat(e.Temperature), nullFloat(e.Humidity),
		nullFloat(e.SoilMoisture), nullFloat(e.Height), nullFloat(e.Width), nullFloat(e.NaturalDLI),
		nullFloat(e.ArtificialDLI), nullFloat(e.ArtificialHours), e.Notes, e.PhotoRef,
	}
}

// InsertEnvironmentEntry inserts an environment entry and sets its ID.
func (o *Ops) InsertEnvironmentEntry(ctx context.Context, e *model.EnvironmentEntry) error {
	id, err := o.insertRow(ctx, "environment_entries", e.ID, environmentCols, environmentArgs(e))
	if err != nil {
		return fmt.Errorf("insert environment entry: %w", err)
	}
	e.ID = id
	return nil
}

// UpdateEnvironmentEntry overwrites a stored environment entry.
func (o *Ops) UpdateEnvironmentEntry(ctx context.Context, e *model.EnvironmentEntry) error {
	if err := o.updateRow(ctx, "environment_entries", "id", e.ID, environmentCols, environmentArgs(e)); err != nil {
		return fmt.Errorf("update environment entry %d: %w", e.ID, err)
	}
	return nil
}

// DeleteEnvironmentEntry deletes an environment entry.
func (o *Ops) DeleteEnvironmentEntry(ctx context.Context, id int64) error {
	if err := o.deleteWhere(ctx, "environment_entries", "id", id); err != nil {
		return fmt.Errorf("delete environment entry %d: %w", id, err)
	}
	return nil
}

// GetAllEnvironmentEntries returns every environment entry.
func (o *Ops) GetAllEnvironmentEntries(ctx context.Context) ([]*model.EnvironmentEntry, error) {
	return o.listEnvironmentEntries(ctx, environmentSelect+" ORDER BY id")
}

// GetEnvironmentEntriesForPlant returns a plant's environment log, oldest first.
func (o *Ops) GetEnvironmentEntriesForPlant(ctx context.Context, plantID int64) ([]*model.EnvironmentEntry, error) {
	return o.listEnvironmentEntries(ctx, environmentSelect+" WHERE plant_id = ? ORDER BY timestamp, id", plantID)
}

func (o *Ops) listEnvironmentEntries(ctx context.Context, query string, args ...any) ([]*model.EnvironmentEntry, error) {
	rows, err := o.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list environment entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*model.EnvironmentEntry
	for rows.Next() {
		var e model.EnvironmentEntry
		var ts int64
		var temp, hum, soil, height, width, natural, artificial, hours sql.NullFloat64
		if err := rows.Scan(&e.ID, &e.PlantID, &ts, &temp, &hum, &soil, &height, &width,
			&natural, &artificial, &hours, &e.Notes, &e.PhotoRef); err != nil {
			return nil, fmt.Errorf("scan environment entry: %w", err)
		}
		e.Timestamp = fromMillis(ts)
		e.Temperature = floatPtr(temp)
		e.Humidity = floatPtr(hum)
		e.SoilMoisture = floatPtr(soil)
		e.Height = floatPtr(height)
		e.Width = floatPtr(width)
		e.NaturalDLI = floatPtr(natural)
		e.ArtificialDLI = floatPtr(artificial)
		e.ArtificialHours = floatPtr(hours)
		out = append(out, &e)
	}
	return out, rows.Err()
}

var reminderCols = []string{"plant_id", "trigger_at", "message"}

const reminderSelect = `SELECT id, plant_id, trigger_at, message FROM reminders`

// InsertReminder inserts a reminder and sets its ID.
func (o *Ops) InsertReminder(ctx context.Context, r *model.Reminder) error {
	id, err := o.insertRow(ctx, "reminders", r.ID, reminderCols, []any{r.PlantID, toMillis(r.TriggerAt), r.Message})
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}
	r.ID = id
	return nil
}

// UpdateReminder overwrites a stored reminder.
func (o *Ops) UpdateReminder(ctx context.Context, r *model.Reminder) error {
	if err := o.updateRow(ctx, "reminders", "id", r.ID, reminderCols, []any{r.PlantID, toMillis(r.TriggerAt), r.Message}); err != nil {
		return fmt.Errorf("update reminder %d: %w", r.ID, err)
	}
	return nil
}

// DeleteReminder deletes a reminder.
func (o *Ops) DeleteReminder(ctx context.Context, id int64) error {
	if err := o.deleteWhere(ctx, "reminders", "id", id); err != nil {
		return fmt.Errorf("delete reminder %d: %w", id, err)
	}
	return nil
}

// GetAllReminders returns every reminder.
func (o *Ops) GetAllReminders(ctx context.Context) ([]*model.Reminder, error) {
	return o.listReminders(ctx, reminderSelect+" ORDER BY id")
}

// GetRemindersForPlant returns a plant's reminders by trigger time.
func (o *Ops) GetRemindersForPlant(ctx context.Context, plantID int64) ([]*model.Reminder, error) {
	return o.listReminders(ctx, reminderSelect+" WHERE plant_id = ? ORDER BY trigger_at, id", plantID)
}

func (o *Ops) listReminders(ctx context.Context, query string, args ...any) ([]*model.Reminder, error) {
	rows, err := o.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Reminder
	for rows.Next() {
		var r model.Reminder
		var trigger int64
		if err := rows.Scan(&r.ID, &r.PlantID, &trigger, &r.Message); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		r.TriggerAt = fromMillis(trigger)
		out = append(out, &r)
	}
	return out, rows.Err()
}
