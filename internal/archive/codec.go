package archive

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/randalmurphal/sprout/internal/model"
)

// Column layouts for version 1. A new column means a version bump and a
// default for archives written under the older version.
var (
	ledProfileColumns  = []string{"id", "name", "type", "mountingDistanceCm", "calibrationFactors", "schedule"}
	plantColumns       = []string{"id", "name", "description", "species", "locationHint", "acquiredAt", "photo", "ledProfileId"}
	plantPhotoColumns  = []string{"id", "plantId", "photo", "createdAt"}
	measurementColumns = []string{"id", "plantId", "timestamp", "lux", "ppfd", "dli", "note"}
	environmentColumns = []string{
		"id", "plantId", "timestamp", "temperature", "humidity", "soilMoisture", "height", "width",
		"naturalDli", "artificialDli", "artificialHours", "notes", "photo",
	}
	diaryColumns       = []string{"id", "plantId", "timestamp", "type", "note", "photo"}
	reminderColumns    = []string{"id", "plantId", "triggerAt", "message"}
	suggestionColumns  = []string{"plantId", "intervalDays", "lastEvaluatedAt", "confidence", "explanation"}
	associationColumns = []string{"plantId", "ledProfileId"}
	speciesColumns     = []string{
		"speciesKey", "commonName", "scientificName", "category",
		"seedlingPpfdMin", "seedlingPpfdMax", "seedlingDliMin", "seedlingDliMax",
		"vegetativePpfdMin", "vegetativePpfdMax", "vegetativeDliMin", "vegetativeDliMax",
		"flowerPpfdMin", "flowerPpfdMax", "flowerDliMin", "flowerDliMax",
		"wateringFrequency", "wateringSoil", "wateringTolerance",
		"temperatureMin", "temperatureMax", "humidityMin", "humidityMax",
		"growthHabit", "toxic", "careTips", "sources",
	}
)

// RowError is a recoverable problem confined to one row.
type RowError struct {
	Reason string
}

func (e *RowError) Error() string { return e.Reason }

func rowErr(reason string) *RowError { return &RowError{Reason: reason} }

// Row failure reasons.
const (
	reasonInvalidID         = "invalid id"
	reasonInvalidPlantID    = "invalid plant id"
	reasonUnknownPlantID    = "unknown plant id"
	reasonInvalidLedID      = "invalid LED profile id"
	reasonUnknownLedID      = "unknown LED profile id"
	reasonInvalidTimestamp  = "invalid timestamp"
	reasonMissingAttachment = "missing photo attachment"
	reasonDuplicatePlantID  = "duplicate plant id"
	reasonDuplicateID       = "duplicate id"
	reasonMalformedRecord   = "malformed record"
)

func columnCountReason(want, got int) string {
	return fmt.Sprintf("expected %d columns, got %d", want, got)
}

// --- encoding ---

func formatID(id int64) string { return strconv.FormatInt(id, 10) }

func formatTime(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func formatOptFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

func formatOptID(id *int64) string {
	if id == nil {
		return ""
	}
	return formatID(*id)
}

func formatOptBool(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

// formatJSON renders v as a JSON cell. NaN or infinite floats fail.
func formatJSON(column string, v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", column, err)
	}
	return string(b), nil
}

func encodeLedProfile(l *model.LedProfile) ([]string, error) {
	factors := l.CalibrationFactors
	if factors == nil {
		factors = map[string]float64{}
	}
	schedule := l.Schedule
	if schedule == nil {
		schedule = []model.ScheduleEntry{}
	}
	factorsCell, err := formatJSON("calibrationFactors", factors)
	if err != nil {
		return nil, err
	}
	scheduleCell, err := formatJSON("schedule", schedule)
	if err != nil {
		return nil, err
	}
	return []string{formatID(l.ID), l.Name, l.Type, formatOptFloat(l.MountingDistanceCm), factorsCell, scheduleCell}, nil
}

func encodePlant(p *model.Plant, photo string) []string {
	return []string{
		formatID(p.ID), p.Name, p.Description, p.Species, p.LocationHint,
		formatTime(p.AcquiredAt), photo, formatOptID(p.LedProfileID),
	}
}

func encodePlantPhoto(p *model.PlantPhoto, photo string) []string {
	return []string{formatID(p.ID), formatID(p.PlantID), photo, formatTime(p.CreatedAt)}
}

func encodeMeasurement(m *model.Measurement) []string {
	return []string{
		formatID(m.ID), formatID(m.PlantID), formatTime(m.Timestamp), formatFloat(m.Lux),
		formatOptFloat(m.PPFD), formatOptFloat(m.DLI), m.Note,
	}
}

func encodeEnvironmentEntry(e *model.EnvironmentEntry, photo string) []string {
	return []string{
		formatID(e.ID), formatID(e.PlantID), formatTime(e.Timestamp),
		formatOptFloat(e.Temperature), formatOptFloat(e.Humidity), formatOptFloat(e.SoilMoisture),
		formatOptFloat(e.Height), formatOptFloat(e.Width), formatOptFloat(e.NaturalDLI),
		formatOptFloat(e.ArtificialDLI), formatOptFloat(e.ArtificialHours), e.Notes, photo,
	}
}

func encodeDiaryEntry(d *model.DiaryEntry, photo string) []string {
	return []string{formatID(d.ID), formatID(d.PlantID), formatTime(d.Timestamp), d.Type, d.Note, photo}
}

func encodeReminder(r *model.Reminder) []string {
	return []string{formatID(r.ID), formatID(r.PlantID), formatTime(r.TriggerAt), r.Message}
}

func encodeReminderSuggestion(s *model.ReminderSuggestion) []string {
	return []string{
		formatID(s.PlantID), strconv.Itoa(s.IntervalDays), formatTime(s.LastEvaluatedAt),
		formatFloat(s.Confidence), s.Explanation,
	}
}

func encodeLedProfileAssociation(a *model.LedProfileAssociation) []string {
	return []string{formatID(a.PlantID), formatID(a.LedProfileID)}
}

func encodeLight(l model.LightTarget) []string {
	return []string{
		formatOptFloat(l.PPFD.Min), formatOptFloat(l.PPFD.Max),
		formatOptFloat(l.DLI.Min), formatOptFloat(l.DLI.Max),
	}
}

func encodeSpeciesTarget(s *model.SpeciesTarget) ([]string, error) {
	tips := s.CareTips
	if tips == nil {
		tips = []string{}
	}
	sources := s.Sources
	if sources == nil {
		sources = []string{}
	}
	tipsCell, err := formatJSON("careTips", tips)
	if err != nil {
		return nil, err
	}
	sourcesCell, err := formatJSON("sources", sources)
	if err != nil {
		return nil, err
	}
	row := []string{s.SpeciesKey, s.CommonName, s.ScientificName, s.Category}
	row = append(row, encodeLight(s.Seedling)...)
	row = append(row, encodeLight(s.Vegetative)...)
	row = append(row, encodeLight(s.Flower)...)
	return append(row,
		s.Watering.Frequency, s.Watering.Soil, s.Watering.Tolerance,
		formatOptFloat(s.Temperature.Min), formatOptFloat(s.Temperature.Max),
		formatOptFloat(s.Humidity.Min), formatOptFloat(s.Humidity.Max),
		s.GrowthHabit, formatOptBool(s.Toxic), tipsCell, sourcesCell,
	), nil
}

// --- decoding ---

// cells reads typed values out of one row. The first failure sticks; later
// reads are no-ops so decoders can read every column and check err once.
type cells struct {
	row  []string
	cols []string
	err  *RowError
}

func newCells(row, cols []string) *cells {
	c := &cells{row: row, cols: cols}
	if len(row) != len(cols) {
		c.err = rowErr(columnCountReason(len(cols), len(row)))
	}
	return c
}

func (c *cells) fail(reason string) {
	if c.err == nil {
		c.err = rowErr(reason)
	}
}

func (c *cells) text(i int) string {
	if c.err != nil {
		return ""
	}
	return c.row[i]
}

func (c *cells) int64With(i int, reason string) int64 {
	if c.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(strings.TrimSpace(c.row[i]), 10, 64)
	if err != nil {
		c.fail(reason)
	}
	return v
}

func (c *cells) id(i int) int64 { return c.int64With(i, reasonInvalidID) }

func (c *cells) plantID(i int) int64 { return c.int64With(i, reasonInvalidPlantID) }

func (c *cells) ledID(i int) int64 { return c.int64With(i, reasonInvalidLedID) }

func (c *cells) optLedID(i int) *int64 {
	if c.err != nil || strings.TrimSpace(c.row[i]) == "" {
		return nil
	}
	v := c.ledID(i)
	if c.err != nil {
		return nil
	}
	return &v
}

func (c *cells) timestamp(i int) time.Time {
	ms := c.int64With(i, reasonInvalidTimestamp)
	if c.err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func (c *cells) number(i int) float64 {
	if c.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(c.row[i]), 64)
	if err != nil {
		c.fail("invalid number in " + c.cols[i])
	}
	return v
}

func (c *cells) optNumber(i int) *float64 {
	if c.err != nil || strings.TrimSpace(c.row[i]) == "" {
		return nil
	}
	v := c.number(i)
	if c.err != nil {
		return nil
	}
	return &v
}

func (c *cells) integer(i int) int {
	if c.err != nil {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(c.row[i]))
	if err != nil {
		c.fail("invalid number in " + c.cols[i])
	}
	return v
}

func (c *cells) optBool(i int) *bool {
	if c.err != nil || strings.TrimSpace(c.row[i]) == "" {
		return nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(c.row[i]))
	if err != nil {
		c.fail("invalid " + c.cols[i])
		return nil
	}
	return &v
}

func (c *cells) jsonInto(i int, v any) {
	if c.err != nil || strings.TrimSpace(c.row[i]) == "" {
		return
	}
	if err := json.Unmarshal([]byte(c.row[i]), v); err != nil {
		c.fail("invalid " + c.cols[i])
	}
}

func (c *cells) done() error {
	if c.err != nil {
		return c.err
	}
	return nil
}

// Decoders return entities carrying archive-time ids and, in photo columns,
// the attachment entry name. Remapping happens in the section parsers.

func decodeLedProfile(row []string) (*model.LedProfile, error) {
	c := newCells(row, ledProfileColumns)
	l := &model.LedProfile{
		ID:                 c.id(0),
		Name:               c.text(1),
		Type:               c.text(2),
		MountingDistanceCm: c.optNumber(3),
	}
	c.jsonInto(4, &l.CalibrationFactors)
	c.jsonInto(5, &l.Schedule)
	return l, c.done()
}

func decodePlant(row []string) (*model.Plant, error) {
	c := newCells(row, plantColumns)
	p := &model.Plant{
		ID:           c.id(0),
		Name:         c.text(1),
		Description:  c.text(2),
		Species:      c.text(3),
		LocationHint: c.text(4),
		AcquiredAt:   c.timestamp(5),
		PhotoRef:     c.text(6),
		LedProfileID: c.optLedID(7),
	}
	return p, c.done()
}

func decodePlantPhoto(row []string) (*model.PlantPhoto, error) {
	c := newCells(row, plantPhotoColumns)
	p := &model.PlantPhoto{
		ID:        c.id(0),
		PlantID:   c.plantID(1),
		PhotoRef:  c.text(2),
		CreatedAt: c.timestamp(3),
	}
	return p, c.done()
}

func decodeMeasurement(row []string) (*model.Measurement, error) {
	c := newCells(row, measurementColumns)
	m := &model.Measurement{
		ID:        c.id(0),
		PlantID:   c.plantID(1),
		Timestamp: c.timestamp(2),
		Lux:       c.number(3),
		PPFD:      c.optNumber(4),
		DLI:       c.optNumber(5),
		Note:      c.text(6),
	}
	return m, c.done()
}

func decodeEnvironmentEntry(row []string) (*model.EnvironmentEntry, error) {
	c := newCells(row, environmentColumns)
	e := &model.EnvironmentEntry{
		ID:              c.id(0),
		PlantID:         c.plantID(1),
		Timestamp:       c.timestamp(2),
		Temperature:     c.optNumber(3),
		Humidity:        c.optNumber(4),
		SoilMoisture:    c.optNumber(5),
		Height:          c.optNumber(6),
		Width:           c.optNumber(7),
		NaturalDLI:      c.optNumber(8),
		ArtificialDLI:   c.optNumber(9),
		ArtificialHours: c.optNumber(10),
		Notes:           c.text(11),
		PhotoRef:        c.text(12),
	}
	return e, c.done()
}

func decodeDiaryEntry(row []string) (*model.DiaryEntry, error) {
	c := newCells(row, diaryColumns)
	d := &model.DiaryEntry{
		ID:        c.id(0),
		PlantID:   c.plantID(1),
		Timestamp: c.timestamp(2),
		Type:      c.text(3),
		Note:      c.text(4),
		PhotoRef:  c.text(5),
	}
	return d, c.done()
}

func decodeReminder(row []string) (*model.Reminder, error) {
	c := newCells(row, reminderColumns)
	r := &model.Reminder{
		ID:        c.id(0),
		PlantID:   c.plantID(1),
		TriggerAt: c.timestamp(2),
		Message:   c.text(3),
	}
	return r, c.done()
}

func decodeReminderSuggestion(row []string) (*model.ReminderSuggestion, error) {
	c := newCells(row, suggestionColumns)
	s := &model.ReminderSuggestion{
		PlantID:         c.plantID(0),
		IntervalDays:    c.integer(1),
		LastEvaluatedAt: c.timestamp(2),
		Confidence:      c.number(3),
		Explanation:     c.text(4),
	}
	return s, c.done()
}

func decodeLedProfileAssociation(row []string) (*model.LedProfileAssociation, error) {
	c := newCells(row, associationColumns)
	a := &model.LedProfileAssociation{
		PlantID:      c.plantID(0),
		LedProfileID: c.ledID(1),
	}
	return a, c.done()
}

func decodeSpeciesTarget(row []string) (*model.SpeciesTarget, error) {
	c := newCells(row, speciesColumns)
	light := func(i int) model.LightTarget {
		return model.LightTarget{
			PPFD: model.Range{Min: c.optNumber(i), Max: c.optNumber(i + 1)},
			DLI:  model.Range{Min: c.optNumber(i + 2), Max: c.optNumber(i + 3)},
		}
	}
	s := &model.SpeciesTarget{
		SpeciesKey:     c.text(0),
		CommonName:     c.text(1),
		ScientificName: c.text(2),
		Category:       c.text(3),
		Seedling:       light(4),
		Vegetative:     light(8),
		Flower:         light(12),
		Watering: model.WateringInfo{
			Frequency: c.text(16),
			Soil:      c.text(17),
			Tolerance: c.text(18),
		},
		Temperature: model.Range{Min: c.optNumber(19), Max: c.optNumber(20)},
		Humidity:    model.Range{Min: c.optNumber(21), Max: c.optNumber(22)},
		GrowthHabit: c.text(23),
		Toxic:       c.optBool(24),
	}
	c.jsonInto(25, &s.CareTips)
	c.jsonInto(26, &s.Sources)
	if c.err == nil && strings.TrimSpace(s.SpeciesKey) == "" {
		c.fail("invalid speciesKey")
	}
	return s, c.done()
}
