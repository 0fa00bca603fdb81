// Package model defines the plant-care entities persisted by sprout.
package model

import "time"

// Plant is a tracked plant.
type Plant struct {
	ID           int64
	Name         string
	Description  string
	Species      string
	LocationHint string
	AcquiredAt   time.Time
	// PhotoRef is an opaque photo store reference. Empty means no photo.
	PhotoRef     string
	LedProfileID *int64
}

// Measurement is a single light reading for a plant.
type Measurement struct {
	ID        int64
	PlantID   int64
	Timestamp time.Time
	Lux       float64
	PPFD      *float64
	DLI       *float64
	Note      string
}

// DiaryEntry is a free-form care note, optionally with a photo.
type DiaryEntry struct {
	ID        int64
	PlantID   int64
	Timestamp time.Time
	Type      string
	Note      string
	PhotoRef  string
}

// Reminder is a one-shot care reminder.
type Reminder struct {
	ID        int64
	PlantID   int64
	TriggerAt time.Time
	Message   string
}

// ReminderSuggestion is the last evaluated watering interval for a plant.
// There is at most one suggestion per plant.
type ReminderSuggestion struct {
	PlantID         int64
	IntervalDays    int
	LastEvaluatedAt time.Time
	Confidence      float64
	Explanation     string
}

// Range is an optional closed interval.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// LightTarget holds the light requirements for one growth stage.
type LightTarget struct {
	PPFD Range
	DLI  Range
}

// WateringInfo describes how a species likes to be watered.
type WateringInfo struct {
	Frequency string
	Soil      string
	Tolerance string
}

// SpeciesTarget holds reference care targets for a species, keyed by SpeciesKey.
type SpeciesTarget struct {
	SpeciesKey     string
	CommonName     string
	ScientificName string
	Category       string
	Seedling       LightTarget
	Vegetative     LightTarget
	Flower         LightTarget
	Watering       WateringInfo
	Temperature    Range
	Humidity       Range
	GrowthHabit    string
	Toxic          *bool
	CareTips       []string
	Sources        []string
}

// ScheduleEntry is one lighting window of an LED profile.
type ScheduleEntry struct {
	Start            string `json:"start"`
	End              string `json:"end"`
	IntensityPercent int    `json:"intensityPercent"`
}

// LedProfile describes a grow light and its schedule.
type LedProfile struct {
	ID                 int64
	Name               string
	Type               string
	MountingDistanceCm *float64
	CalibrationFactors map[string]float64
	Schedule           []ScheduleEntry
}

// LedProfileAssociation links a plant to an LED profile.
type LedProfileAssociation struct {
	PlantID      int64
	LedProfileID int64
}

// EnvironmentEntry is a snapshot of growing conditions for a plant.
type EnvironmentEntry struct {
	ID              int64
	PlantID         int64
	Timestamp       time.Time
	Temperature     *float64
	Humidity        *float64
	SoilMoisture    *float64
	Height          *float64
	Width           *float64
	NaturalDLI      *float64
	ArtificialDLI   *float64
	ArtificialHours *float64
	Notes           string
	PhotoRef        string
}

// PlantPhoto is a gallery photo attached to a plant.
type PlantPhoto struct {
	ID        int64
	PlantID   int64
	PhotoRef  string
	CreatedAt time.Time
}
