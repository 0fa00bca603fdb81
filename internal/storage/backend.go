// Package storage provides the storage gateway used by the backup engine.
//
// Store is the set of entity operations. Gateway adds a transactional unit of
// work: WithTx hands the callback a Store bound to one transaction that is
// committed when the callback returns nil and rolled back otherwise.
package storage

import (
	"context"

	"github.com/randalmurphal/sprout/internal/model"
)

// Store defines the entity operations of the plant-care dataset.
type Store interface {
	// Plants
	GetAllPlants(ctx context.Context) ([]*model.Plant, error)
	GetPlant(ctx context.Context, id int64) (*model.Plant, error)
	InsertPlant(ctx context.Context, p *model.Plant) error
	UpdatePlant(ctx context.Context, p *model.Plant) error
	DeletePlant(ctx context.Context, id int64) error

	// Plant photos
	GetAllPlantPhotos(ctx context.Context) ([]*model.PlantPhoto, error)
	GetPlantPhotosForPlant(ctx context.Context, plantID int64) ([]*model.PlantPhoto, error)
	InsertPlantPhoto(ctx context.Context, p *model.PlantPhoto) error
	UpdatePlantPhoto(ctx context.Context, p *model.PlantPhoto) error
	DeletePlantPhoto(ctx context.Context, id int64) error

	// Species targets, keyed by species key
	GetAllSpeciesTargets(ctx context.Context) ([]*model.SpeciesTarget, error)
	GetSpeciesTarget(ctx context.Context, key string) (*model.SpeciesTarget, error)
	UpsertSpeciesTarget(ctx context.Context, s *model.SpeciesTarget) error
	DeleteSpeciesTarget(ctx context.Context, key string) error

	// LED profiles
	GetAllLedProfiles(ctx context.Context) ([]*model.LedProfile, error)
	GetLedProfile(ctx context.Context, id int64) (*model.LedProfile, error)
	InsertLedProfile(ctx context.Context, l *model.LedProfile) error
	UpdateLedProfile(ctx context.Context, l *model.LedProfile) error
	DeleteLedProfile(ctx context.Context, id int64) error

	// LED profile associations
	GetAllLedProfileAssociations(ctx context.Context) ([]*model.LedProfileAssociation, error)
	GetLedProfileAssociationsForPlant(ctx context.Context, plantID int64) ([]*model.LedProfileAssociation, error)
	InsertLedProfileAssociation(ctx context.Context, a *model.LedProfileAssociation) error
	DeleteLedProfileAssociation(ctx context.Context, a *model.LedProfileAssociation) error

	// Measurements
	GetAllMeasurements(ctx context.Context) ([]*model.Measurement, error)
	GetMeasurementsForPlant(ctx context.Context, plantID int64) ([]*model.Measurement, error)
	InsertMeasurement(ctx context.Context, m *model.Measurement) error
	UpdateMeasurement(ctx context.Context, m *model.Measurement) error
	DeleteMeasurement(ctx context.Context, id int64) error

	// Environment entries
	GetAllEnvironmentEntries(ctx context.Context) ([]*model.EnvironmentEntry, error)
	GetEnvironmentEntriesForPlant(ctx context.Context, plantID int64) ([]*model.EnvironmentEntry, error)
	InsertEnvironmentEntry(ctx context.Context, e *model.EnvironmentEntry) error
	UpdateEnvironmentEntry(ctx context.Context, e *model.EnvironmentEntry) error
	DeleteEnvironmentEntry(ctx context.Context, id int64) error

	// Diary entries
	GetAllDiaryEntries(ctx context.Context) ([]*model.DiaryEntry, error)
	GetDiaryEntriesForPlant(ctx context.Context, plantID int64) ([]*model.DiaryEntry, error)
	InsertDiaryEntry(ctx context.Context, d *model.DiaryEntry) error
	UpdateDiaryEntry(ctx context.Context, d *model.DiaryEntry) error
	DeleteDiaryEntry(ctx context.Context, id int64) error

	// Reminders
	GetAllReminders(ctx context.Context) ([]*model.Reminder, error)
	GetRemindersForPlant(ctx context.Context, plantID int64) ([]*model.Reminder, error)
	InsertReminder(ctx context.Context, r *model.Reminder) error
	UpdateReminder(ctx context.Context, r *model.Reminder) error
	DeleteReminder(ctx context.Context, id int64) error

	// Reminder suggestions, at most one per plant
	GetAllReminderSuggestions(ctx context.Context) ([]*model.ReminderSuggestion, error)
	GetReminderSuggestionsForPlant(ctx context.Context, plantID int64) ([]*model.ReminderSuggestion, error)
	UpsertReminderSuggestion(ctx context.Context, s *model.ReminderSuggestion) error
	DeleteReminderSuggestion(ctx context.Context, plantID int64) error

	// ClearAll deletes every row of the dataset.
	ClearAll(ctx context.Context) error
}

// Gateway is a Store with a transactional unit of work.
// Implementations must be safe for concurrent access.
type Gateway interface {
	Store

	// WithTx runs fn against a Store bound to a single transaction.
	// Operations on the Gateway itself must not be used inside fn.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	Close() error
}
