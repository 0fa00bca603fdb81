package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/randalmurphal/sprout/internal/model"
)

func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if db.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
	}

	var journalMode string
	if err := db.DB().QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %q, want wal", journalMode)
	}
}

func TestOpen_CreatesParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	db.Close()
}

func TestMigrate_Project(t *testing.T) {
	tmpDir := t.TempDir()

	db, err := Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if err := db.Migrate("project"); err != nil {
		t.Fatalf("Migrate project failed: %v", err)
	}

	for _, table := range clearOrder {
		var count int
		if err := db.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			t.Errorf("%s table not created: %v", table, err)
		}
	}

	// Run again - should be idempotent
	if err := db.Migrate("project"); err != nil {
		t.Fatalf("Second Migrate failed: %v", err)
	}
}

func TestOpenProject_File(t *testing.T) {
	tmpDir := t.TempDir()

	pdb, err := OpenProject(tmpDir)
	if err != nil {
		t.Fatalf("OpenProject failed: %v", err)
	}
	defer pdb.Close()

	if want := filepath.Join(tmpDir, "sprout.db"); pdb.Path() != want {
		t.Errorf("Path() = %q, want %q", pdb.Path(), want)
	}
}

func ptr[T any](v T) *T { return &v }

func TestPlantCRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pdb := NewTestProjectDB(t)

	acquired := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	p := &model.Plant{Name: "Monstera", Species: "monstera_deliciosa", AcquiredAt: acquired, PhotoRef: "abc.jpg"}
	if err := pdb.InsertPlant(ctx, p); err != nil {
		t.Fatalf("InsertPlant: %v", err)
	}
	if p.ID == 0 {
		t.Fatal("InsertPlant did not set ID")
	}

	got, err := pdb.GetPlant(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPlant: %v", err)
	}
	if got.Name != "Monstera" || !got.AcquiredAt.Equal(acquired) || got.PhotoRef != "abc.jpg" {
		t.Errorf("GetPlant = %+v", got)
	}
	if got.LedProfileID != nil {
		t.Errorf("LedProfileID = %v, want nil", *got.LedProfileID)
	}

	got.Description = "by the window"
	if err := pdb.UpdatePlant(ctx, got); err != nil {
		t.Fatalf("UpdatePlant: %v", err)
	}
	got, _ = pdb.GetPlant(ctx, p.ID)
	if got.Description != "by the window" {
		t.Errorf("Description = %q after update", got.Description)
	}

	if err := pdb.DeletePlant(ctx, p.ID); err != nil {
		t.Fatalf("DeletePlant: %v", err)
	}
	if _, err := pdb.GetPlant(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPlant after delete err = %v, want ErrNotFound", err)
	}
}

func TestUpdate_Missing(t *testing.T) {
	t.Parallel()
	pdb := NewTestProjectDB(t)

	err := pdb.UpdatePlant(context.Background(), &model.Plant{ID: 404, Name: "ghost"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdatePlant err = %v, want ErrNotFound", err)
	}
}

func TestInsert_ExplicitID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pdb := NewTestProjectDB(t)

	p := &model.Plant{ID: 42, Name: "Fern"}
	if err := pdb.InsertPlant(ctx, p); err != nil {
		t.Fatalf("InsertPlant: %v", err)
	}
	if p.ID != 42 {
		t.Errorf("ID = %d, want 42", p.ID)
	}

	next := &model.Plant{Name: "Cactus"}
	if err := pdb.InsertPlant(ctx, next); err != nil {
		t.Fatalf("InsertPlant: %v", err)
	}
	if next.ID <= 42 {
		t.Errorf("allocated ID = %d, want > 42", next.ID)
	}
}

func TestJournal_ForPlant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pdb := NewTestProjectDB(t)

	a := &model.Plant{Name: "A"}
	b := &model.Plant{Name: "B"}
	for _, p := range []*model.Plant{a, b} {
		if err := pdb.InsertPlant(ctx, p); err != nil {
			t.Fatalf("InsertPlant: %v", err)
		}
	}

	ts := time.UnixMilli(1700000000000).UTC()
	inserts := []error{
		pdb.InsertMeasurement(ctx, &model.Measurement{PlantID: a.ID, Timestamp: ts, Lux: 1200, PPFD: ptr(22.5)}),
		pdb.InsertMeasurement(ctx, &model.Measurement{PlantID: b.ID, Timestamp: ts, Lux: 300}),
		pdb.InsertDiaryEntry(ctx, &model.DiaryEntry{PlantID: a.ID, Timestamp: ts, Type: "watering", Note: "200ml"}),
		pdb.InsertEnvironmentEntry(ctx, &model.EnvironmentEntry{PlantID: a.ID, Timestamp: ts, Humidity: ptr(55.0)}),
		pdb.InsertReminder(ctx, &model.Reminder{PlantID: a.ID, TriggerAt: ts, Message: "water"}),
		pdb.InsertPlantPhoto(ctx, &model.PlantPhoto{PlantID: a.ID, PhotoRef: "p.jpg", CreatedAt: ts}),
	}
	for i, err := range inserts {
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	ms, err := pdb.GetMeasurementsForPlant(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetMeasurementsForPlant: %v", err)
	}
	if len(ms) != 1 || ms[0].Lux != 1200 || ms[0].PPFD == nil || *ms[0].PPFD != 22.5 || ms[0].DLI != nil {
		t.Errorf("measurements = %+v", ms)
	}

	envs, _ := pdb.GetEnvironmentEntriesForPlant(ctx, a.ID)
	if len(envs) != 1 || envs[0].Humidity == nil || envs[0].Temperature != nil {
		t.Errorf("environment entries = %+v", envs)
	}

	// Deleting a plant cascades to everything it owns.
	if err := pdb.DeletePlant(ctx, a.ID); err != nil {
		t.Fatalf("DeletePlant: %v", err)
	}
	all, _ := pdb.GetAllMeasurements(ctx)
	if len(all) != 1 || all[0].PlantID != b.ID {
		t.Errorf("measurements after cascade = %+v", all)
	}
	for name, n := range map[string]func() (int, error){
		"diary":     func() (int, error) { s, err := pdb.GetAllDiaryEntries(ctx); return len(s), err },
		"env":       func() (int, error) { s, err := pdb.GetAllEnvironmentEntries(ctx); return len(s), err },
		"reminders": func() (int, error) { s, err := pdb.GetAllReminders(ctx); return len(s), err },
		"photos":    func() (int, error) { s, err := pdb.GetAllPlantPhotos(ctx); return len(s), err },
	} {
		got, err := n()
		if err != nil || got != 0 {
			t.Errorf("%s after cascade = %d (err %v), want 0", name, got, err)
		}
	}
}

func TestLedProfile_JSONColumns(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pdb := NewTestProjectDB(t)

	l := &model.LedProfile{
		Name:               "Bar light",
		Type:               "full_spectrum",
		MountingDistanceCm: ptr(30.0),
		CalibrationFactors: map[string]float64{"ppfd": 0.0185},
		Schedule:           []model.ScheduleEntry{{Start: "06:00", End: "20:00", IntensityPercent: 80}},
	}
	if err := pdb.InsertLedProfile(ctx, l); err != nil {
		t.Fatalf("InsertLedProfile: %v", err)
	}

	got, err := pdb.GetLedProfile(ctx, l.ID)
	if err != nil {
		t.Fatalf("GetLedProfile: %v", err)
	}
	if got.CalibrationFactors["ppfd"] != 0.0185 {
		t.Errorf("CalibrationFactors = %v", got.CalibrationFactors)
	}
	if len(got.Schedule) != 1 || got.Schedule[0] != l.Schedule[0] {
		t.Errorf("Schedule = %+v", got.Schedule)
	}

	p := &model.Plant{Name: "Basil", LedProfileID: &l.ID}
	if err := pdb.InsertPlant(ctx, p); err != nil {
		t.Fatalf("InsertPlant: %v", err)
	}
	assoc := &model.LedProfileAssociation{PlantID: p.ID, LedProfileID: l.ID}
	if err := pdb.InsertLedProfileAssociation(ctx, assoc); err != nil {
		t.Fatalf("InsertLedProfileAssociation: %v", err)
	}
	if err := pdb.InsertLedProfileAssociation(ctx, assoc); err != nil {
		t.Fatalf("duplicate association should be a no-op: %v", err)
	}
	assocs, _ := pdb.GetLedProfileAssociationsForPlant(ctx, p.ID)
	if len(assocs) != 1 {
		t.Errorf("associations = %d, want 1", len(assocs))
	}

	// Deleting the profile clears the plant reference.
	if err := pdb.DeleteLedProfile(ctx, l.ID); err != nil {
		t.Fatalf("DeleteLedProfile: %v", err)
	}
	gotPlant, _ := pdb.GetPlant(ctx, p.ID)
	if gotPlant.LedProfileID != nil {
		t.Errorf("LedProfileID = %d after profile delete, want nil", *gotPlant.LedProfileID)
	}
}

func TestSpeciesTarget_Upsert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pdb := NewTestProjectDB(t)

	s := &model.SpeciesTarget{
		SpeciesKey: "ocimum_basilicum",
		CommonName: "Basil",
		Vegetative: model.LightTarget{PPFD: model.Range{Min: ptr(200.0), Max: ptr(400.0)}},
		Humidity:   model.Range{Min: ptr(40.0)},
		Toxic:      ptr(false),
		CareTips:   []string{"pinch flowers"},
	}
	if err := pdb.UpsertSpeciesTarget(ctx, s); err != nil {
		t.Fatalf("UpsertSpeciesTarget: %v", err)
	}

	s.CommonName = "Sweet basil"
	if err := pdb.UpsertSpeciesTarget(ctx, s); err != nil {
		t.Fatalf("second UpsertSpeciesTarget: %v", err)
	}

	all, err := pdb.GetAllSpeciesTargets(ctx)
	if err != nil {
		t.Fatalf("GetAllSpeciesTargets: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("species targets = %d, want 1", len(all))
	}
	got := all[0]
	if got.CommonName != "Sweet basil" {
		t.Errorf("CommonName = %q", got.CommonName)
	}
	if got.Vegetative.PPFD.Max == nil || *got.Vegetative.PPFD.Max != 400 || got.Seedling.PPFD.Min != nil {
		t.Errorf("Vegetative = %+v, Seedling = %+v", got.Vegetative, got.Seedling)
	}
	if got.Humidity.Max != nil || got.Toxic == nil || *got.Toxic {
		t.Errorf("Humidity = %+v Toxic = %v", got.Humidity, got.Toxic)
	}
	if len(got.CareTips) != 1 || len(got.Sources) != 0 {
		t.Errorf("CareTips = %v Sources = %v", got.CareTips, got.Sources)
	}

	if _, err := pdb.GetSpeciesTarget(ctx, "unknown"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSpeciesTarget(unknown) err = %v", err)
	}
}

func TestReminderSuggestion_OnePerPlant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pdb := NewTestProjectDB(t)

	p := &model.Plant{Name: "Pothos"}
	if err := pdb.InsertPlant(ctx, p); err != nil {
		t.Fatalf("InsertPlant: %v", err)
	}
	for _, days := range []int{5, 7} {
		s := &model.ReminderSuggestion{PlantID: p.ID, IntervalDays: days, Confidence: 0.8}
		if err := pdb.UpsertReminderSuggestion(ctx, s); err != nil {
			t.Fatalf("UpsertReminderSuggestion: %v", err)
		}
	}

	got, err := pdb.GetReminderSuggestionsForPlant(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetReminderSuggestionsForPlant: %v", err)
	}
	if len(got) != 1 || got[0].IntervalDays != 7 {
		t.Errorf("suggestions = %+v", got)
	}
}

func TestRunInTx_Rollback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pdb := NewTestProjectDB(t)

	boom := errors.New("boom")
	err := pdb.RunInTx(ctx, func(tx *Ops) error {
		if err := tx.InsertPlant(ctx, &model.Plant{Name: "Doomed"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunInTx err = %v, want boom", err)
	}

	plants, _ := pdb.GetAllPlants(ctx)
	if len(plants) != 0 {
		t.Errorf("plants after rollback = %d, want 0", len(plants))
	}
}

func TestClearAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pdb := NewTestProjectDB(t)

	l := &model.LedProfile{Name: "L"}
	if err := pdb.InsertLedProfile(ctx, l); err != nil {
		t.Fatalf("InsertLedProfile: %v", err)
	}
	p := &model.Plant{Name: "P", LedProfileID: &l.ID}
	if err := pdb.InsertPlant(ctx, p); err != nil {
		t.Fatalf("InsertPlant: %v", err)
	}
	if err := pdb.UpsertSpeciesTarget(ctx, &model.SpeciesTarget{SpeciesKey: "k"}); err != nil {
		t.Fatalf("UpsertSpeciesTarget: %v", err)
	}

	if err := pdb.RunInTx(ctx, func(tx *Ops) error { return tx.ClearAll(ctx) }); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}

	plants, _ := pdb.GetAllPlants(ctx)
	leds, _ := pdb.GetAllLedProfiles(ctx)
	species, _ := pdb.GetAllSpeciesTargets(ctx)
	if len(plants)+len(leds)+len(species) != 0 {
		t.Errorf("rows left after ClearAll: %d plants, %d leds, %d species", len(plants), len(leds), len(species))
	}
}

func TestPostgres_PlantRoundTrip(t *testing.T) {
	pdb := NewTestPostgresProjectDB(t)
	ctx := context.Background()

	p := &model.Plant{ID: 7, Name: "Aloe", AcquiredAt: time.UnixMilli(1700000000000).UTC()}
	if err := pdb.InsertPlant(ctx, p); err != nil {
		t.Fatalf("InsertPlant: %v", err)
	}
	next := &model.Plant{Name: "Jade"}
	if err := pdb.InsertPlant(ctx, next); err != nil {
		t.Fatalf("InsertPlant after explicit id: %v", err)
	}
	if next.ID <= 7 {
		t.Errorf("allocated ID = %d, want > 7", next.ID)
	}
}
