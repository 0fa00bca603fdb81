package archive

import (
	"context"

	serrors "github.com/randalmurphal/sprout/internal/errors"
)

// SectionParser imports the rows of one section.
//
// Parse returns a *RowError when the row is skipped; the importer turns it
// into a warning and carries on. Any other error aborts the import.
type SectionParser interface {
	Name() string
	Category() string
	Columns() []string
	Parse(ctx context.Context, sc *SectionContext, row []string) error
}

type sectionParser struct {
	name     string
	category string
	columns  []string
	parse    func(ctx context.Context, sc *SectionContext, row []string) error
}

func (p *sectionParser) Name() string      { return p.name }
func (p *sectionParser) Category() string  { return p.category }
func (p *sectionParser) Columns() []string { return p.columns }

func (p *sectionParser) Parse(ctx context.Context, sc *SectionContext, row []string) error {
	return p.parse(ctx, sc, row)
}

// Warning categories.
const (
	categoryPlants                 = "plants"
	categoryPlantPhotos            = "plant photos"
	categorySpeciesTargets         = "species targets"
	categoryLedProfiles            = "led profiles"
	categoryMeasurements           = "measurements"
	categoryEnvironmentEntries     = "environment entries"
	categoryDiaryEntries           = "diary entries"
	categoryReminders              = "reminders"
	categoryReminderSuggestions    = "reminder suggestions"
	categoryLedProfileAssociations = "led profile associations"
)

// sectionParsers is the closed set of parsers, keyed by section name.
var sectionParsers = map[string]SectionParser{
	SectionPlants:                 &sectionParser{SectionPlants, categoryPlants, plantColumns, parsePlant},
	SectionPlantPhotos:            &sectionParser{SectionPlantPhotos, categoryPlantPhotos, plantPhotoColumns, parsePlantPhoto},
	SectionSpeciesTargets:         &sectionParser{SectionSpeciesTargets, categorySpeciesTargets, speciesColumns, parseSpeciesTarget},
	SectionLedProfiles:            &sectionParser{SectionLedProfiles, categoryLedProfiles, ledProfileColumns, parseLedProfile},
	SectionMeasurements:           &sectionParser{SectionMeasurements, categoryMeasurements, measurementColumns, parseMeasurement},
	SectionEnvironmentEntries:     &sectionParser{SectionEnvironmentEntries, categoryEnvironmentEntries, environmentColumns, parseEnvironmentEntry},
	SectionDiaryEntries:           &sectionParser{SectionDiaryEntries, categoryDiaryEntries, diaryColumns, parseDiaryEntry},
	SectionReminders:              &sectionParser{SectionReminders, categoryReminders, reminderColumns, parseReminder},
	SectionReminderSuggestions:    &sectionParser{SectionReminderSuggestions, categoryReminderSuggestions, suggestionColumns, parseReminderSuggestion},
	SectionLedProfileAssociations: &sectionParser{SectionLedProfileAssociations, categoryLedProfileAssociations, associationColumns, parseLedProfileAssociation},
}

// ParserFor returns the parser registered for a section name.
func ParserFor(name string) (SectionParser, bool) {
	p, ok := sectionParsers[name]
	return p, ok
}

func storageFailed(op string, err error) error {
	return serrors.ErrStorageFailed(op, err)
}

// attachPhoto swaps an attachment entry name for a restored photo reference.
// A missing attachment clears the reference and warns.
func attachPhoto(ctx context.Context, sc *SectionContext, category string, ref *string) error {
	if *ref == "" {
		return nil
	}
	restored, found, err := sc.restorePhoto(ctx, *ref)
	if err != nil {
		return err
	}
	if !found {
		sc.Warn(category, reasonMissingAttachment)
		*ref = ""
		return nil
	}
	*ref = restored
	return nil
}

func parsePlant(ctx context.Context, sc *SectionContext, row []string) error {
	p, err := decodePlant(row)
	if err != nil {
		return err
	}
	archived := p.ID
	if !sc.claimID(archived) {
		return rowErr(reasonDuplicatePlantID)
	}

	// The LED profile is linked once LedProfiles has been imported.
	led := p.LedProfileID
	p.LedProfileID = nil
	p.ID = sc.ownID(p.ID)

	if err := attachPhoto(ctx, sc, categoryPlants, &p.PhotoRef); err != nil {
		return err
	}
	if err := sc.store.InsertPlant(ctx, p); err != nil {
		return storageFailed("insert plant", err)
	}
	sc.PlantIDs[archived] = p.ID
	if led != nil {
		sc.pendingLeds = append(sc.pendingLeds, pendingLed{plant: p, archived: *led, row: sc.row})
	}
	sc.counts.Plants++
	return nil
}

// linkPlantLeds resolves the LED profile references deferred by parsePlant.
func linkPlantLeds(ctx context.Context, sc *SectionContext) error {
	for _, pl := range sc.pendingLeds {
		id, err := sc.led(pl.archived)
		if err != nil {
			sc.WarnRow(categoryPlants, pl.row, reasonUnknownLedID)
			continue
		}
		pl.plant.LedProfileID = &id
		if err := sc.store.UpdatePlant(ctx, pl.plant); err != nil {
			return storageFailed("link plant LED profile", err)
		}
	}
	sc.pendingLeds = nil
	return nil
}

func parsePlantPhoto(ctx context.Context, sc *SectionContext, row []string) error {
	p, err := decodePlantPhoto(row)
	if err != nil {
		return err
	}
	if !sc.claimID(p.ID) {
		return rowErr(reasonDuplicateID)
	}
	if p.PlantID, err = sc.plant(p.PlantID); err != nil {
		return err
	}
	p.ID = sc.ownID(p.ID)

	// A gallery photo without its bytes is nothing; skip the row.
	if p.PhotoRef == "" {
		return rowErr(reasonMissingAttachment)
	}
	ref, found, err := sc.restorePhoto(ctx, p.PhotoRef)
	if err != nil {
		return err
	}
	if !found {
		return rowErr(reasonMissingAttachment)
	}
	p.PhotoRef = ref

	if err := sc.store.InsertPlantPhoto(ctx, p); err != nil {
		return storageFailed("insert plant photo", err)
	}
	sc.counts.PlantPhotos++
	return nil
}

func parseSpeciesTarget(ctx context.Context, sc *SectionContext, row []string) error {
	s, err := decodeSpeciesTarget(row)
	if err != nil {
		return err
	}
	if err := sc.store.UpsertSpeciesTarget(ctx, s); err != nil {
		return storageFailed("store species target", err)
	}
	sc.counts.SpeciesTargets++
	return nil
}

func parseLedProfile(ctx context.Context, sc *SectionContext, row []string) error {
	l, err := decodeLedProfile(row)
	if err != nil {
		return err
	}
	archived := l.ID
	if !sc.claimID(archived) {
		return rowErr(reasonDuplicateID)
	}
	l.ID = sc.ownID(l.ID)
	if err := sc.store.InsertLedProfile(ctx, l); err != nil {
		return storageFailed("insert LED profile", err)
	}
	sc.LedIDs[archived] = l.ID
	sc.counts.LedProfiles++
	return nil
}

func parseMeasurement(ctx context.Context, sc *SectionContext, row []string) error {
	m, err := decodeMeasurement(row)
	if err != nil {
		return err
	}
	if !sc.claimID(m.ID) {
		return rowErr(reasonDuplicateID)
	}
	if m.PlantID, err = sc.plant(m.PlantID); err != nil {
		return err
	}
	m.ID = sc.ownID(m.ID)
	if err := sc.store.InsertMeasurement(ctx, m); err != nil {
		return storageFailed("insert measurement", err)
	}
	sc.counts.Measurements++
	return nil
}

func parseEnvironmentEntry(ctx context.Context, sc *SectionContext, row []string) error {
	e, err := decodeEnvironmentEntry(row)
	if err != nil {
		return err
	}
	if !sc.claimID(e.ID) {
		return rowErr(reasonDuplicateID)
	}
	if e.PlantID, err = sc.plant(e.PlantID); err != nil {
		return err
	}
	e.ID = sc.ownID(e.ID)
	if err := attachPhoto(ctx, sc, categoryEnvironmentEntries, &e.PhotoRef); err != nil {
		return err
	}
	if err := sc.store.InsertEnvironmentEntry(ctx, e); err != nil {
		return storageFailed("insert environment entry", err)
	}
	sc.counts.EnvironmentEntries++
	return nil
}

func parseDiaryEntry(ctx context.Context, sc *SectionContext, row []string) error {
	d, err := decodeDiaryEntry(row)
	if err != nil {
		return err
	}
	if !sc.claimID(d.ID) {
		return rowErr(reasonDuplicateID)
	}
	if d.PlantID, err = sc.plant(d.PlantID); err != nil {
		return err
	}
	d.ID = sc.ownID(d.ID)
	if err := attachPhoto(ctx, sc, categoryDiaryEntries, &d.PhotoRef); err != nil {
		return err
	}
	if err := sc.store.InsertDiaryEntry(ctx, d); err != nil {
		return storageFailed("insert diary entry", err)
	}
	sc.counts.DiaryEntries++
	return nil
}

func parseReminder(ctx context.Context, sc *SectionContext, row []string) error {
	r, err := decodeReminder(row)
	if err != nil {
		return err
	}
	if !sc.claimID(r.ID) {
		return rowErr(reasonDuplicateID)
	}
	if r.PlantID, err = sc.plant(r.PlantID); err != nil {
		return err
	}
	r.ID = sc.ownID(r.ID)
	if err := sc.store.InsertReminder(ctx, r); err != nil {
		return storageFailed("insert reminder", err)
	}
	sc.counts.Reminders++
	return nil
}

func parseReminderSuggestion(ctx context.Context, sc *SectionContext, row []string) error {
	s, err := decodeReminderSuggestion(row)
	if err != nil {
		return err
	}
	if !sc.claimID(s.PlantID) {
		return rowErr(reasonDuplicatePlantID)
	}
	if s.PlantID, err = sc.plant(s.PlantID); err != nil {
		return err
	}
	if err := sc.store.UpsertReminderSuggestion(ctx, s); err != nil {
		return storageFailed("store reminder suggestion", err)
	}
	sc.counts.ReminderSuggestions++
	return nil
}

func parseLedProfileAssociation(ctx context.Context, sc *SectionContext, row []string) error {
	a, err := decodeLedProfileAssociation(row)
	if err != nil {
		return err
	}
	if a.PlantID, err = sc.plant(a.PlantID); err != nil {
		return err
	}
	if a.LedProfileID, err = sc.led(a.LedProfileID); err != nil {
		return err
	}
	if err := sc.store.InsertLedProfileAssociation(ctx, a); err != nil {
		return storageFailed("insert LED profile association", err)
	}
	sc.counts.LedProfileAssociations++
	return nil
}
