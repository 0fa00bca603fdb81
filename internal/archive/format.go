// Package archive exports the plant-care dataset to a versioned zip archive
// and imports it back.
//
// An archive holds one data file (data.csv or data.json) and one binary entry
// per exported photo. The data file starts with the archive version and is
// followed by named sections, one per entity type, each with a header and
// one row per entity. Photo columns hold the name of the attachment entry.
package archive

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/randalmurphal/sprout/internal/photo"
)

const (
	// CurrentVersion is the version stamped on archives written by Export.
	CurrentVersion = 1
	// MaxSupportedVersion is the newest archive version Import accepts.
	MaxSupportedVersion = 1

	// DataFileCSV is the data entry of a tabular archive.
	DataFileCSV = "data.csv"
	// DataFileJSON is the data entry of an object-form archive.
	DataFileJSON = "data.json"

	versionKey = "Version"
)

// Format selects the encoding of the data file.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat parses a format name. Empty means csv.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown archive format %q (want csv or json)", s)
	}
}

// DataFile returns the data entry name for the format.
func (f Format) DataFile() string {
	if f == FormatJSON {
		return DataFileJSON
	}
	return DataFileCSV
}

// Mode selects how an import treats existing data.
type Mode string

const (
	// ModeReplace wipes the destination and keeps archive ids.
	ModeReplace Mode = "REPLACE"
	// ModeMerge keeps the destination and allocates new ids.
	ModeMerge Mode = "MERGE"
)

// ParseMode parses an import mode, case-insensitively. Empty means REPLACE.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(ModeReplace):
		return ModeReplace, nil
	case string(ModeMerge):
		return ModeMerge, nil
	default:
		return "", fmt.Errorf("unknown import mode %q (want replace or merge)", s)
	}
}

// Scope selects what an export includes.
type Scope struct {
	plantID int64
}

// AllPlants exports the whole dataset.
func AllPlants() Scope { return Scope{} }

// SinglePlant exports one plant and everything it owns.
func SinglePlant(id int64) Scope { return Scope{plantID: id} }

// PlantID returns the plant of a single-plant scope.
func (s Scope) PlantID() (int64, bool) {
	return s.plantID, s.plantID != 0
}

func (s Scope) String() string {
	if s.plantID == 0 {
		return "all plants"
	}
	return "plant " + strconv.FormatInt(s.plantID, 10)
}

// Section names, as they appear in the data file.
const (
	SectionLedProfiles            = "LedProfiles"
	SectionPlants                 = "Plants"
	SectionPlantPhotos            = "PlantPhotos"
	SectionSpeciesTargets         = "SpeciesTargets"
	SectionMeasurements           = "Measurements"
	SectionEnvironmentEntries     = "EnvironmentEntries"
	SectionDiaryEntries           = "DiaryEntries"
	SectionReminders              = "Reminders"
	SectionReminderSuggestions    = "ReminderSuggestions"
	SectionLedProfileAssociations = "LedProfileAssociations"
)

// fileOrder is the order sections are written in.
var fileOrder = []string{
	SectionLedProfiles,
	SectionPlants,
	SectionPlantPhotos,
	SectionSpeciesTargets,
	SectionMeasurements,
	SectionEnvironmentEntries,
	SectionDiaryEntries,
	SectionReminders,
	SectionReminderSuggestions,
	SectionLedProfileAssociations,
}

// importOrder is the order sections are parsed in. Plants come first so every
// later section can resolve plant ids; associations come last because they
// need both plant and LED profile ids.
var importOrder = []string{
	SectionPlants,
	SectionPlantPhotos,
	SectionSpeciesTargets,
	SectionLedProfiles,
	SectionMeasurements,
	SectionEnvironmentEntries,
	SectionDiaryEntries,
	SectionReminders,
	SectionReminderSuggestions,
	SectionLedProfileAssociations,
}

// SectionNames returns the known section names in file order.
func SectionNames() []string {
	return append([]string(nil), fileOrder...)
}

// Attachment entry prefixes.
const (
	prefixPlant       = "plant"
	prefixPlantPhoto  = "plantphoto"
	prefixDiary       = "diary"
	prefixEnvironment = "environment"
)

// attachmentName builds the zip entry name for a photo.
func attachmentName(prefix string, id int64, ref string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, id, photo.SanitizeName(photo.OriginalName(ref)))
}

// attachmentOriginalName recovers the original file name from an entry name.
func attachmentOriginalName(entry string) string {
	parts := strings.SplitN(entry, "_", 3)
	if len(parts) == 3 {
		switch parts[0] {
		case prefixPlant, prefixPlantPhoto, prefixDiary, prefixEnvironment:
			if _, err := strconv.ParseInt(parts[1], 10, 64); err == nil && parts[2] != "" {
				return parts[2]
			}
		}
	}
	return entry
}
