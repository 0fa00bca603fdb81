package model

// Dataset is a snapshot of every entity in some scope.
type Dataset struct {
	Plants                 []*Plant
	PlantPhotos            []*PlantPhoto
	SpeciesTargets         []*SpeciesTarget
	LedProfiles            []*LedProfile
	LedProfileAssociations []*LedProfileAssociation
	Measurements           []*Measurement
	EnvironmentEntries     []*EnvironmentEntry
	DiaryEntries           []*DiaryEntry
	Reminders              []*Reminder
	ReminderSuggestions    []*ReminderSuggestion
}

// Counts returns the number of entities per collection.
func (d *Dataset) Counts() Counts {
	return Counts{
		Plants:                 len(d.Plants),
		PlantPhotos:            len(d.PlantPhotos),
		SpeciesTargets:         len(d.SpeciesTargets),
		LedProfiles:            len(d.LedProfiles),
		LedProfileAssociations: len(d.LedProfileAssociations),
		Measurements:           len(d.Measurements),
		EnvironmentEntries:     len(d.EnvironmentEntries),
		DiaryEntries:           len(d.DiaryEntries),
		Reminders:              len(d.Reminders),
		ReminderSuggestions:    len(d.ReminderSuggestions),
	}
}

// Counts holds per-entity totals.
type Counts struct {
	Plants                 int `json:"plants" yaml:"plants"`
	PlantPhotos            int `json:"plant_photos" yaml:"plant_photos"`
	SpeciesTargets         int `json:"species_targets" yaml:"species_targets"`
	LedProfiles            int `json:"led_profiles" yaml:"led_profiles"`
	LedProfileAssociations int `json:"led_profile_associations" yaml:"led_profile_associations"`
	Measurements           int `json:"measurements" yaml:"measurements"`
	EnvironmentEntries     int `json:"environment_entries" yaml:"environment_entries"`
	DiaryEntries           int `json:"diary_entries" yaml:"diary_entries"`
	Reminders              int `json:"reminders" yaml:"reminders"`
	ReminderSuggestions    int `json:"reminder_suggestions" yaml:"reminder_suggestions"`
}

// Total returns the sum of all counts.
func (c Counts) Total() int {
	return c.Plants + c.PlantPhotos + c.SpeciesTargets + c.LedProfiles +
		c.LedProfileAssociations + c.Measurements + c.EnvironmentEntries +
		c.DiaryEntries + c.Reminders + c.ReminderSuggestions
}
