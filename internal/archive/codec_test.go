package archive

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/sprout/internal/model"
)

func ptr[T any](v T) *T { return &v }

func TestDecodeRowErrors(t *testing.T) {
	tests := []struct {
		name   string
		decode func([]string) error
		row    []string
		reason string
	}{
		{
			name:   "diary plant id not a number",
			decode: func(r []string) error { _, err := decodeDiaryEntry(r); return err },
			row:    []string{"2", "notid", "0", "type", "note", ""},
			reason: "invalid plant id",
		},
		{
			name:   "short row",
			decode: func(r []string) error { _, err := decodeDiaryEntry(r); return err },
			row:    []string{"2", "1"},
			reason: "expected 6 columns, got 2",
		},
		{
			name:   "bad id",
			decode: func(r []string) error { _, err := decodeMeasurement(r); return err },
			row:    []string{"x", "1", "0", "5", "", "", ""},
			reason: "invalid id",
		},
		{
			name:   "bad timestamp",
			decode: func(r []string) error { _, err := decodeReminder(r); return err },
			row:    []string{"1", "1", "yesterday", "water"},
			reason: "invalid timestamp",
		},
		{
			name:   "bad lux",
			decode: func(r []string) error { _, err := decodeMeasurement(r); return err },
			row:    []string{"1", "1", "0", "bright", "", "", ""},
			reason: "invalid number in lux",
		},
		{
			name:   "bad optional number",
			decode: func(r []string) error { _, err := decodeMeasurement(r); return err },
			row:    []string{"1", "1", "0", "5", "n/a", "", ""},
			reason: "invalid number in ppfd",
		},
		{
			name:   "bad LED reference",
			decode: func(r []string) error { _, err := decodePlant(r); return err },
			row:    []string{"1", "Fern", "", "", "", "0", "", "panel"},
			reason: "invalid LED profile id",
		},
		{
			name:   "bad schedule json",
			decode: func(r []string) error { _, err := decodeLedProfile(r); return err },
			row:    []string{"1", "Panel", "full", "", "{}", "[{"},
			reason: "invalid schedule",
		},
		{
			name:   "bad interval",
			decode: func(r []string) error { _, err := decodeReminderSuggestion(r); return err },
			row:    []string{"1", "weekly", "0", "0.5", ""},
			reason: "invalid number in intervalDays",
		},
		{
			name: "empty species key",
			decode: func(r []string) error { _, err := decodeSpeciesTarget(r); return err },
			row: func() []string {
				row := make([]string, len(speciesColumns))
				row[0] = "  "
				return row
			}(),
			reason: "invalid speciesKey",
		},
		{
			name: "bad toxic flag",
			decode: func(r []string) error { _, err := decodeSpeciesTarget(r); return err },
			row: func() []string {
				row := make([]string, len(speciesColumns))
				row[0] = "fern"
				row[24] = "sometimes"
				return row
			}(),
			reason: "invalid toxic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decode(tt.row)
			var re *RowError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.reason, re.Reason)
		})
	}
}

func TestPlantCodec(t *testing.T) {
	p := &model.Plant{
		ID:           7,
		Name:         "Monstera",
		Description:  "big leaves, \"holes\"",
		Species:      "monstera-deliciosa",
		LocationHint: "living room",
		AcquiredAt:   time.UnixMilli(1700000000123).UTC(),
		LedProfileID: ptr(int64(3)),
	}
	row := encodePlant(p, "plant_7_leaf.jpg")
	assert.Len(t, row, len(plantColumns))
	assert.Equal(t, "1700000000123", row[5])

	got, err := decodePlant(row)
	require.NoError(t, err)
	want := *p
	want.PhotoRef = "plant_7_leaf.jpg"
	assert.Equal(t, &want, got)
}

func TestLedProfileCodec_EmptyJSONColumns(t *testing.T) {
	row, err := encodeLedProfile(&model.LedProfile{ID: 1, Name: "Bar"})
	require.NoError(t, err)
	assert.Equal(t, "{}", row[4])
	assert.Equal(t, "[]", row[5])

	got, err := decodeLedProfile(row)
	require.NoError(t, err)
	assert.Empty(t, got.CalibrationFactors)
	assert.Empty(t, got.Schedule)
	assert.Nil(t, got.MountingDistanceCm)
}

func TestSpeciesTargetCodec_NonASCII(t *testing.T) {
	s := &model.SpeciesTarget{
		SpeciesKey:     "ficus-lyrata-ç",
		CommonName:     "Geigenfeige – Ölbaum 🌿",
		ScientificName: "Ficus lyrata",
		Category:       "観葉植物",
		Vegetative: model.LightTarget{
			PPFD: model.Range{Min: ptr(150.0), Max: ptr(300.0)},
			DLI:  model.Range{Min: ptr(6.5)},
		},
		Watering:    model.WateringInfo{Frequency: "wöchentlich", Soil: "durchlässig", Tolerance: "mittel"},
		Temperature: model.Range{Min: ptr(16.0), Max: ptr(29.5)},
		GrowthHabit: "Baum",
		Toxic:       ptr(true),
		CareTips:    []string{"Gießen, \"sparsam\"", "日当たり"},
		Sources:     []string{"https://example.org/ficus?q=ç"},
	}
	row, err := encodeSpeciesTarget(s)
	require.NoError(t, err)
	assert.Len(t, row, len(speciesColumns))

	got, err := decodeSpeciesTarget(row)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestLedProfileCodec_UnencodableFactor(t *testing.T) {
	_, err := encodeLedProfile(&model.LedProfile{ID: 1, CalibrationFactors: map[string]float64{"k": math.NaN()}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calibrationFactors")
}

func TestFormatFloat_NoExponent(t *testing.T) {
	assert.Equal(t, "0.000001", formatFloat(0.000001))
	assert.Equal(t, "12000000", formatFloat(1.2e7))
	assert.Equal(t, "", formatOptFloat(nil))
}

func TestAttachmentNames(t *testing.T) {
	ref := "0b6d3e0e-3c3a-4a5e-9d6e-2f7f3b0c1a2b_my leaf.jpg"
	name := attachmentName(prefixDiary, 12, ref)
	assert.Equal(t, "diary_12_my_leaf.jpg", name)
	assert.Equal(t, "my_leaf.jpg", attachmentOriginalName(name))

	// Names not written by the exporter pass through unchanged.
	assert.Equal(t, "holiday.jpg", attachmentOriginalName("holiday.jpg"))
	assert.Equal(t, "diary_x_a.jpg", attachmentOriginalName("diary_x_a.jpg"))
}
