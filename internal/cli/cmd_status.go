package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/sprout/internal/archive"
	"github.com/randalmurphal/sprout/internal/model"
	"github.com/randalmurphal/sprout/internal/photo"
)

// statusReport describes the local data set.
type statusReport struct {
	DataDir  string       `json:"data_dir"`
	Dialect  string       `json:"dialect"`
	PhotoDir string       `json:"photo_dir"`
	Counts   model.Counts `json:"counts"`
}

// newStatusCmd creates the status command
func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where local data lives and how much of it there is",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			cfg := a.cfg.Config
			photos := photo.NewOSFileStore(cfg.PhotoDir())
			ds, err := archive.NewExporter(store, photos, archive.WithExportLogger(a.logger)).
				Snapshot(cmd.Context(), archive.AllPlants())
			if err != nil {
				return err
			}

			report := statusReport{
				DataDir:  cfg.DataDir,
				Dialect:  cfg.Database.Dialect,
				PhotoDir: photos.Root(),
				Counts:   ds.Counts(),
			}
			if a.jsonOut {
				return writeJSON(a, report)
			}
			printStatus(a.out, report)
			return nil
		},
	}
}

func printStatus(w io.Writer, r statusReport) {
	st := DefaultStyles()
	_, _ = fmt.Fprintln(w, st.Title.Render("sprout"))
	_, _ = fmt.Fprintf(w, "Data:     %s (%s)\nPhotos:   %s\n\n", r.DataDir, r.Dialect, r.PhotoDir)

	rows := []struct {
		name string
		n    int
	}{
		{"plants", r.Counts.Plants},
		{"plant photos", r.Counts.PlantPhotos},
		{"species targets", r.Counts.SpeciesTargets},
		{"LED profiles", r.Counts.LedProfiles},
		{"LED associations", r.Counts.LedProfileAssociations},
		{"measurements", r.Counts.Measurements},
		{"environment entries", r.Counts.EnvironmentEntries},
		{"diary entries", r.Counts.DiaryEntries},
		{"reminders", r.Counts.Reminders},
		{"reminder suggestions", r.Counts.ReminderSuggestions},
	}
	for _, row := range rows {
		line := fmt.Sprintf("  %-22s %s", row.name, humanize.Comma(int64(row.n)))
		if row.n == 0 {
			line = st.Subtle.Render(line)
		}
		_, _ = fmt.Fprintln(w, line)
	}
}
