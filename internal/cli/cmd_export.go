package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/sprout/internal/archive"
	"github.com/randalmurphal/sprout/internal/events"
	"github.com/randalmurphal/sprout/internal/progress"
)

// newExportCmd creates the export command
func newExportCmd(a *app) *cobra.Command {
	var (
		plantID int64
		format  string
	)

	cmd := &cobra.Command{
		Use:   "export <archive.zip>",
		Short: "Export plants, journals and photos to an archive",
		Long: `Export writes a zip archive holding a data file and every referenced photo.

By default all plants are exported. With --plant only that plant is exported,
together with its journals, its LED profiles and its species target.

Example:
  sprout export backup.zip
  sprout export fern.zip --plant 12 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = a.cfg.Config.Export.Format
			}
			f, err := archive.ParseFormat(format)
			if err != nil {
				return err
			}
			scope := archive.AllPlants()
			if cmd.Flags().Changed("plant") {
				scope = archive.SinglePlant(plantID)
			}
			return a.runExport(cmd.Context(), a.cfg.Config.ExportPath(args[0]), scope, f)
		},
	}

	cmd.Flags().Int64Var(&plantID, "plant", 0, "export only this plant id")
	cmd.Flags().StringVarP(&format, "format", "f", "", "data file format: csv or json (default from config)")
	return cmd
}

func (a *app) runExport(ctx context.Context, dest string, scope archive.Scope, format archive.Format) error {
	rt, err := a.openRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	sub := rt.publisher.Subscribe(events.GlobalJobID)
	display := progress.New("Exporting", a.errOut, a.quiet || a.jsonOut)

	fut := rt.engine.Export(dest, scope, format, nil, display.OnProgress)
	rt.loop.RunUntil(fut.Done())
	ok, err := fut.Wait(ctx)

	summary := exportSummary(sub, fut.ID())
	if !ok {
		display.Finish(false, errMessage(err))
		return reported{err}
	}

	msg := dest
	if summary != nil {
		msg = summary.String()
	}
	display.Finish(true, msg)
	if a.jsonOut && summary != nil {
		return writeJSON(a, summary)
	}
	if summary != nil && summary.MissingPhotos > 0 && !a.quiet {
		st := DefaultStyles()
		_, _ = fmt.Fprintln(a.out, st.Warning.Render(fmt.Sprintf("%d %s could not be read and were left out",
			summary.MissingPhotos, progress.Pluralize(summary.MissingPhotos, "photo", "photos"))))
	}
	return nil
}

// exportSummary finds the summary published with the job's completion.
func exportSummary(sub <-chan events.Event, jobID string) *archive.ExportSummary {
	for {
		select {
		case ev, open := <-sub:
			if !open {
				return nil
			}
			if ev.JobID != jobID || ev.Type != events.EventComplete {
				continue
			}
			if data, ok := ev.Data.(events.CompleteData); ok {
				s, _ := data.Detail.(*archive.ExportSummary)
				return s
			}
		default:
			return nil
		}
	}
}

func writeJSON(a *app, v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
