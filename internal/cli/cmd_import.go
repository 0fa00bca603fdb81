package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/sprout/internal/archive"
	"github.com/randalmurphal/sprout/internal/model"
	"github.com/randalmurphal/sprout/internal/progress"
)

// importReport is the --json form of an import result.
type importReport struct {
	Success  bool                    `json:"success"`
	Summary  string                  `json:"summary"`
	Counts   model.Counts            `json:"counts"`
	Warnings []archive.ImportWarning `json:"warnings"`
	Error    string                  `json:"error,omitempty"`
	Code     string                  `json:"code,omitempty"`
}

// newImportCmd creates the import command
func newImportCmd(a *app) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "import <archive.zip>",
		Short: "Restore plants, journals and photos from an archive",
		Long: `Import reads an archive written by export.

Modes:
  replace  wipe local data and restore the archive with its original ids (default)
  merge    keep local data and add the archive's rows under new ids

Rows that cannot be restored are skipped and listed as warnings; the rest of
the archive is still imported. Structural problems such as an unsupported
version abort the import and leave local data unchanged.

Example:
  sprout import backup.zip
  sprout import friend.zip --mode merge`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode == "" {
				mode = a.cfg.Config.Import.Mode
			}
			m, err := archive.ParseMode(mode)
			if err != nil {
				return err
			}
			return a.runImport(cmd.Context(), args[0], m)
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "replace or merge (default from config)")
	return cmd
}

func (a *app) runImport(ctx context.Context, src string, mode archive.Mode) error {
	rt, err := a.openRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	display := progress.New("Importing", a.errOut, a.quiet || a.jsonOut)
	fut := rt.engine.Import(src, mode, nil, display.OnProgress)
	rt.loop.RunUntil(fut.Done())
	res, err := fut.Wait(ctx)
	if err == nil {
		err = res.Err
	}
	if !res.Success && err == nil {
		err = fmt.Errorf("import of %s failed", src)
	}

	if res.Success {
		display.Finish(true, res.Summary)
	} else {
		display.Finish(false, errMessage(err))
	}

	if a.jsonOut {
		report := importReport{
			Success:  res.Success,
			Summary:  res.Summary,
			Counts:   res.Counts,
			Warnings: res.Warnings,
		}
		if report.Warnings == nil {
			report.Warnings = []archive.ImportWarning{}
		}
		if err != nil {
			report.Error = errMessage(err)
			report.Code = errorCode(err)
		}
		if werr := writeJSON(a, report); werr != nil {
			return werr
		}
	} else {
		printWarnings(a.out, res.Warnings)
	}

	if !res.Success {
		return reported{err}
	}
	return nil
}

// printWarnings lists skipped rows under a short heading.
func printWarnings(w io.Writer, warnings []archive.ImportWarning) {
	if len(warnings) == 0 {
		return
	}
	st := DefaultStyles()
	_, _ = fmt.Fprintln(w, st.Warning.Render(fmt.Sprintf("%d %s skipped:",
		len(warnings), progress.Pluralize(len(warnings), "row", "rows"))))
	for _, warn := range warnings {
		_, _ = fmt.Fprintln(w, st.Subtle.Render("  "+warn.String()))
	}
}
