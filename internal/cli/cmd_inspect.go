package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/sprout/internal/archive"
)

// newInspectCmd creates the inspect command
func newInspectCmd(a *app) *cobra.Command {
	var entries string

	cmd := &cobra.Command{
		Use:   "inspect <archive.zip>",
		Short: "Show what an archive holds without importing it",
		Long: `Inspect prints the archive version, the row count of every section and the
photo entries. Nothing is written to local data.

Example:
  sprout inspect backup.zip
  sprout inspect backup.zip --entries 'diary_*.jpg'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := archive.Inspect(cmd.Context(), afero.NewOsFs(), args[0], entries)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a, info)
			}
			printArchiveInfo(a.out, info)
			return nil
		},
	}

	cmd.Flags().StringVar(&entries, "entries", "", "only list photo entries matching this glob")
	return cmd
}

func printArchiveInfo(w io.Writer, info *archive.ArchiveInfo) {
	st := DefaultStyles()
	_, _ = fmt.Fprintln(w, st.Title.Render(info.Path))
	_, _ = fmt.Fprintf(w, "Version: %d\nFormat:  %s\n\n", info.Version, info.Format)

	for _, s := range info.Sections {
		_, _ = fmt.Fprintf(w, "  %-26s %s\n", s.Name, humanize.Comma(int64(s.Rows)))
	}
	_, _ = fmt.Fprintf(w, "  %-26s %s\n", "total", humanize.Comma(int64(info.TotalRows())))
	for _, name := range info.Unknown {
		_, _ = fmt.Fprintln(w, st.Subtle.Render("  "+name+" (ignored)"))
	}

	if len(info.Attachments) == 0 {
		return
	}
	var total uint64
	for _, att := range info.Attachments {
		total += att.Size
	}
	_, _ = fmt.Fprintf(w, "\nPhotos (%d, %s):\n", len(info.Attachments), humanize.IBytes(total))
	for _, att := range info.Attachments {
		_, _ = fmt.Fprintf(w, "  %-40s %s\n", att.Name, humanize.IBytes(att.Size))
	}
}
