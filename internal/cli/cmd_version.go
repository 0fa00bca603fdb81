package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/sprout/internal/archive"
)

// newVersionCmd creates the version command
func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show sprout version",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(a.out, "sprout version %s (archive format %d)\n", Version, archive.CurrentVersion)
		},
	}
}
