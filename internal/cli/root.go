// Package cli implements the sprout command-line interface.
package cli

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/sprout/internal/config"
)

// Version is stamped at build time with -ldflags.
var Version = "0.1.0-dev"

// app holds global flags and state shared by every command.
type app struct {
	cfgFile string
	dataDir string
	verbose bool
	quiet   bool
	jsonOut bool

	cfg    *config.TrackedConfig
	logger *slog.Logger
	out    io.Writer
	errOut io.Writer
}

// Execute runs the root command against the process arguments.
func Execute() error {
	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		// Commands that already printed a status line only add detail when
		// asked for it.
		var r reported
		if !errors.As(err, &r) || hasVerbose(root) {
			PrintError(os.Stderr, err, hasVerbose(root))
		}
		return err
	}
	return nil
}

func hasVerbose(root *cobra.Command) bool {
	v, err := root.PersistentFlags().GetBool("verbose")
	return err == nil && v
}

// newRootCmd builds the command tree writing to out and errOut.
func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut, logger: slog.Default()}

	root := &cobra.Command{
		Use:   "sprout",
		Short: "Back up and restore plant-care data",
		Long: `sprout exports plants, journals and photos to a portable zip archive and
restores them again.

Quick start:
  sprout export backup.zip             Export everything
  sprout export fern.zip --plant 12    Export one plant
  sprout inspect backup.zip            List what an archive holds
  sprout import backup.zip             Replace local data with the archive
  sprout import backup.zip --mode merge  Add the archive alongside local data`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig(cmd)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is .sprout/config.yaml, then ~/.sprout/config.yaml)")
	pf.StringVar(&a.dataDir, "data-dir", "", "directory holding the database and photos")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "suppress non-essential output")
	pf.BoolVar(&a.jsonOut, "json", false, "output as JSON")

	root.AddCommand(newExportCmd(a))
	root.AddCommand(newImportCmd(a))
	root.AddCommand(newInspectCmd(a))
	root.AddCommand(newStatusCmd(a))
	root.AddCommand(newConfigCmd(a))
	root.AddCommand(newVersionCmd(a))
	return root
}

// initConfig loads configuration and installs the logger.
func (a *app) initConfig(cmd *cobra.Command) error {
	var opts []config.LoaderOption
	if a.cfgFile != "" {
		opts = append(opts, config.WithConfigFile(a.cfgFile))
	}
	loader := config.NewLoader(opts...)
	if err := loader.BindFlag("data_dir", cmd.Root().PersistentFlags().Lookup("data-dir")); err != nil {
		return err
	}

	tc, err := loader.Load()
	if err != nil {
		return err
	}
	a.cfg = tc

	level, _ := tc.Config.LogLevel()
	if a.verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(a.errOut, hopts)
	if a.jsonOut {
		handler = slog.NewJSONHandler(a.errOut, hopts)
	}
	a.logger = slog.New(handler)
	slog.SetDefault(a.logger)

	if tc.File != "" {
		a.logger.Debug("using config file", "path", tc.File)
	}
	return nil
}
