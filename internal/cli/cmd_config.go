package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/sprout/internal/config"
)

// newConfigCmd creates the config command
func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create configuration",
		Long: `Configuration is read from, in increasing priority:
  built-in defaults
  ~/.sprout/config.yaml, or .sprout/config.yaml when present (or --config)
  SPROUT_* environment variables, e.g. SPROUT_EXPORT_FORMAT=json
  command-line flags`,
	}
	cmd.AddCommand(newConfigShowCmd(a))
	cmd.AddCommand(newConfigInitCmd(a))
	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	var sources bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tc := a.cfg
			if a.jsonOut {
				return writeJSON(a, tc.Config)
			}
			if sources {
				st := DefaultStyles()
				for _, key := range config.Keys() {
					src := tc.GetSource(key)
					line := fmt.Sprintf("%-28s %s", key, src)
					if src.Source == config.SourceDefault {
						line = st.Subtle.Render(line)
					}
					_, _ = fmt.Fprintln(a.out, line)
				}
				return nil
			}
			data, err := tc.Config.YAML()
			if err != nil {
				return err
			}
			_, err = a.out.Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&sources, "sources", false, "show where each value came from")
	return cmd
}

func newConfigInitCmd(a *app) *cobra.Command {
	var (
		force bool
		user  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := config.SproutDir
			if user {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("find home directory: %w", err)
				}
				dir = filepath.Join(home, config.SproutDir)
			}
			path := filepath.Join(dir, config.ConfigFileName)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := a.cfg.Config.SaveTo(path); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.out, "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.Flags().BoolVar(&user, "user", false, "write ~/.sprout/config.yaml instead of .sprout/config.yaml")
	return cmd
}
