// Package configcmd implements wkmpd's "config" subcommand: dump the
// effective, fully-overlaid settings as YAML for diagnostics, the way
// the teacher's internal/httpcontroller/updateconfig.go reads and
// writes the on-disk YAML config directly rather than through viper.
package configcmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wkmp/core/internal/config"
	"gopkg.in/yaml.v3"
)

// Command returns the "config" subcommand.
func Command(settings *config.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(settings)
			if err != nil {
				return fmt.Errorf("marshaling settings: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.SilenceUsage = true
	return cmd
}
