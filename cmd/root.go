// Package cmd assembles wkmpd's cobra command tree from config.Settings,
// mirroring the teacher's cmd/root.go wiring of conf.Settings into
// cobra subcommands.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/wkmp/core/cmd/configcmd"
	"github.com/wkmp/core/cmd/ingestcmd"
	"github.com/wkmp/core/internal/config"
)

// RootCommand builds wkmpd's root command and attaches every subcommand.
func RootCommand(settings *config.Settings) *cobra.Command {
	root := &cobra.Command{
		Use:   "wkmpd",
		Short: "WKMP playback and ingest daemon",
	}

	root.AddCommand(ingestcmd.Command(settings))
	root.AddCommand(configcmd.Command(settings))

	return root
}
