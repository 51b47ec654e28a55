package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"taskdesk/internal/ui"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	DBPath     string
	Schema     string
	Format     string // "json" | "text"
	Verbose    bool
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "taskdesk",
		Short:         "Local task tracker (TUI + CLI)",
		Long:          "Track structured tasks locally, filter and page through them, and export to xlsx or docx.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  taskdesk

  # Scriptable commands
  taskdesk add --set "ID Proyecto=P-1" --set "Nombre Tarea=Login page"
  taskdesk list --query login
  taskdesk export sheet -o tasks.xlsx
`),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if len(args) > 0 {
				return cmd.Help()
			}
			return runTUI(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default $TASKDESK_CONFIG or the user config dir)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "database path (overrides db_path)")
	cmd.PersistentFlags().StringVar(&opts.Schema, "schema", "", "field schema: project|qa (overrides schema)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newAddCommand(opts))
	cmd.AddCommand(newEditCommand(opts))
	cmd.AddCommand(newDeleteCommand(opts))
	cmd.AddCommand(newClearCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newShowCommand(opts))
	cmd.AddCommand(newImportCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newSchemaCommand(opts))

	return cmd
}

func runTUI(cmd *cobra.Command, opts *RootOptions) error {
	return withSession(cmd, opts, func(s *session) error {
		status := ""
		if s.loadErr != nil {
			status = "Could not read saved tasks; starting with an empty list. See the log for details."
		}
		return ui.Run(ui.Options{
			Store:         s.store,
			Config:        s.cfg,
			Logger:        s.log,
			Status:        status,
			MarkdownStyle: ui.StyleDark,
			SaveErr:       s.saver.LastErr,
		})
	})
}
