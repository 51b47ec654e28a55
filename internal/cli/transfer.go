package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"taskdesk/internal/document"
	"taskdesk/internal/sheet"
	"taskdesk/internal/tasks"
)

var nowFunc = time.Now

func newImportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Append the rows of a spreadsheet as new tasks",
		Long: `Append the rows of a spreadsheet as new tasks.

The first sheet is read. Its first non-empty row names the columns; columns
that are not schema fields are ignored and missing ones are left empty.
Existing tasks are never replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(s *session) error {
				if err := s.writable(); err != nil {
					return err
				}
				rows, err := sheet.DecodeFile(args[0])
				if err != nil {
					return err
				}
				n := tasks.Import(s.store, rows)
				s.log.Info("imported tasks", "file", args[0], "count", n)
				data := map[string]int{"imported": n, "total": s.store.Len()}
				return s.out.emit(data, func(w io.Writer) {
					fmt.Fprintf(w, "Imported %d tasks (%d total)\n", n, s.store.Len())
				})
			})
		},
	}
}

func newExportCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export tasks to xlsx or docx",
	}
	cmd.AddCommand(newExportSheetCommand(opts))
	cmd.AddCommand(newExportDocCommand(opts))
	return cmd
}

func newExportSheetCommand(opts *RootOptions) *cobra.Command {
	var (
		outPath string
		title   string
		query   string
	)
	cmd := &cobra.Command{
		Use:   "sheet",
		Short: "Write tasks to an xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(s *session) error {
				path := outPath
				if path == "" {
					path = filepath.Join(s.cfg.ExportDir, sheet.DefaultFileName)
				}
				if title == "" {
					title = s.cfg.SheetTitle
				}
				recs := tasks.Filter(s.sc, s.store.Records(), query)
				if err := sheet.EncodeFile(path, s.sc, recs, title); err != nil {
					return WrapExitError(ExitCommandError, "failed to write "+path, err)
				}
				s.log.Info("exported sheet", "file", path, "count", len(recs))
				data := map[string]any{"path": path, "count": len(recs)}
				return s.out.emit(data, func(w io.Writer) {
					fmt.Fprintf(w, "Exported %d tasks to %s\n", len(recs), path)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output file (default <export_dir>/tasks.xlsx)")
	cmd.Flags().StringVar(&title, "sheet", "", "sheet name (default sheet_title from config)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "export only tasks matching this filter")
	return cmd
}

func newExportDocCommand(opts *RootOptions) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "doc <id>",
		Short: "Write one task as a docx document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(s *session) error {
				rec, err := s.lookup(args[0])
				if err != nil {
					return err
				}
				if dir == "" {
					dir = s.cfg.ExportDir
				}
				path, err := document.WriteFile(dir, s.sc, rec, nowFunc())
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to write document", err)
				}
				s.log.Info("exported document", "file", path, "id", rec.ID)
				return s.out.emit(map[string]string{"path": path, "id": rec.ID}, func(w io.Writer) {
					fmt.Fprintf(w, "Exported %s\n", path)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&dir, "output", "o", "", "output directory (default export_dir from config)")
	return cmd
}
