package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"taskdesk/internal/document"
	"taskdesk/internal/schema"
	"taskdesk/internal/tasks"
	"taskdesk/internal/ui"
)

// parseSets turns repeated Field=Value flags into a value map. Field names
// match case-insensitively.
func parseSets(sc schema.Schema, sets []string) (map[string]string, error) {
	out := make(map[string]string, len(sets))
	for _, s := range sets {
		name, val, ok := strings.Cut(s, "=")
		if !ok {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid --set %q: want Field=Value", s))
		}
		field, ok := fieldByName(sc, strings.TrimSpace(name))
		if !ok {
			return nil, NewExitError(ExitCommandError,
				fmt.Sprintf("unknown field %q (fields: %s)", name, strings.Join(sc.Names(), ", ")))
		}
		out[field] = val
	}
	return out, nil
}

func fieldByName(sc schema.Schema, name string) (string, bool) {
	for _, f := range sc.Fields {
		if strings.EqualFold(f.Name, name) {
			return f.Name, true
		}
	}
	return "", false
}

func newAddCommand(opts *RootOptions) *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a task",
		Example: `  taskdesk add --set "ID Proyecto=P-1" --set "Nombre Tarea=Login page"
  taskdesk --schema qa add -s DRS=D-12 -s Descripcion="Smoke test"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(s *session) error {
				if err := s.writable(); err != nil {
					return err
				}
				values, err := parseSets(s.sc, sets)
				if err != nil {
					return err
				}
				rec, err := s.store.Create(values)
				if err != nil {
					return err
				}
				s.log.Info("created task", "id", rec.ID)
				return s.out.emit(rec, func(w io.Writer) {
					fmt.Fprintf(w, "Created %s\n", rec.ID)
				})
			})
		},
	}
	cmd.Flags().StringArrayVarP(&sets, "set", "s", nil, "field value as Field=Value (repeatable)")
	return cmd
}

func newEditCommand(opts *RootOptions) *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a task; fields not given keep their values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(s *session) error {
				if err := s.writable(); err != nil {
					return err
				}
				changes, err := parseSets(s.sc, sets)
				if err != nil {
					return err
				}
				rec, err := s.lookup(args[0])
				if err != nil {
					return err
				}
				values := rec.Values
				for k, v := range changes {
					values[k] = v
				}
				rec, err = s.store.Update(rec.ID, values)
				if err != nil {
					return err
				}
				s.log.Info("updated task", "id", rec.ID, "fields", len(changes))
				return s.out.emit(rec, func(w io.Writer) {
					fmt.Fprintf(w, "Updated %s\n", rec.ID)
				})
			})
		},
	}
	cmd.Flags().StringArrayVarP(&sets, "set", "s", nil, "field value as Field=Value (repeatable)")
	return cmd
}

func newDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task (no-op when it does not exist)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(s *session) error {
				if err := s.writable(); err != nil {
					return err
				}
				id := args[0]
				deleted := false
				rec, err := s.lookup(id)
				var nf tasks.NotFoundError
				switch {
				case errors.As(err, &nf):
				case err != nil:
					return err
				default:
					id = rec.ID
					deleted = s.store.Delete(id)
				}
				s.log.Info("delete task", "id", id, "deleted", deleted)
				data := map[string]any{"id": id, "deleted": deleted}
				return s.out.emit(data, func(w io.Writer) {
					if deleted {
						fmt.Fprintf(w, "Deleted %s\n", id)
						return
					}
					fmt.Fprintf(w, "No task %s; nothing deleted\n", id)
				})
			})
		},
	}
}

func newClearCommand(opts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return NewExitError(ExitCommandError, "refusing to delete all tasks without --yes")
			}
			return withSession(cmd, opts, func(s *session) error {
				if err := s.writable(); err != nil {
					return err
				}
				n := s.store.Len()
				s.store.Clear()
				s.log.Info("cleared tasks", "count", n)
				return s.out.emit(map[string]int{"deleted": n}, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted %d tasks\n", n)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting all tasks")
	return cmd
}

type listPage struct {
	Page       int            `json:"page"`
	TotalPages int            `json:"total_pages"`
	PageSize   int            `json:"page_size"`
	Count      int            `json:"count"`
	Total      int            `json:"total"`
	Query      string         `json:"query,omitempty"`
	SavedAt    *time.Time     `json:"saved_at,omitempty"`
	Items      []tasks.Record `json:"items"`
}

func newListCommand(opts *RootOptions) *cobra.Command {
	var (
		query    string
		page     int
		pageSize int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, filtered and paged",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(s *session) error {
				size := pageSize
				if size == 0 {
					size = s.cfg.PageSize
				}
				all := s.store.Records()
				filtered := tasks.Filter(s.sc, all, query)
				p, err := tasks.Paginate(filtered, size, page)
				switch {
				case errors.Is(err, tasks.ErrPageOutOfRange):
					return WrapExitError(ExitFailure,
						fmt.Sprintf("page %d does not exist (1-%d)", page, tasks.TotalPages(len(filtered), size)), err)
				case err != nil:
					return WrapExitError(ExitCommandError, "invalid --page-size", err)
				}
				data := listPage{
					Page:       p.Number,
					TotalPages: p.Total,
					PageSize:   p.Size,
					Count:      p.Count,
					Total:      len(all),
					Query:      query,
					Items:      p.Items,
				}
				if at, ok := s.lastSaved(cmd.Context()); ok {
					data.SavedAt = &at
				}
				return s.out.emit(data, func(w io.Writer) {
					renderList(w, s.sc, p, len(all), query)
					if data.SavedAt != nil {
						fmt.Fprintf(w, "last saved %s\n", data.SavedAt.Local().Format(time.DateTime))
					}
				})
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "case-insensitive substring filter over every field")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number (1-based)")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "tasks per page (default page_size from config)")
	return cmd
}

func listColumns(sc schema.Schema) []string {
	var cols []string
	for _, f := range sc.Fields {
		if !f.MultiLine && !f.Link {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

func renderList(w io.Writer, sc schema.Schema, p tasks.Page, total int, query string) {
	if p.Count == 0 {
		if query != "" {
			fmt.Fprintf(w, "No tasks match %q\n", query)
		} else {
			fmt.Fprintln(w, "No tasks")
		}
		return
	}
	cols := listColumns(sc)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(append([]string{"ID"}, cols...)...)
	for _, r := range p.Items {
		row := []string{shortID(r.ID)}
		for _, c := range cols {
			row = append(row, r.Value(c))
		}
		t.Row(row...)
	}
	fmt.Fprintln(w, t.Render())
	info := fmt.Sprintf("%d tasks", p.Count)
	if query != "" {
		info = fmt.Sprintf("%d of %d tasks match %q", p.Count, total, query)
	}
	fmt.Fprintf(w, "page %d/%d · %s\n", p.Number, p.Total, info)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newShowCommand(opts *RootOptions) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task as a formatted document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(s *session) error {
				rec, err := s.lookup(args[0])
				if err != nil {
					return err
				}
				md := document.Markdown(document.Build(s.sc, rec, nowFunc()))
				data := map[string]any{"record": rec, "markdown": md}
				return s.out.emit(data, func(w io.Writer) {
					if raw {
						fmt.Fprint(w, md)
						return
					}
					style, width := markdownStyleFor(w)
					fmt.Fprintln(w, ui.RenderMarkdown(md, style, width))
				})
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown source instead of rendering it")
	return cmd
}

// markdownStyleFor picks a coloured style only for terminals.
func markdownStyleFor(w io.Writer) (string, int) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return ui.StylePlain, 80
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		width = 80
	}
	return ui.StyleDark, min(width, 120)
}

func newSchemaCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the active field schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(s *session) error {
				return s.out.emit(s.sc, func(w io.Writer) {
					fmt.Fprintf(w, "schema %s\n", s.sc.Name)
					for _, f := range s.sc.Fields {
						var tags []string
						if f.Required {
							tags = append(tags, "required")
						}
						if f.MultiLine {
							tags = append(tags, "multi-line")
						}
						if f.Link {
							tags = append(tags, "link")
						}
						line := "  " + f.Name
						if len(tags) > 0 {
							line += " (" + strings.Join(tags, ", ") + ")"
						}
						fmt.Fprintln(w, line)
					}
				})
			})
		},
	}
}
