package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"taskdesk/internal/schema"
	"taskdesk/internal/tasks"
)

// formField holds the editor for one schema field. Multi-line fields use
// a textarea, the rest a textinput.
type formField struct {
	field schema.Field
	input textinput.Model
	area  textarea.Model
}

func (f formField) value() string {
	if f.field.MultiLine {
		return f.area.Value()
	}
	return f.input.Value()
}

func (f formField) view() string {
	if f.field.MultiLine {
		return f.area.View()
	}
	return f.input.View()
}

// formState is the add/edit form. editID is empty when creating.
type formState struct {
	editID string
	fields []formField
	index  int
}

func newForm(sc schema.Schema, rec *tasks.Record, width int) *formState {
	fs := &formState{}
	if rec != nil {
		fs.editID = rec.ID
	}
	for _, f := range sc.Fields {
		ff := formField{field: f}
		v := ""
		if rec != nil {
			v = rec.Value(f.Name)
		}
		if f.MultiLine {
			ta := textarea.New()
			ta.Prompt = ""
			ta.CharLimit = 0
			ta.ShowLineNumbers = false
			ta.SetHeight(4)
			ta.SetWidth(inputWidth(width))
			ta.Placeholder = f.Name
			ta.SetValue(v)
			ta.Blur()
			ff.area = ta
		} else {
			ti := textinput.New()
			ti.Prompt = ""
			ti.CharLimit = 1024
			ti.Width = inputWidth(width)
			ti.Placeholder = f.Name
			ti.SetValue(v)
			ff.input = ti
		}
		fs.fields = append(fs.fields, ff)
	}
	return fs
}

func inputWidth(width int) int {
	if width <= 0 {
		return 60
	}
	if w := width - 24; w > 20 {
		return w
	}
	return 20
}

func (fs *formState) current() *formField {
	return &fs.fields[fs.index]
}

func (fs *formState) focus() tea.Cmd {
	for i := range fs.fields {
		f := &fs.fields[i]
		if f.field.MultiLine {
			f.area.Blur()
		} else {
			f.input.Blur()
		}
	}
	f := fs.current()
	if f.field.MultiLine {
		return f.area.Focus()
	}
	return f.input.Focus()
}

func (fs *formState) move(delta int) tea.Cmd {
	fs.index = wrapIndex(fs.index+delta, len(fs.fields))
	return fs.focus()
}

func (fs *formState) update(msg tea.Msg) tea.Cmd {
	f := fs.current()
	var cmd tea.Cmd
	if f.field.MultiLine {
		f.area, cmd = f.area.Update(msg)
	} else {
		f.input, cmd = f.input.Update(msg)
	}
	return cmd
}

func (fs *formState) values() map[string]string {
	out := make(map[string]string, len(fs.fields))
	for _, f := range fs.fields {
		out[f.field.Name] = f.value()
	}
	return out
}

func (fs *formState) onLast() bool {
	return fs.index >= len(fs.fields)-1
}

func (fs *formState) title() string {
	if fs.editID == "" {
		return "New task"
	}
	return "Edit task"
}

func (fs *formState) prompt() string {
	f := fs.current().field
	return fmt.Sprintf("Editing %s (field %d of %d). Tab to move, ctrl+s to save, Esc to cancel.",
		f.Name, fs.index+1, len(fs.fields))
}

func (fs *formState) render() string {
	var b strings.Builder
	for i, f := range fs.fields {
		label := f.field.Name
		if f.field.Required {
			label += " *"
		}
		if i == fs.index {
			b.WriteString(selectedStyle.Render("> " + label))
		} else {
			b.WriteString(labelStyle.Render("  " + label))
		}
		b.WriteString("\n")
		if i == fs.index {
			b.WriteString(f.view())
		} else {
			b.WriteString("  " + emptyPlaceholder(firstLine(f.value())))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func firstLine(s string) string {
	line, rest, found := strings.Cut(s, "\n")
	if found && strings.TrimSpace(rest) != "" {
		return line + " …"
	}
	return line
}

func wrapIndex(idx, n int) int {
	if n <= 0 {
		return 0
	}
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}
