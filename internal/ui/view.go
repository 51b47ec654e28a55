package ui

import (
	"fmt"
	"strings"

	"taskdesk/internal/schema"
	"taskdesk/internal/tasks"
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Task desk · %s", m.sc.Name)))
	b.WriteString("\n")

	if m.mode == modeDetail {
		b.WriteString(m.detail)
		b.WriteString("\n\n")
		b.WriteString(m.renderStatus())
		return b.String()
	}

	if m.mode == modeFilter {
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
	} else if m.view.Query != "" {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("filter: %q", m.view.Query)))
		b.WriteString("\n\n")
	}

	switch {
	case m.store.Len() == 0:
		b.WriteString(fmt.Sprintf("No tasks yet. Press '%s' to add one or '%s' to import.", m.cfg.Keys.Add, m.cfg.Keys.Import))
	case m.page.Count == 0:
		b.WriteString("No tasks match the filter.")
	default:
		b.WriteString(m.renderTaskList())
	}
	b.WriteString("\n")
	b.WriteString(m.renderPager())
	b.WriteString("\n---\n")

	switch m.mode {
	case modeForm:
		b.WriteString(titleStyle.Render(m.form.title()))
		b.WriteString("\n")
		b.WriteString(m.form.render())
	case modeImport:
		b.WriteString(m.path.View())
		b.WriteString("\n")
	default:
		b.WriteString(m.renderSummary())
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	if m.mode == modeForm {
		b.WriteString(m.help.View(m.formKeys))
	} else {
		b.WriteString(m.help.View(m.keys))
	}
	return b.String()
}

func (m Model) renderTaskList() string {
	var b strings.Builder
	for i, r := range m.page.Items {
		line := fmt.Sprintf("%3d. %s", m.page.Start+i+1, rowSummary(m.sc, r))
		if i == m.cursor && m.mode == modeList {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderPager() string {
	info := fmt.Sprintf("%d tasks", m.page.Count)
	if m.view.Query != "" {
		info = fmt.Sprintf("%d of %d tasks", m.page.Count, m.store.Len())
	}
	return mutedStyle.Render(fmt.Sprintf("page %s · %s", m.pager.View(), info))
}

// renderSummary shows the single-line fields of the selected task.
func (m Model) renderSummary() string {
	rec, ok := m.selected()
	if !ok {
		return "No task selected"
	}
	var b strings.Builder
	width := 0
	for _, f := range m.sc.Fields {
		width = max(width, len([]rune(f.Name)))
	}
	for _, f := range m.sc.Fields {
		if f.MultiLine {
			continue
		}
		pad := strings.Repeat(" ", width-len([]rune(f.Name)))
		b.WriteString(labelStyle.Render(f.Name + pad))
		b.WriteString(" : ")
		b.WriteString(emptyPlaceholder(rec.Value(f.Name)))
		b.WriteString("\n")
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderStatus() string {
	if m.statusErr {
		return errorStyle.Render(m.status)
	}
	return m.status
}

// rowSummary is the list line for r: its required values, then any other
// non-empty single-line values in field order.
func rowSummary(sc schema.Schema, r tasks.Record) string {
	var parts []string
	for _, f := range sc.Fields {
		if f.MultiLine || f.Link {
			continue
		}
		v := strings.TrimSpace(r.Value(f.Name))
		if v == "" {
			if f.Required {
				parts = append(parts, "(empty)")
			}
			continue
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, " · ")
}
