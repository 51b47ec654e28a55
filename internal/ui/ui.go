package ui

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/paginator"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"taskdesk/internal/config"
	"taskdesk/internal/document"
	"taskdesk/internal/schema"
	"taskdesk/internal/sheet"
	"taskdesk/internal/tasks"
)

type mode int

const (
	modeList mode = iota
	modeFilter
	modeForm
	modeConfirmDelete
	modeConfirmClear
	modeImport
	modeDetail
)

type Options struct {
	Store  *tasks.Store
	Config config.Config
	Logger *slog.Logger
	// Status is shown on the first frame, e.g. a load failure notice.
	Status        string
	MarkdownStyle string
	Now           func() time.Time
	// SaveErr reports the outcome of the latest background save.
	SaveErr func() error
}

type Model struct {
	store   *tasks.Store
	sc      schema.Schema
	cfg     config.Config
	log     *slog.Logger
	now     func() time.Time
	mdStyle string

	keys     keyMap
	formKeys formKeys
	help     help.Model
	pager    paginator.Model

	view   tasks.View
	page   tasks.Page
	cursor int
	mode   mode

	filter     textinput.Model
	path       textinput.Model
	form       *formState
	pendingDel *tasks.Record
	detail     string

	status    string
	statusErr bool
	width     int

	saveErr     func() error
	lastSaveErr error
}

// saveCheckMsg polls the background saver for failures.
type saveCheckMsg struct{}

const saveCheckInterval = time.Second

func New(opts Options) Model {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	filter := textinput.New()
	filter.Prompt = "/ "
	filter.Placeholder = "filter"
	filter.CharLimit = 256
	filter.Width = 40

	path := textinput.New()
	path.Prompt = "file: "
	path.Placeholder = "tasks.xlsx"
	path.CharLimit = 1024
	path.Width = 60

	pager := paginator.New()
	pager.Type = paginator.Arabic
	pager.PerPage = opts.Config.PageSize

	status := opts.Status
	if status == "" {
		status = fmt.Sprintf("Press '%s' to add, '%s' to filter, '%s' for more keys.",
			opts.Config.Keys.Add, opts.Config.Keys.Filter, opts.Config.Keys.Help)
	}

	m := Model{
		store:    opts.Store,
		sc:       opts.Store.Schema(),
		cfg:      opts.Config,
		log:      log,
		now:      now,
		mdStyle:  opts.MarkdownStyle,
		keys:     newKeyMap(opts.Config.Keys),
		formKeys: newFormKeys(opts.Config.Keys),
		help:     help.New(),
		pager:    pager,
		view:     tasks.NewView(opts.Config.PageSize),
		filter:   filter,
		path:     path,
		status:   status,
		mode:     modeList,
		saveErr:  opts.SaveErr,
	}
	m.refresh()
	return m
}

func Run(opts Options) error {
	program := tea.NewProgram(New(opts))
	_, err := program.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	if m.saveErr == nil {
		return nil
	}
	return checkSaves()
}

func checkSaves() tea.Cmd {
	return tea.Tick(saveCheckInterval, func(time.Time) tea.Msg { return saveCheckMsg{} })
}

// noteSaveErr surfaces each new save failure once.
func (m *Model) noteSaveErr() {
	if m.saveErr == nil {
		return
	}
	err := m.saveErr()
	if err != nil && !errors.Is(err, m.lastSaveErr) {
		m.setError("saving tasks", err)
	}
	m.lastSaveErr = err
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.mode {
		case modeFilter:
			return m.updateFilterMode(msg)
		case modeForm:
			return m.updateFormMode(msg)
		case modeConfirmDelete:
			return m.updateDeleteConfirm(msg)
		case modeConfirmClear:
			return m.updateClearConfirm(msg)
		case modeImport:
			return m.updateImportMode(msg)
		case modeDetail:
			return m.updateDetailMode(msg)
		}
		return m.updateListMode(msg)
	case saveCheckMsg:
		m.noteSaveErr()
		return m, checkSaves()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.filter.Width = max(msg.Width-10, 10)
		m.path.Width = max(msg.Width-10, 10)
	}
	return m, nil
}

// refresh recomputes the visible page from the store.
func (m *Model) refresh() {
	m.page = m.view.Compute(m.sc, m.store.Records())
	m.pager.TotalPages = m.page.Total
	m.pager.Page = m.page.Number - 1
	m.cursor = clampCursor(m.cursor, len(m.page.Items))
}

// reveal moves the view to the page holding id, if the current filter
// shows it.
func (m *Model) reveal(id string) {
	filtered := tasks.Filter(m.sc, m.store.Records(), m.view.Query)
	for i, r := range filtered {
		if r.ID == id {
			m.view.Page = i/m.view.PageSize + 1
			m.cursor = i % m.view.PageSize
			break
		}
	}
	m.refresh()
}

func (m Model) selected() (tasks.Record, bool) {
	if len(m.page.Items) == 0 {
		return tasks.Record{}, false
	}
	return m.page.Items[clampCursor(m.cursor, len(m.page.Items))], true
}

func (m *Model) setStatus(format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.statusErr = false
}

func (m *Model) setError(action string, err error) {
	m.status = fmt.Sprintf("%s failed: %v", action, err)
	m.statusErr = true
	m.log.Warn(action+" failed", "err", err)
}

func (m Model) updateListMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.down):
		if len(m.page.Items) == 0 {
			return m, nil
		}
		m.cursor = clampCursor(m.cursor+1, len(m.page.Items))
	case key.Matches(msg, m.keys.up):
		if m.cursor > 0 {
			m.cursor = clampCursor(m.cursor-1, len(m.page.Items))
		}
	case key.Matches(msg, m.keys.nextPage):
		if err := m.view.Next(m.page.Total); err != nil {
			m.setStatus("Already on the last page")
			return m, nil
		}
		m.cursor = 0
		m.refresh()
	case key.Matches(msg, m.keys.prevPage):
		if err := m.view.Prev(m.page.Total); err != nil {
			m.setStatus("Already on the first page")
			return m, nil
		}
		m.cursor = 0
		m.refresh()
	case key.Matches(msg, m.keys.filter):
		m.mode = modeFilter
		m.filter.SetValue(m.view.Query)
		m.filter.CursorEnd()
		m.setStatus("Filter: type to narrow, Enter to keep, Esc to clear")
		cmd := m.filter.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.add):
		m.form = newForm(m.sc, nil, m.width)
		m.mode = modeForm
		m.setStatus("%s", m.form.prompt())
		return m, m.form.focus()
	case key.Matches(msg, m.keys.edit):
		rec, ok := m.selected()
		if !ok {
			m.setStatus("No tasks to edit")
			return m, nil
		}
		m.form = newForm(m.sc, &rec, m.width)
		m.mode = modeForm
		m.setStatus("%s", m.form.prompt())
		return m, m.form.focus()
	case key.Matches(msg, m.keys.del):
		rec, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.pendingDel = &rec
		m.mode = modeConfirmDelete
		m.setStatus("Delete %q? %s", recordLabel(m.sc, rec), m.confirmHint())
	case key.Matches(msg, m.keys.clear):
		if m.store.Len() == 0 {
			m.setStatus("Nothing to delete")
			return m, nil
		}
		m.mode = modeConfirmClear
		m.setStatus("Delete ALL %d tasks? This cannot be undone. %s", m.store.Len(), m.confirmHint())
	case key.Matches(msg, m.keys.detail):
		rec, ok := m.selected()
		if !ok {
			m.setStatus("No tasks")
			return m, nil
		}
		doc := document.Build(m.sc, rec, m.now())
		m.detail = RenderMarkdown(document.Markdown(doc), m.mdStyle, m.previewWidth())
		m.mode = modeDetail
		m.setStatus("Preview: Esc to go back, '%s' to export", m.cfg.Keys.ExportDoc)
	case key.Matches(msg, m.keys.importSheet):
		m.mode = modeImport
		m.path.SetValue("")
		m.setStatus("Import: path to an .xlsx file, Enter to merge, Esc to cancel")
		cmd := m.path.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.exportSheet):
		m.exportSheet()
	case key.Matches(msg, m.keys.exportDoc):
		m.exportDoc()
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m Model) updateFilterMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.mode = modeList
		m.filter.Blur()
		m.setStatus("%d of %d tasks match %q", m.page.Count, m.store.Len(), m.view.Query)
		return m, nil
	case "esc":
		m.mode = modeList
		m.filter.Blur()
		m.filter.SetValue("")
		m.view.SetQuery("")
		m.cursor = 0
		m.refresh()
		m.setStatus("Filter cleared")
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	if q := m.filter.Value(); q != m.view.Query {
		m.view.SetQuery(q)
		m.cursor = 0
		m.refresh()
	}
	return m, cmd
}

func (m Model) updateFormMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.form == nil {
		m.mode = modeList
		return m, nil
	}
	switch {
	case key.Matches(msg, m.formKeys.cancel):
		m.form = nil
		m.mode = modeList
		m.setStatus("Edit cancelled")
		return m, nil
	case key.Matches(msg, m.formKeys.save):
		return m.saveForm()
	case key.Matches(msg, m.formKeys.next):
		cmd := m.form.move(1)
		m.setStatus("%s", m.form.prompt())
		return m, cmd
	case key.Matches(msg, m.formKeys.prev):
		cmd := m.form.move(-1)
		m.setStatus("%s", m.form.prompt())
		return m, cmd
	case msg.String() == "enter" && !m.form.current().field.MultiLine:
		if m.form.onLast() {
			return m.saveForm()
		}
		cmd := m.form.move(1)
		m.setStatus("%s", m.form.prompt())
		return m, cmd
	}
	return m, m.form.update(msg)
}

func (m Model) saveForm() (tea.Model, tea.Cmd) {
	values := m.form.values()
	var (
		rec tasks.Record
		err error
	)
	if m.form.editID == "" {
		rec, err = m.store.Create(values)
	} else {
		rec, err = m.store.Update(m.form.editID, values)
	}
	var verr tasks.ValidationError
	if errors.As(err, &verr) {
		m.status = fmt.Sprintf("Required: %s", strings.Join(verr.Missing, ", "))
		m.statusErr = true
		return m, nil
	}
	if err != nil {
		m.setError("save", err)
		m.form = nil
		m.mode = modeList
		m.refresh()
		return m, nil
	}
	verb := "Added"
	if m.form.editID != "" {
		verb = "Saved"
	}
	m.form = nil
	m.mode = modeList
	m.reveal(rec.ID)
	if !tasks.Matches(m.sc, rec, m.view.Query) {
		m.setStatus("%s %q (hidden by filter %q)", verb, recordLabel(m.sc, rec), m.view.Query)
		return m, nil
	}
	m.setStatus("%s %q", verb, recordLabel(m.sc, rec))
	return m, nil
}

func (m Model) confirmHint() string {
	return fmt.Sprintf("y/%s to confirm, n/%s to cancel", m.cfg.Keys.Confirm, m.cfg.Keys.Cancel)
}

func (m Model) updateDeleteConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.deny):
		m.setStatus("Delete cancelled")
		m.mode = modeList
		m.pendingDel = nil
		return m, nil
	case key.Matches(msg, m.keys.confirm):
		if m.pendingDel == nil {
			m.setStatus("Nothing to delete")
			m.mode = modeList
			return m, nil
		}
		if m.store.Delete(m.pendingDel.ID) {
			m.setStatus("Deleted %q", recordLabel(m.sc, *m.pendingDel))
		} else {
			m.setStatus("Task was already gone")
		}
		m.mode = modeList
		m.pendingDel = nil
		m.refresh()
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) updateClearConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.deny):
		m.setStatus("Delete all cancelled")
		m.mode = modeList
		return m, nil
	case key.Matches(msg, m.keys.confirm):
		n := m.store.Len()
		m.store.Clear()
		m.cursor = 0
		m.mode = modeList
		m.refresh()
		m.setStatus("Deleted %d tasks", n)
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) updateImportMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeList
		m.path.Blur()
		m.setStatus("Import cancelled")
		return m, nil
	case "enter":
		p := strings.TrimSpace(m.path.Value())
		if p == "" {
			m.setStatus("Enter a file path")
			return m, nil
		}
		m.mode = modeList
		m.path.Blur()
		rows, err := sheet.DecodeFile(p)
		if err != nil {
			m.setError("import", err)
			return m, nil
		}
		n := tasks.Import(m.store, rows)
		m.refresh()
		m.log.Info("imported tasks", "file", p, "count", n)
		m.setStatus("Imported %d tasks from %s", n, filepath.Base(p))
		return m, nil
	}
	var cmd tea.Cmd
	m.path, cmd = m.path.Update(msg)
	return m, cmd
}

func (m Model) updateDetailMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.exportDoc):
		m.exportDoc()
		return m, nil
	case msg.String() == "esc", key.Matches(msg, m.keys.quit), key.Matches(msg, m.keys.detail):
		m.mode = modeList
		m.detail = ""
		m.setStatus("")
		return m, nil
	}
	return m, nil
}

func (m *Model) exportSheet() {
	recs := m.store.Records()
	if len(recs) == 0 {
		m.setStatus("Nothing to export")
		return
	}
	p := filepath.Join(m.cfg.ExportDir, sheet.DefaultFileName)
	if err := sheet.EncodeFile(p, m.sc, recs, m.cfg.SheetTitle); err != nil {
		m.setError("export", err)
		return
	}
	m.log.Info("exported sheet", "file", p, "count", len(recs))
	m.setStatus("Exported %d tasks to %s", len(recs), p)
}

func (m *Model) exportDoc() {
	rec, ok := m.selected()
	if !ok {
		m.setStatus("No task selected")
		return
	}
	p, err := document.WriteFile(m.cfg.ExportDir, m.sc, rec, m.now())
	if err != nil {
		m.setError("export", err)
		return
	}
	m.log.Info("exported document", "file", p, "id", rec.ID)
	m.setStatus("Exported %s", p)
}

func (m Model) previewWidth() int {
	if m.width <= 0 {
		return 80
	}
	return m.width - 4
}

// recordLabel names a record by its required fields.
func recordLabel(sc schema.Schema, r tasks.Record) string {
	var parts []string
	for _, f := range sc.Required() {
		if v := strings.TrimSpace(r.Value(f.Name)); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return r.ID
	}
	return strings.Join(parts, " · ")
}

func emptyPlaceholder(v string) string {
	if strings.TrimSpace(v) == "" {
		return "(empty)"
	}
	return v
}

func clampCursor(cur, n int) int {
	if n <= 0 {
		return 0
	}
	if cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}
