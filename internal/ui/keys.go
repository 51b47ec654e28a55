package ui

import (
	"github.com/charmbracelet/bubbles/key"

	"taskdesk/internal/config"
)

type keyMap struct {
	quit        key.Binding
	add         key.Binding
	up          key.Binding
	down        key.Binding
	nextPage    key.Binding
	prevPage    key.Binding
	filter      key.Binding
	del         key.Binding
	clear       key.Binding
	detail      key.Binding
	edit        key.Binding
	importSheet key.Binding
	exportSheet key.Binding
	exportDoc   key.Binding
	toggleHelp  key.Binding

	// confirm and deny answer the delete prompts.
	confirm key.Binding
	deny    key.Binding
}

func newKeyMap(k config.Keymap) keyMap {
	bind := func(help string, keys ...string) key.Binding {
		return key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help))
	}
	return keyMap{
		quit:        bind("quit", k.Quit, "ctrl+c"),
		add:         bind("add", k.Add),
		up:          bind("up", k.Up, "up"),
		down:        bind("down", k.Down, "down"),
		nextPage:    bind("next page", k.NextPage, "right"),
		prevPage:    bind("prev page", k.PrevPage, "left"),
		filter:      bind("filter", k.Filter),
		del:         bind("delete", k.Delete),
		clear:       bind("delete all", k.Clear),
		detail:      bind("preview", k.Detail, "enter"),
		edit:        bind("edit", k.Edit),
		importSheet: bind("import xlsx", k.Import),
		exportSheet: bind("export xlsx", k.ExportSheet),
		exportDoc:   bind("export docx", k.ExportDoc),
		toggleHelp:  bind("more", k.Help),
		confirm:     bind("confirm", k.Confirm, "y", "Y"),
		deny:        bind("cancel", k.Cancel, "n", "N", "esc"),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.add, k.edit, k.del, k.filter, k.detail, k.toggleHelp, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.prevPage, k.nextPage},
		{k.add, k.edit, k.del, k.clear},
		{k.filter, k.detail},
		{k.importSheet, k.exportSheet, k.exportDoc},
		{k.toggleHelp, k.quit},
	}
}

// formKeys are fixed: the form captures free text so letter keys cannot
// be used for navigation.
type formKeys struct {
	next   key.Binding
	prev   key.Binding
	save   key.Binding
	cancel key.Binding
}

func newFormKeys(k config.Keymap) formKeys {
	return formKeys{
		next:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		prev:   key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev field")),
		save:   key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		cancel: key.NewBinding(key.WithKeys(k.Cancel, "esc"), key.WithHelp(k.Cancel, "cancel")),
	}
}

func (k formKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.next, k.prev, k.save, k.cancel}
}

func (k formKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
