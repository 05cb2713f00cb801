package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit        key.Binding
	Search      key.Binding
	Open        key.Binding
	Back        key.Binding
	Refresh     key.Binding
	Vulns       key.Binding
	Sort        key.Binding
	Severity    key.Binding
	NextVuln    key.Binding
	PrevVuln    key.Binding
	Copy        key.Binding
	Fix         key.Binding
	Close       key.Binding
	Submit      key.Binding
	SaveFix     key.Binding
	Breadcrumbs key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "search"),
	),
	Open: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "open"),
	),
	Back: key.NewBinding(
		key.WithKeys("backspace", "h"),
		key.WithHelp("⌫", "up"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Vulns: key.NewBinding(
		key.WithKeys("v"),
		key.WithHelp("v", "vulnerabilities"),
	),
	Sort: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "cycle sort"),
	),
	Severity: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "severity filter"),
	),
	NextVuln: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "next finding"),
	),
	PrevVuln: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "prev finding"),
	),
	Copy: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "copy"),
	),
	Fix: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "fix"),
	),
	Close: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "close"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "submit"),
	),
	SaveFix: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("ctrl+s", "save fix"),
	),
	Breadcrumbs: key.NewBinding(
		key.WithKeys("0", "1", "2", "3", "4", "5", "6", "7", "8", "9"),
		key.WithHelp("0-9", "jump"),
	),
}
