package bridge

import (
	"fmt"
	"strings"

	"github.com/adamancini/actionstatus/internal/types"
)

// Action identifies what a menu entry does when chosen.
type Action string

const (
	ActionSelectItem      Action = "select-item"
	ActionAbout           Action = "about"
	ActionOpen            Action = "open"
	ActionPreferences     Action = "preferences"
	ActionCheckForUpdates Action = "check-for-updates"
	ActionQuit            Action = "quit"
)

// MenuEntry is one line of the status menu. Item entries carry the item's
// index in Tag; fixed entries have Tag -1.
type MenuEntry struct {
	Title     string           `json:"title,omitempty" yaml:"title,omitempty"`
	Status    types.ItemStatus `json:"status,omitempty" yaml:"status,omitempty"`
	Tag       int              `json:"tag" yaml:"tag"`
	Action    Action           `json:"action,omitempty" yaml:"action,omitempty"`
	Separator bool             `json:"separator,omitempty" yaml:"separator,omitempty"`
}

// Menu is the status menu for one render pass.
type Menu struct {
	Passing bool        `json:"passing" yaml:"passing"`
	Entries []MenuEntry `json:"entries" yaml:"entries"`
}

// Menu builds the status menu: one entry per item, a separator, then the
// application's fixed entries.
func (s *Snapshot) Menu(appName string) Menu {
	entries := make([]MenuEntry, 0, len(s.items)+6)
	for i, item := range s.items {
		entries = append(entries, MenuEntry{
			Title:  item.Name,
			Status: item.Status,
			Tag:    i,
			Action: ActionSelectItem,
		})
	}

	entries = append(entries,
		MenuEntry{Separator: true, Tag: -1},
		MenuEntry{Title: "About " + appName, Tag: -1, Action: ActionAbout},
		MenuEntry{Title: "Open " + appName, Tag: -1, Action: ActionOpen},
		MenuEntry{Title: "Preferences…", Tag: -1, Action: ActionPreferences},
		MenuEntry{Title: "Check For Updates…", Tag: -1, Action: ActionCheckForUpdates},
		MenuEntry{Title: "Quit " + appName, Tag: -1, Action: ActionQuit},
	)

	return Menu{Passing: s.AggregatePassing(), Entries: entries}
}

// statusSymbol maps a status to the glyph shown next to an item.
func statusSymbol(s types.ItemStatus) string {
	switch s {
	case types.StatusSucceeded:
		return "✓"
	case types.StatusFailed:
		return "✗"
	default:
		return "?"
	}
}

// String renders the menu for a terminal.
func (m Menu) String() string {
	var b strings.Builder
	if m.Passing {
		b.WriteString("● all passing\n")
	} else {
		b.WriteString("● failing\n")
	}
	for _, e := range m.Entries {
		switch {
		case e.Separator:
			b.WriteString("  ────────\n")
		case e.Action == ActionSelectItem:
			fmt.Fprintf(&b, "  %s [%d] %s\n", statusSymbol(e.Status), e.Tag, e.Title)
		default:
			fmt.Fprintf(&b, "  %s\n", e.Title)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
