// Package state holds the monitored items shown in the status menu.
package state

import (
	"context"
	"sync"

	"github.com/adamancini/actionstatus/internal/bridge"
	"github.com/adamancini/actionstatus/internal/types"
)

// Item is one monitored item.
type Item struct {
	Name   string           `yaml:"name" toml:"name" json:"name"`
	Status types.ItemStatus `yaml:"status" toml:"status" json:"status"`
	URL    string           `yaml:"url,omitempty" toml:"url,omitempty" json:"url,omitempty"`
}

// Reader loads the current set of monitored items.
type Reader interface {
	Read(ctx context.Context) ([]Item, error)
}

// SelectFunc is called when the user selects an item.
type SelectFunc func(index int, item Item) error

// MemoryProvider is a mutable, ordered item collection that implements
// bridge.Provider and bridge.ReadLocker.
type MemoryProvider struct {
	// view is read-held by a bridge for a whole snapshot; writers wait for it.
	view sync.RWMutex
	mu   sync.RWMutex

	items    []Item
	onSelect SelectFunc
}

// NewMemoryProvider creates a provider holding items.
func NewMemoryProvider(items ...Item) *MemoryProvider {
	return &MemoryProvider{items: append([]Item(nil), items...)}
}

// OnSelect sets the selection action.
func (p *MemoryProvider) OnSelect(fn SelectFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onSelect = fn
}

func (p *MemoryProvider) write(fn func()) {
	p.view.Lock()
	defer p.view.Unlock()
	p.mu.Lock()
	defer p.mu.Unlock()
	fn()
}

// Set replaces all items.
func (p *MemoryProvider) Set(items []Item) {
	p.write(func() { p.items = append([]Item(nil), items...) })
}

// Append adds an item at the end.
func (p *MemoryProvider) Append(item Item) {
	p.write(func() { p.items = append(p.items, item) })
}

// Remove deletes the item at index.
func (p *MemoryProvider) Remove(index int) error {
	var err error
	p.write(func() {
		if index < 0 || index >= len(p.items) {
			err = bridge.IndexError(index, len(p.items))
			return
		}
		p.items = append(p.items[:index], p.items[index+1:]...)
	})
	return err
}

// SetStatus changes the status of the item at index.
func (p *MemoryProvider) SetStatus(index int, status types.ItemStatus) error {
	var err error
	p.write(func() {
		if index < 0 || index >= len(p.items) {
			err = bridge.IndexError(index, len(p.items))
			return
		}
		p.items[index].Status = status
	})
	return err
}

// Items returns a copy of all items.
func (p *MemoryProvider) Items() []Item {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Item(nil), p.items...)
}

// Count implements bridge.Provider.
func (p *MemoryProvider) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}

// Name implements bridge.Provider.
func (p *MemoryProvider) Name(index int) (string, error) {
	item, err := p.item(index)
	return item.Name, err
}

// Status implements bridge.Provider.
func (p *MemoryProvider) Status(index int) (types.ItemStatus, error) {
	item, err := p.item(index)
	if err != nil {
		return "", err
	}
	return item.Status, nil
}

// Select runs the selection action for the item at index. The action runs
// without any lock held.
func (p *MemoryProvider) Select(index int) error {
	p.mu.RLock()
	fn := p.onSelect
	p.mu.RUnlock()

	item, err := p.item(index)
	if err != nil {
		return err
	}
	if fn == nil {
		return nil
	}
	return fn(index, item)
}

// RLock implements bridge.ReadLocker.
func (p *MemoryProvider) RLock() {
	p.view.RLock()
}

// RUnlock implements bridge.ReadLocker.
func (p *MemoryProvider) RUnlock() {
	p.view.RUnlock()
}

func (p *MemoryProvider) item(index int) (Item, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if index < 0 || index >= len(p.items) {
		return Item{}, bridge.IndexError(index, len(p.items))
	}
	return p.items[index], nil
}

var (
	_ bridge.Provider   = (*MemoryProvider)(nil)
	_ bridge.ReadLocker = (*MemoryProvider)(nil)
)
