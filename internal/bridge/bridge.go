// Package bridge exposes monitored items to a status menu, one render pass at a time.
//
// The menu never reads a Provider directly. Each pass takes a Snapshot, which
// copies the item count, names and statuses so that every index the menu sees
// stays valid for the whole pass even if the provider changes underneath.
package bridge

import (
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/adamancini/actionstatus/internal/metrics"
	"github.com/adamancini/actionstatus/internal/types"
)

// ErrIndexOutOfRange is returned for an index outside [0, count).
var ErrIndexOutOfRange = errors.New("index out of range")

// snapshotAttempts bounds how often a copy is retried when the provider
// shrinks while it is being read.
const snapshotAttempts = 3

// IndexError wraps ErrIndexOutOfRange with the offending index and count.
func IndexError(index, count int) error {
	return fmt.Errorf("%w: index %d, count %d", ErrIndexOutOfRange, index, count)
}

// Provider is an ordered collection of monitored items.
type Provider interface {
	Count() int
	Name(index int) (string, error)
	Status(index int) (types.ItemStatus, error)
	// Select performs the item's selection action.
	Select(index int) error
}

// ReadLocker is implemented by providers that can hold their items still
// while a snapshot is copied.
type ReadLocker interface {
	RLock()
	RUnlock()
}

// Item is one monitored item as seen by a render pass.
type Item struct {
	Name   string           `json:"name" yaml:"name"`
	Status types.ItemStatus `json:"status" yaml:"status"`
}

// Bridge reads a Provider on behalf of the status menu.
type Bridge struct {
	provider Provider
	log      *log.Entry
	metrics  metrics.Recorder

	mu         sync.Mutex
	passing    bool
	showInMenu bool
	showInDock bool
}

// New creates a bridge over p. Until the first snapshot Passing reports true.
func New(p Provider) *Bridge {
	return &Bridge{
		provider:   p,
		log:        log.WithField("component", "bridge"),
		metrics:    metrics.Nop(),
		passing:    true,
		showInMenu: true,
	}
}

// WithLogger sets the log entry for diagnostics.
func (b *Bridge) WithLogger(entry *log.Entry) *Bridge {
	b.log = entry
	return b
}

// WithMetrics sets the metrics recorder.
func (b *Bridge) WithMetrics(rec metrics.Recorder) *Bridge {
	b.metrics = rec
	return b
}

// Snapshot copies the provider's items for one render pass.
func (b *Bridge) Snapshot() (*Snapshot, error) {
	var lastErr error
	for attempt := 1; attempt <= snapshotAttempts; attempt++ {
		items, err := b.copyItems()
		if err == nil {
			s := &Snapshot{provider: b.provider, log: b.log, items: items}
			b.record(s.AggregatePassing(), len(items))
			return s, nil
		}
		if !errors.Is(err, ErrIndexOutOfRange) {
			return nil, fmt.Errorf("failed to read monitored items: %w", err)
		}
		b.log.WithField("attempt", attempt).Debugf("provider changed during snapshot: %v", err)
		lastErr = err
	}
	return nil, fmt.Errorf("provider kept changing during snapshot: %w", lastErr)
}

func (b *Bridge) copyItems() ([]Item, error) {
	if rl, ok := b.provider.(ReadLocker); ok {
		rl.RLock()
		defer rl.RUnlock()
	}

	count := b.provider.Count()
	items := make([]Item, 0, count)
	for i := 0; i < count; i++ {
		name, err := b.provider.Name(i)
		if err != nil {
			return nil, err
		}
		status, err := b.provider.Status(i)
		if err != nil {
			return nil, err
		}
		items = append(items, Item{Name: name, Status: status})
	}
	return items, nil
}

func (b *Bridge) record(passing bool, items int) {
	b.mu.Lock()
	changed := b.passing != passing
	b.passing = passing
	b.mu.Unlock()

	if changed {
		b.log.WithField("passing", passing).Info("aggregate status changed")
	}
	b.metrics.SetPassing(passing, items)
}

// AggregatePassing takes a fresh snapshot and reports whether no item is failing.
func (b *Bridge) AggregatePassing() (bool, error) {
	s, err := b.Snapshot()
	if err != nil {
		return false, err
	}
	return s.AggregatePassing(), nil
}

// Passing returns the aggregate computed by the most recent snapshot.
func (b *Bridge) Passing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.passing
}

// ShowInMenu reports whether the status menu should be installed.
func (b *Bridge) ShowInMenu() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.showInMenu
}

// SetShowInMenu toggles the status menu.
func (b *Bridge) SetShowInMenu(show bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.showInMenu = show
}

// ShowInDock reports whether the application should appear in the dock.
func (b *Bridge) ShowInDock() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.showInDock
}

// SetShowInDock toggles the dock presence.
func (b *Bridge) SetShowInDock(show bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.showInDock = show
}

// Snapshot is an immutable copy of the provider's items. Indices are checked
// against the copy, never against the live provider.
type Snapshot struct {
	provider Provider
	log      *log.Entry
	items    []Item
}

// Count returns the number of items in the snapshot.
func (s *Snapshot) Count() int {
	return len(s.items)
}

// Items returns a copy of the snapshot's items.
func (s *Snapshot) Items() []Item {
	return append([]Item(nil), s.items...)
}

// Name returns the display name of item index.
func (s *Snapshot) Name(index int) (string, error) {
	if err := s.check(index); err != nil {
		return "", err
	}
	return s.items[index].Name, nil
}

// Status returns the status of item index.
func (s *Snapshot) Status(index int) (types.ItemStatus, error) {
	if err := s.check(index); err != nil {
		return "", err
	}
	return s.items[index].Status, nil
}

// Select forwards a selection to the provider. Errors from the provider are
// returned unchanged.
func (s *Snapshot) Select(index int) error {
	if err := s.check(index); err != nil {
		return err
	}
	s.log.WithFields(log.Fields{"index": index, "name": s.items[index].Name}).Debug("item selected")
	return s.provider.Select(index)
}

// AggregatePassing is false iff any item has failed. Unknown items do not
// count as failing, so an empty snapshot is passing.
func (s *Snapshot) AggregatePassing() bool {
	for _, item := range s.items {
		if item.Status.IsFailing() {
			return false
		}
	}
	return true
}

func (s *Snapshot) check(index int) error {
	if index < 0 || index >= len(s.items) {
		return IndexError(index, len(s.items))
	}
	return nil
}
