// Package history keeps the clipboard history: named tabs of items, newest
// first, each persisted through its loader-decorated saver.
package history

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"go.klb.dev/scrivener/internal/item"
	"go.klb.dev/scrivener/internal/loader"
	"go.klb.dev/scrivener/internal/storage"
)

// DefaultTab receives clipboard captures unless another tab is named.
const DefaultTab = "&clipboard"

// DefaultMaxItems bounds a tab when no limit is configured.
const DefaultMaxItems = 200

// Tab is a bounded, newest-first list of items. It implements loader.Model.
// Tabs are not safe for concurrent use; Store serialises access.
type Tab struct {
	name  string
	max   int
	saver loader.Saver
	items []item.Data
}

// NewTab returns an empty tab capped at max items (DefaultMaxItems when
// max is not positive). All mutations consult saver.
func NewTab(name string, max int, saver loader.Saver) *Tab {
	if max <= 0 {
		max = DefaultMaxItems
	}
	if saver == nil {
		saver = loader.NopSaver{}
	}
	return &Tab{name: name, max: max, saver: saver}
}

func (t *Tab) Name() string        { return t.name }
func (t *Tab) Saver() loader.Saver { return t.saver }
func (t *Tab) Len() int            { return len(t.items) }

// At returns the item at row i. Callers must not mutate the result.
func (t *Tab) At(i int) item.Data { return t.items[i] }

// Items returns a deep copy of the tab's contents.
func (t *Tab) Items() []item.Data {
	out := make([]item.Data, len(t.items))
	for i, d := range t.items {
		out[i] = d.Clone()
	}
	return out
}

// SetItems replaces the tab's contents, trimming to the cap. The tab takes
// ownership of the slice.
func (t *Tab) SetItems(items []item.Data) {
	if len(items) > t.max {
		items = items[:t.max]
	}
	t.items = items
}

// Add runs d through the saver's transform and prepends the result. Items
// that transform to nothing, and items equal to the current top, are
// dropped. Reports whether the tab changed.
func (t *Tab) Add(d item.Data) bool {
	d = t.saver.Transform(d.Clone())
	if d.IsEmpty() {
		return false
	}
	if len(t.items) > 0 && t.items[0].Equal(d) {
		return false
	}
	t.items = append([]item.Data{d}, t.items...)
	if len(t.items) > t.max {
		t.items = t.items[:t.max]
	}
	return true
}

// Copy returns the saver's copy of row i, or nil if the saver refuses.
func (t *Tab) Copy(i int) (item.Data, error) {
	if i < 0 || i >= len(t.items) {
		return nil, fmt.Errorf("tab %q: row %d out of range", t.name, i)
	}
	return t.saver.Copy(t, t.items[i]), nil
}

// Remove deletes the given rows unless the saver vetoes, reporting how many
// items were removed.
func (t *Tab) Remove(rows []int) int {
	rows = validRows(rows, len(t.items))
	if len(rows) == 0 || !t.saver.CanRemove(t, rows) {
		return 0
	}
	sort.Sort(sort.Reverse(sort.IntSlice(rows)))
	t.saver.RemovedByUser(t, rows)
	for _, r := range rows {
		t.items = slices.Delete(t.items, r, r+1)
	}
	return len(rows)
}

// Move relocates the item at row from to row to unless the saver vetoes.
func (t *Tab) Move(from, to int) error {
	if from < 0 || from >= len(t.items) {
		return fmt.Errorf("tab %q: row %d out of range", t.name, from)
	}
	if to < 0 {
		to = 0
	}
	if to >= len(t.items) {
		to = len(t.items) - 1
	}
	if from == to {
		return nil
	}
	if !t.saver.CanMove(t, []int{from}) {
		return fmt.Errorf("tab %q: move vetoed", t.name)
	}
	d := t.items[from]
	t.items = slices.Delete(t.items, from, from+1)
	t.items = slices.Insert(t.items, to, d)
	return nil
}

func validRows(rows []int, n int) []int {
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		if r >= 0 && r < n && !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}

// Store owns every tab, persists mutations through the tab's saver chain
// and fans out change events. All operations are serialised by one mutex,
// which also keeps script interpreter entries single-threaded.
type Store struct {
	mu   sync.Mutex
	disk *storage.Store
	reg  *loader.Registry
	max  int
	tabs map[string]*Tab
	hub  hub
}

// NewStore returns a store persisting to disk, decorating each tab's saver
// via reg. A nil disk store keeps history in memory only.
func NewStore(disk *storage.Store, reg *loader.Registry, max int) *Store {
	if max <= 0 {
		max = DefaultMaxItems
	}
	return &Store{
		disk: disk,
		reg:  reg,
		max:  max,
		tabs: make(map[string]*Tab),
	}
}

// Open loads every stored tab from disk.
func (s *Store) Open() error {
	if s.disk == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.disk.ListTabs()
	if err != nil {
		return err
	}
	for _, name := range names {
		items, err := s.disk.LoadTab(name)
		if err != nil {
			slog.Warn("skipping unreadable tab", "tab", name, "error", err)
			continue
		}
		t := s.tabLocked(name)
		t.SetItems(items)
		slog.Debug("tab loaded", "tab", name, "items", t.Len())
	}
	return nil
}

// tabLocked returns the named tab, creating it with a decorated saver on
// first use. Callers hold s.mu.
func (s *Store) tabLocked(name string) *Tab {
	if t, ok := s.peekLocked(name); ok {
		return t
	}
	if name == "" {
		name = DefaultTab
	}
	var saver loader.Saver = storage.FileSaver{Tab: name}
	if s.reg != nil {
		saver = s.reg.WrapSaver(saver)
	}
	t := NewTab(name, s.max, saver)
	s.tabs[name] = t
	return t
}

// peekLocked returns the named tab without creating it. Callers hold s.mu.
func (s *Store) peekLocked(name string) (*Tab, bool) {
	if name == "" {
		name = DefaultTab
	}
	t, ok := s.tabs[name]
	return t, ok
}

func (s *Store) saveLocked(t *Tab) error {
	if s.disk == nil {
		return nil
	}
	return s.disk.SaveTab(t.Name(), t, t.Saver())
}

// Tabs returns the names of all known tabs, sorted.
func (s *Store) Tabs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tabs))
	for name := range s.tabs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Items returns a deep copy of the named tab's contents, nil when the tab
// does not exist.
func (s *Store) Items(tab string) []item.Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.peekLocked(tab)
	if !ok {
		return nil
	}
	return t.Items()
}

// Len returns the number of items in the named tab.
func (s *Store) Len(tab string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.peekLocked(tab)
	if !ok {
		return 0
	}
	return t.Len()
}

// Has reports whether the named tab exists.
func (s *Store) Has(tab string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.peekLocked(tab)
	return ok
}

// Add appends d to the named tab ("" means DefaultTab), persists and
// publishes an event. Reports whether the tab changed.
func (s *Store) Add(tab string, d item.Data) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tabLocked(tab)
	if !t.Add(d) {
		return false, nil
	}
	err := s.saveLocked(t)
	s.hub.publish(Event{Type: EventAdded, Tab: t.Name(), Row: 0, Item: t.At(0).Clone()})
	return true, err
}

// Copy returns the saver-approved copy of the given row, or nil if the
// saver refuses.
func (s *Store) Copy(tab string, row int) (item.Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.peekLocked(tab)
	if !ok {
		return nil, fmt.Errorf("no such tab %q", tab)
	}
	d, err := t.Copy(row)
	if err != nil || d == nil {
		return nil, err
	}
	s.hub.publish(Event{Type: EventCopied, Tab: t.Name(), Row: row, Item: d.Clone()})
	return d, nil
}

// Remove deletes rows from the named tab, reporting how many were removed.
func (s *Store) Remove(tab string, rows []int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.peekLocked(tab)
	if !ok {
		return 0, nil
	}
	n := t.Remove(rows)
	if n == 0 {
		return 0, nil
	}
	err := s.saveLocked(t)
	s.hub.publish(Event{Type: EventRemoved, Tab: t.Name(), Row: -1})
	return n, err
}

// Move relocates an item within the named tab.
func (s *Store) Move(tab string, from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.peekLocked(tab)
	if !ok {
		return fmt.Errorf("no such tab %q", tab)
	}
	if err := t.Move(from, to); err != nil {
		return err
	}
	err := s.saveLocked(t)
	s.hub.publish(Event{Type: EventMoved, Tab: t.Name(), Row: to})
	return err
}

// RemoveTab drops the named tab and its file.
func (s *Store) RemoveTab(tab string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tab == "" {
		tab = DefaultTab
	}
	delete(s.tabs, tab)
	var err error
	if s.disk != nil {
		err = s.disk.RemoveTab(tab)
	}
	s.hub.publish(Event{Type: EventTabRemoved, Tab: tab, Row: -1})
	return err
}

// Subscribe registers for change events. The returned cancel func must be
// called to release the subscription.
func (s *Store) Subscribe() (<-chan Event, func()) {
	return s.hub.subscribe()
}
