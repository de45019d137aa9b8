package loader

import (
	"slices"
	"strings"
	"sync"
)

// Registry holds the known loaders ordered by priority (descending, id
// ascending on ties). Registration happens at daemon start; lookups happen
// from the pipeline and the control surface.
type Registry struct {
	mu      sync.RWMutex
	loaders []Loader
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add inserts l keeping the priority order.
func (r *Registry) Add(l Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders = append(r.loaders, l)
	slices.SortStableFunc(r.loaders, func(a, b Loader) int {
		if d := b.Priority() - a.Priority(); d != 0 {
			return d
		}
		return strings.Compare(a.ID(), b.ID())
	})
}

// Loaders returns a snapshot of the loaders in consultation order.
func (r *Registry) Loaders() []Loader {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.loaders)
}

// Lookup returns the loader with the given id, or nil.
func (r *Registry) Lookup(id string) Loader {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.loaders {
		if l.ID() == id {
			return l
		}
	}
	return nil
}

// WrapSaver folds every loader's WrapSaver over base in consultation order.
// The highest-priority loader ends up innermost, so its hooks run first,
// right after the base saver's own behaviour.
func (r *Registry) WrapSaver(base Saver) Saver {
	s := base
	for _, l := range r.Loaders() {
		s = l.WrapSaver(s)
	}
	return s
}

// FormatsToSave returns the union of every loader's formats, first-seen
// order, consultation order across loaders.
func (r *Registry) FormatsToSave() []string {
	seen := make(map[string]bool)
	var formats []string
	for _, l := range r.Loaders() {
		for _, f := range l.FormatsToSave() {
			if !seen[f] {
				seen[f] = true
				formats = append(formats, f)
			}
		}
	}
	return formats
}
