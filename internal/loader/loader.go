// Package loader defines the item loader plugin contracts: the Loader
// interface implemented by every item loader (built-in or script-provided),
// the Saver interface for tab persistence components, and the Registry that
// orders loaders and folds their saver decorations.
package loader

import (
	"io"

	"go.klb.dev/scrivener/internal/item"
)

// Model is a read-only view of the items in a tab.
type Model interface {
	// Len returns the number of items.
	Len() int

	// At returns the item at row i. The returned Data must be treated as
	// read-only; callers clone before modifying.
	At(i int) item.Data
}

// Saver persists a tab's items and gates the operations that change them.
// Loaders may decorate a Saver via Loader.WrapSaver; decorations delegate to
// the wrapped Saver and never replace its decisions, only post-process data.
type Saver interface {
	// Save writes the model's items to w.
	Save(m Model, w io.Writer) error

	// CanRemove reports whether the given rows may be removed.
	CanRemove(m Model, rows []int) bool

	// CanMove reports whether the given rows may be reordered.
	CanMove(m Model, rows []int) bool

	// RemovedByUser is called after rows were removed by an explicit user
	// action, with the model still holding the removed items.
	RemovedByUser(m Model, rows []int)

	// Copy produces the item data to place on the clipboard when data is
	// copied out of the tab. A nil result refuses the copy.
	Copy(m Model, data item.Data) item.Data

	// Transform rewrites item data on its way into the tab. The input map
	// is not mutated; the result is a new map or the input unchanged.
	Transform(data item.Data) item.Data
}

// Loader is an item loader plugin: a named, prioritised component that can
// claim item formats and decorate a tab's Saver with extra save-path hooks.
type Loader interface {
	// ID returns the loader's stable identifier.
	ID() string

	Name() string
	Author() string
	Description() string

	// Icon returns a one-rune glyph for listings.
	Icon() string

	// Priority orders loaders; higher values are consulted first.
	Priority() int

	// FormatsToSave lists the content types this loader wants persisted.
	FormatsToSave() []string

	// WrapSaver returns s decorated with this loader's save-path hooks,
	// or s unchanged when the loader has none.
	WrapSaver(s Saver) Saver
}

// NopSaver is a Saver with the default semantics: it saves and transforms
// nothing, allows every removal and move, and copies by cloning. Useful as
// the base of a decoration chain and in tests.
type NopSaver struct{}

func (NopSaver) Save(Model, io.Writer) error         { return nil }
func (NopSaver) CanRemove(Model, []int) bool         { return true }
func (NopSaver) CanMove(Model, []int) bool           { return true }
func (NopSaver) RemovedByUser(Model, []int)          {}
func (NopSaver) Copy(_ Model, d item.Data) item.Data { return d.Clone() }
func (NopSaver) Transform(d item.Data) item.Data     { return d }
