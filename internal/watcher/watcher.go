// Package watcher owns the system clipboard for the server: it captures
// clipboard changes into the history store and applies copied history items
// back to the clipboard.
package watcher

import (
	"context"
	"log/slog"

	"go.klb.dev/scrivener/internal/clip"
	"go.klb.dev/scrivener/internal/history"
	"go.klb.dev/scrivener/internal/item"
)

// Watcher bridges one clipboard backend and one history tab.
type Watcher struct {
	backend clip.Backend
	store   *history.Store
	tab     string

	events <-chan history.Event
	cancel func()

	// last is the clipboard state this watcher saw or wrote most recently.
	// Only Run's goroutine touches it.
	last item.Data
}

// New returns a watcher capturing into tab ("" means the default tab). The
// watcher is subscribed to store events from this point, so no copy is
// missed between construction and Run.
func New(backend clip.Backend, store *history.Store, tab string) *Watcher {
	if tab == "" {
		tab = history.DefaultTab
	}
	w := &Watcher{backend: backend, store: store, tab: tab}
	w.events, w.cancel = store.Subscribe()
	return w
}

// Run blocks until ctx is cancelled, reacting to clipboard changes and to
// copied history events. Call in a goroutine.
func (w *Watcher) Run(ctx context.Context) {
	defer w.cancel()
	slog.Info("clipboard watcher started", "backend", w.backend.Name(), "tab", w.tab)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.events:
			if !ok {
				return
			}
			if ev.Type == history.EventCopied {
				w.apply(ev.Item)
			}
		case <-w.backend.Watch():
			w.capture()
		}
	}
}

// capture reads the clipboard and adds its contents to the tab, unless the
// change is an echo of this watcher's own write.
func (w *Watcher) capture() {
	d, err := w.backend.Read()
	if err != nil {
		slog.Error("clipboard read failed", "err", err)
		return
	}
	if d.IsEmpty() || d.Equal(w.last) {
		return
	}
	w.last = d

	added, err := w.store.Add(w.tab, d)
	if err != nil {
		slog.Error("failed to persist captured item", "tab", w.tab, "err", err)
	}
	if added {
		slog.Debug("clipboard captured", "tab", w.tab, "formats", len(d))
	}
}

// apply writes a copied item to the system clipboard, minus vendor formats.
func (w *Watcher) apply(d item.Data) {
	pub := d.Public()
	if pub.IsEmpty() {
		return
	}
	if err := w.backend.Write(pub); err != nil {
		slog.Error("clipboard write failed", "err", err)
		return
	}
	w.last = pub
	slog.Debug("clipboard updated from history", "formats", len(pub))
}
