// Package clip provides a unified interface to the system clipboard across
// platforms. Build constraints select the appropriate implementation:
//
//	clip_darwin.go    macOS via golang.design/x/clipboard + cgo changeCount
//	clip_windows.go   Windows via golang.design/x/clipboard + AddClipboardFormatListener
//	clip_linux.go     Linux via golang.design/x/clipboard, polling only
//	clip_other.go     headless / container stub
//
// When golang.design/x/clipboard cannot initialise, New falls back to a
// text-only backend built on xclip/xsel style helpers, and finally to a
// no-op headless backend.
package clip

import "go.klb.dev/scrivener/internal/item"

// Backend is the interface that all platform clipboard implementations satisfy.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// Read returns the current clipboard contents keyed by format.
	// Returns nil, nil if the clipboard is empty or holds only unsupported
	// formats.
	Read() (item.Data, error)

	// Write sets the clipboard from d. Formats the backend cannot offer are
	// skipped; items often carry vendor formats the system clipboard has no
	// representation for.
	Write(d item.Data) error

	// Watch returns a channel that receives a signal whenever the clipboard
	// changes. The channel is never closed. On platforms without native
	// change notification this is implemented via polling. The caller should
	// call Read() when it receives from the channel.
	Watch() <-chan struct{}

	// Close releases any resources held by the backend.
	Close()
}
