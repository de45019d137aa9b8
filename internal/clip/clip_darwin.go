//go:build darwin

package clip

// #cgo CFLAGS: -x objective-c
// #cgo LDFLAGS: -framework Cocoa
// #import <Cocoa/Cocoa.h>
//
// NSInteger scrivener_changeCount() {
//     return [[NSPasteboard generalPasteboard] changeCount];
// }
import "C"

import (
	"log/slog"
	"time"

	"golang.design/x/clipboard"

	"go.klb.dev/scrivener/internal/item"
)

const darwinPollInterval = 100 * time.Millisecond

type darwinBackend struct {
	lastChange C.NSInteger
	watchCh    chan struct{}
	done       chan struct{}
}

// New returns the macOS clipboard backend, watching the pasteboard's
// changeCount. clipboard.Init is called here rather than in init() so that
// CLI sub-commands (status, copy, paste) that never construct a Backend
// don't log spurious warnings.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, trying text fallback", "err", err)
		if b, terr := newTextBackend(); terr == nil {
			return b
		}
		slog.Warn("no clipboard helper found, running headless")
		return newHeadless()
	}
	b := &darwinBackend{
		lastChange: C.scrivener_changeCount(),
		watchCh:    make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	go b.poll()
	return b
}

func (b *darwinBackend) Name() string { return "macOS NSPasteboard" }

func (b *darwinBackend) poll() {
	t := time.NewTicker(darwinPollInterval)
	defer t.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-t.C:
			cc := C.scrivener_changeCount()
			if cc != b.lastChange {
				b.lastChange = cc
				select {
				case b.watchCh <- struct{}{}:
				default:
				}
			}
		}
	}
}

func (b *darwinBackend) Read() (item.Data, error) {
	d := item.Data{}
	if text := clipboard.Read(clipboard.FmtText); text != nil {
		d[item.MimeText] = text
	}
	if img := clipboard.Read(clipboard.FmtImage); img != nil {
		d[item.MimePNG] = img
	}
	if len(d) == 0 {
		return nil, nil
	}
	return d, nil
}

func (b *darwinBackend) Write(d item.Data) error {
	if text, ok := d[item.MimeText]; ok {
		clipboard.Write(clipboard.FmtText, text)
	}
	if img, ok := d[item.MimePNG]; ok {
		clipboard.Write(clipboard.FmtImage, img)
	}
	return nil
}

func (b *darwinBackend) Watch() <-chan struct{} { return b.watchCh }
func (b *darwinBackend) Close()                 { close(b.done) }
