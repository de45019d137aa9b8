//go:build linux

package clip

import (
	"bytes"
	"log/slog"
	"time"

	"golang.design/x/clipboard"

	"go.klb.dev/scrivener/internal/item"
)

const linuxPollInterval = 250 * time.Millisecond

type linuxBackend struct {
	watchCh  chan struct{}
	done     chan struct{}
	lastText []byte
	lastImg  []byte
}

// New returns the Linux clipboard backend. clipboard.Init is called here
// rather than in init() so that CLI sub-commands (status, copy, paste)
// don't trigger the warning. When the display environment is unavailable
// (headless server without X11 or Wayland) New degrades to the text-only
// fallback, then to a no-op backend.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, trying text fallback", "err", err)
		if b, terr := newTextBackend(); terr == nil {
			return b
		}
		slog.Warn("no clipboard helper found, running headless")
		return newHeadless()
	}
	b := &linuxBackend{
		watchCh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go b.poll()
	return b
}

func (b *linuxBackend) Name() string { return "Linux clipboard (poll)" }

func (b *linuxBackend) poll() {
	t := time.NewTicker(linuxPollInterval)
	defer t.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-t.C:
			text := clipboard.Read(clipboard.FmtText)
			img := clipboard.Read(clipboard.FmtImage)
			if !bytes.Equal(text, b.lastText) || !bytes.Equal(img, b.lastImg) {
				b.lastText = text
				b.lastImg = img
				select {
				case b.watchCh <- struct{}{}:
				default:
				}
			}
		}
	}
}

func (b *linuxBackend) Read() (item.Data, error) {
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

func (b *linuxBackend) Write(d item.Data) error {
	if text, ok := d[item.MimeText]; ok {
		clipboard.Write(clipboard.FmtText, text)
	}
	if img, ok := d[item.MimePNG]; ok {
		clipboard.Write(clipboard.FmtImage, img)
	}
	return nil
}

func (b *linuxBackend) Watch() <-chan struct{} { return b.watchCh }
func (b *linuxBackend) Close()                 { close(b.done) }
