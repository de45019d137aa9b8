package clip

import (
	"errors"
	"time"

	atotto "github.com/atotto/clipboard"

	"go.klb.dev/scrivener/internal/item"
)

const textPollInterval = 500 * time.Millisecond

// textBackend is the text-only fallback used when golang.design/x/clipboard
// cannot initialise. It shells out through github.com/atotto/clipboard
// (xclip/xsel on Linux, pbcopy/pbpaste on macOS) and polls for changes.
type textBackend struct {
	watchCh chan struct{}
	done    chan struct{}
}

func newTextBackend() (*textBackend, error) {
	if atotto.Unsupported {
		return nil, errors.New("no text clipboard helper available")
	}
	b := &textBackend{
		watchCh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go b.poll()
	return b, nil
}

func (b *textBackend) Name() string { return "text clipboard (fallback)" }

func (b *textBackend) poll() {
	t := time.NewTicker(textPollInterval)
	defer t.Stop()
	var last string
	for {
		select {
		case <-b.done:
			return
		case <-t.C:
			text, err := atotto.ReadAll()
			if err != nil || text == last {
				continue
			}
			last = text
			select {
			case b.watchCh <- struct{}{}:
			default:
			}
		}
	}
}

func (b *textBackend) Read() (item.Data, error) {
	text, err := atotto.ReadAll()
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	return item.NewText(text), nil
}

func (b *textBackend) Write(d item.Data) error {
	text, ok := d[item.MimeText]
	if !ok {
		return nil
	}
	return atotto.WriteAll(string(text))
}

func (b *textBackend) Watch() <-chan struct{} { return b.watchCh }
func (b *textBackend) Close()                 { close(b.done) }
