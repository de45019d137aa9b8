package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.klb.dev/scrivener/internal/history"
	"go.klb.dev/scrivener/internal/item"
)

type fakeBackend struct {
	mu      sync.Mutex
	data    item.Data
	wrote   []item.Data
	watchCh chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{watchCh: make(chan struct{}, 1)}
}

func (b *fakeBackend) set(d item.Data) {
	b.mu.Lock()
	b.data = d
	b.mu.Unlock()
	b.watchCh <- struct{}{}
}

func (b *fakeBackend) written() []item.Data {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]item.Data, len(b.wrote))
	copy(out, b.wrote)
	return out
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Read() (item.Data, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return nil, nil
	}
	return b.data.Clone(), nil
}

func (b *fakeBackend) Write(d item.Data) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wrote = append(b.wrote, d.Clone())
	b.data = d.Clone()
	return nil
}

func (b *fakeBackend) Watch() <-chan struct{} { return b.watchCh }
func (b *fakeBackend) Close()                 {}

func startWatcher(t *testing.T) (*fakeBackend, *history.Store) {
	t.Helper()
	backend := newFakeBackend()
	store := history.NewStore(nil, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	w := New(backend, store, "")
	require.Equal(t, history.DefaultTab, w.tab)
	go w.Run(ctx)
	return backend, store
}

func TestWatcher_CapturesClipboardChanges(t *testing.T) {
	backend, store := startWatcher(t)

	backend.set(item.NewText("captured"))
	require.Eventually(t, func() bool {
		return store.Len(history.DefaultTab) == 1
	}, 2*time.Second, 10*time.Millisecond)

	items := store.Items(history.DefaultTab)
	require.Equal(t, "captured", items[0].Text())
}

func TestWatcher_IgnoresRepeatedState(t *testing.T) {
	backend, store := startWatcher(t)

	backend.set(item.NewText("once"))
	require.Eventually(t, func() bool {
		return store.Len(history.DefaultTab) == 1
	}, 2*time.Second, 10*time.Millisecond)

	backend.watchCh <- struct{}{}
	require.Never(t, func() bool {
		return store.Len(history.DefaultTab) != 1
	}, 150*time.Millisecond, 10*time.Millisecond)
}

func TestWatcher_AppliesCopiedItems(t *testing.T) {
	backend, store := startWatcher(t)

	_, err := store.Add("", item.NewText("a"))
	require.NoError(t, err)
	_, err = store.Add("", item.NewText("b"))
	require.NoError(t, err)

	d, err := store.Copy("", 1)
	require.NoError(t, err)
	require.Equal(t, "a", d.Text())

	require.Eventually(t, func() bool {
		return len(backend.written()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "a", backend.written()[0].Text())
}

func TestWatcher_CopyEchoNotRecaptured(t *testing.T) {
	backend, store := startWatcher(t)

	_, err := store.Add("", item.NewText("a"))
	require.NoError(t, err)
	_, err = store.Add("", item.NewText("b"))
	require.NoError(t, err)

	_, err = store.Copy("", 1)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(backend.written()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// The fake's Write updated its state; a poll signal must not turn the
	// echo into a third history item.
	backend.watchCh <- struct{}{}
	require.Never(t, func() bool {
		return store.Len(history.DefaultTab) != 2
	}, 150*time.Millisecond, 10*time.Millisecond)
}

func TestWatcher_StripsVendorFormatsOnApply(t *testing.T) {
	backend, store := startWatcher(t)

	_, err := store.Add("", item.Data{
		item.MimeText:  []byte("visible"),
		item.MimeOwner: []byte("1"),
	})
	require.NoError(t, err)

	_, err = store.Copy("", 0)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(backend.written()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	wrote := backend.written()[0]
	require.False(t, wrote.Has(item.MimeOwner))
	require.Equal(t, "visible", wrote.Text())
}
