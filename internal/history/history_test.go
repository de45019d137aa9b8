package history

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go.klb.dev/scrivener/internal/item"
	"go.klb.dev/scrivener/internal/loader"
	"go.klb.dev/scrivener/internal/storage"
)

type vetoSaver struct {
	loader.NopSaver
}

func (s *vetoSaver) CanRemove(loader.Model, []int) bool { return false }
func (s *vetoSaver) CanMove(loader.Model, []int) bool   { return false }

type recordSaver struct {
	loader.NopSaver
	removed [][]int
}

func (s *recordSaver) RemovedByUser(_ loader.Model, rows []int) {
	s.removed = append(s.removed, rows)
}

func texts(t *Tab) []string {
	out := make([]string, t.Len())
	for i := range out {
		out[i] = t.At(i).Text()
	}
	return out
}

func TestTab_AddPrependsNewestFirst(t *testing.T) {
	tab := NewTab("t", 0, nil)
	require.True(t, tab.Add(item.NewText("one")))
	require.True(t, tab.Add(item.NewText("two")))
	require.True(t, tab.Add(item.NewText("three")))
	require.Equal(t, []string{"three", "two", "one"}, texts(tab))
}

func TestTab_AddClonesInput(t *testing.T) {
	tab := NewTab("t", 0, nil)
	d := item.NewText("orig")
	require.True(t, tab.Add(d))

	d[item.MimeText][0] = 'X'
	require.Equal(t, "orig", tab.At(0).Text())
}

func TestTab_AddDropsEmptyAndTransformedAway(t *testing.T) {
	tab := NewTab("t", 0, storage.FileSaver{Tab: "t"})
	require.False(t, tab.Add(item.Data{}))
	require.False(t, tab.Add(item.Data{item.MimeText: {}}))
	require.Zero(t, tab.Len())
}

func TestTab_AddSkipsConsecutiveDuplicate(t *testing.T) {
	tab := NewTab("t", 0, nil)
	require.True(t, tab.Add(item.NewText("same")))
	require.False(t, tab.Add(item.NewText("same")))
	require.True(t, tab.Add(item.NewText("other")))
	require.True(t, tab.Add(item.NewText("same")))
	require.Equal(t, []string{"same", "other", "same"}, texts(tab))
}

func TestTab_AddTrimsToCap(t *testing.T) {
	tab := NewTab("t", 2, nil)
	tab.Add(item.NewText("a"))
	tab.Add(item.NewText("b"))
	tab.Add(item.NewText("c"))
	require.Equal(t, []string{"c", "b"}, texts(tab))
}

func TestTab_RemoveVetoed(t *testing.T) {
	tab := NewTab("t", 0, &vetoSaver{})
	tab.Add(item.NewText("a"))
	require.Zero(t, tab.Remove([]int{0}))
	require.Equal(t, 1, tab.Len())
}

func TestTab_RemoveReportsToSaver(t *testing.T) {
	saver := &recordSaver{}
	tab := NewTab("t", 0, saver)
	tab.Add(item.NewText("a"))
	tab.Add(item.NewText("b"))
	tab.Add(item.NewText("c"))

	require.Equal(t, 2, tab.Remove([]int{2, 0, 0, 99, -1}))
	require.Equal(t, []string{"b"}, texts(tab))
	require.Equal(t, [][]int{{2, 0}}, saver.removed)
}

func TestTab_Move(t *testing.T) {
	tab := NewTab("t", 0, nil)
	tab.Add(item.NewText("a"))
	tab.Add(item.NewText("b"))
	tab.Add(item.NewText("c"))

	require.NoError(t, tab.Move(0, 2))
	require.Equal(t, []string{"b", "a", "c"}, texts(tab))

	require.NoError(t, tab.Move(2, -5))
	require.Equal(t, []string{"c", "b", "a"}, texts(tab))

	require.NoError(t, tab.Move(1, 1))
	require.Error(t, tab.Move(9, 0))
}

func TestTab_MoveVetoed(t *testing.T) {
	tab := NewTab("t", 0, &vetoSaver{})
	tab.Add(item.NewText("a"))
	tab.Add(item.NewText("b"))
	require.Error(t, tab.Move(0, 1))
	require.Equal(t, []string{"b", "a"}, texts(tab))
}

func TestTab_CopyOutOfRange(t *testing.T) {
	tab := NewTab("t", 0, nil)
	_, err := tab.Copy(0)
	require.Error(t, err)
}

func TestTab_ItemsReturnsClones(t *testing.T) {
	tab := NewTab("t", 0, nil)
	tab.Add(item.NewText("orig"))

	items := tab.Items()
	items[0][item.MimeText][0] = 'X'
	require.Equal(t, "orig", tab.At(0).Text())
}

func TestStore_DefaultTabName(t *testing.T) {
	s := NewStore(nil, nil, 0)
	ok, err := s.Add("", item.NewText("x"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{DefaultTab}, s.Tabs())
	require.Equal(t, 1, s.Len(DefaultTab))
}

func TestStore_MissingTab(t *testing.T) {
	s := NewStore(nil, nil, 0)

	require.False(t, s.Has("nope"))
	require.Nil(t, s.Items("nope"))
	require.Zero(t, s.Len("nope"))

	_, err := s.Copy("nope", 0)
	require.Error(t, err)

	n, err := s.Remove("nope", []int{0})
	require.NoError(t, err)
	require.Zero(t, n)

	require.Error(t, s.Move("nope", 0, 1))
	require.Empty(t, s.Tabs())
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	disk, err := storage.NewStore(dir)
	require.NoError(t, err)

	s := NewStore(disk, nil, 0)
	_, err = s.Add("notes", item.NewText("kept"))
	require.NoError(t, err)

	disk2, err := storage.NewStore(dir)
	require.NoError(t, err)
	s2 := NewStore(disk2, nil, 0)
	require.NoError(t, s2.Open())

	items := s2.Items("notes")
	require.Len(t, items, 1)
	require.Equal(t, "kept", items[0].Text())
}

func TestStore_RemoveTab(t *testing.T) {
	dir := t.TempDir()
	disk, err := storage.NewStore(dir)
	require.NoError(t, err)

	s := NewStore(disk, nil, 0)
	_, err = s.Add("gone", item.NewText("x"))
	require.NoError(t, err)
	require.NoError(t, s.RemoveTab("gone"))
	require.Empty(t, s.Tabs())

	tabs, err := disk.ListTabs()
	require.NoError(t, err)
	require.Empty(t, tabs)
}

func TestStore_Events(t *testing.T) {
	s := NewStore(nil, nil, 0)
	ch, cancel := s.Subscribe()

	_, err := s.Add("t", item.NewText("x"))
	require.NoError(t, err)

	ev := <-ch
	require.Equal(t, EventAdded, ev.Type)
	require.Equal(t, "t", ev.Tab)
	require.Equal(t, 0, ev.Row)
	require.Equal(t, "x", ev.Item.Text())

	_, err = s.Remove("t", []int{0})
	require.NoError(t, err)
	ev = <-ch
	require.Equal(t, EventRemoved, ev.Type)

	cancel()
	_, err = s.Add("t", item.NewText("y"))
	require.NoError(t, err)

	_, open := <-ch
	require.False(t, open)
}

func TestStore_EventItemIsACopy(t *testing.T) {
	s := NewStore(nil, nil, 0)
	ch, cancel := s.Subscribe()
	defer cancel()

	_, err := s.Add("t", item.NewText("orig"))
	require.NoError(t, err)

	ev := <-ch
	ev.Item[item.MimeText][0] = 'X'
	require.Equal(t, "orig", s.Items("t")[0].Text())
}

func TestStore_MovePersistedOrder(t *testing.T) {
	dir := t.TempDir()
	disk, err := storage.NewStore(dir)
	require.NoError(t, err)
	s := NewStore(disk, nil, 0)

	for _, txt := range []string{"a", "b", "c"} {
		_, err := s.Add("t", item.NewText(txt))
		require.NoError(t, err)
	}
	require.NoError(t, s.Move("t", 2, 0))

	items, err := disk.LoadTab("t")
	require.NoError(t, err)
	require.Equal(t, "a", items[0].Text())
	require.Equal(t, "c", items[1].Text())
	require.Equal(t, "b", items[2].Text())
}
