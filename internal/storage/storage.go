// Package storage implements the native tab persistence: items serialised
// as JSON inside an lz4 frame, one file per tab. FileSaver is the base of
// every tab's saver chain; Store owns the tabs directory.
package storage

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pierrec/lz4"

	"go.klb.dev/scrivener/internal/item"
	"go.klb.dev/scrivener/internal/loader"
)

// fileVersion is bumped when the tab file layout changes.
const fileVersion = 1

// fileSuffix names tab files; the payload is lz4-framed JSON.
const fileSuffix = ".json.lz4"

// tabFile is the on-disk envelope.
type tabFile struct {
	Version int         `json:"version"`
	Tab     string      `json:"tab"`
	Items   []item.Data `json:"items"`
}

// FileSaver is the native persistence component for a tab. It imposes no
// policy: everything may be removed or moved, copies are clones; the one
// normalisation is dropping formats with empty payloads on the way in.
type FileSaver struct {
	// Tab is recorded in the file envelope.
	Tab string
}

// Save writes the model's items to w as lz4-compressed JSON.
func (s FileSaver) Save(m loader.Model, w io.Writer) error {
	items := make([]item.Data, m.Len())
	for i := range items {
		items[i] = m.At(i)
	}

	zw := lz4.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(tabFile{
		Version: fileVersion,
		Tab:     s.Tab,
		Items:   items,
	}); err != nil {
		return fmt.Errorf("encode tab %q: %w", s.Tab, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress tab %q: %w", s.Tab, err)
	}
	return nil
}

// Load reads items written by Save.
func (s FileSaver) Load(r io.Reader) ([]item.Data, error) {
	var f tabFile
	if err := json.NewDecoder(lz4.NewReader(r)).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode tab %q: %w", s.Tab, err)
	}
	if f.Version != fileVersion {
		return nil, fmt.Errorf("tab %q: unsupported file version %d", s.Tab, f.Version)
	}
	return f.Items, nil
}

func (s FileSaver) CanRemove(loader.Model, []int) bool { return true }
func (s FileSaver) CanMove(loader.Model, []int) bool   { return true }

func (s FileSaver) RemovedByUser(_ loader.Model, rows []int) {
	slog.Debug("items removed", "tab", s.Tab, "rows", len(rows))
}

func (s FileSaver) Copy(_ loader.Model, d item.Data) item.Data {
	return d.Clone()
}

// Transform drops formats with empty payloads; otherwise items pass through
// untouched.
func (s FileSaver) Transform(d item.Data) item.Data {
	empty := 0
	for _, payload := range d {
		if len(payload) == 0 {
			empty++
		}
	}
	if empty == 0 {
		return d
	}
	out := make(item.Data, len(d)-empty)
	for format, payload := range d {
		if len(payload) > 0 {
			out[format] = payload
		}
	}
	return out
}

// Store manages the tabs directory: one file per tab, written atomically.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create tabs directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the tabs directory.
func (s *Store) Dir() string { return s.dir }

// DefaultDir returns the user's tab storage directory.
func DefaultDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "scrivener", "tabs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "scrivener", "tabs")
	}
	return filepath.Join(home, ".local", "share", "scrivener", "tabs")
}

// path maps a tab name to its file. Names are query-escaped so any tab
// name, "&clipboard" included, survives the round trip through ListTabs.
func (s *Store) path(tab string) string {
	return filepath.Join(s.dir, url.QueryEscape(tab)+fileSuffix)
}

// SaveTab writes the model through saver into the tab's file. The write is
// atomic: a temp file is renamed over the old one only on success.
func (s *Store) SaveTab(tab string, m loader.Model, saver loader.Saver) error {
	tmp, err := os.CreateTemp(s.dir, url.QueryEscape(tab)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := saver.Save(m, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(tab)); err != nil {
		return fmt.Errorf("replace tab file: %w", err)
	}
	slog.Debug("tab saved", "tab", tab, "items", m.Len())
	return nil
}

// LoadTab reads the tab's items; a missing file is an empty tab.
func (s *Store) LoadTab(tab string) ([]item.Data, error) {
	f, err := os.Open(s.path(tab))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open tab file: %w", err)
	}
	defer f.Close()
	return FileSaver{Tab: tab}.Load(f)
}

// ListTabs returns the names of all stored tabs. Files whose names do not
// decode as escaped tab names are not ours and are skipped.
func (s *Store) ListTabs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read tabs directory: %w", err)
	}
	var tabs []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		tab, err := url.QueryUnescape(strings.TrimSuffix(e.Name(), fileSuffix))
		if err != nil {
			continue
		}
		tabs = append(tabs, tab)
	}
	return tabs, nil
}

// RemoveTab deletes the tab's file; removing an absent tab is not an error.
func (s *Store) RemoveTab(tab string) error {
	if err := os.Remove(s.path(tab)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove tab file: %w", err)
	}
	return nil
}
