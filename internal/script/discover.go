package script

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Discover loads every *.js file in dir and returns the loaders that
// produced a usable script object, in file-name order. Scripts that fail to
// load are skipped; their faults are already logged under their identity.
// A missing directory is not an error, just no scripts.
func Discover(dir string) []*Loader {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("script directory unreadable", "dir", dir, "err", err)
		}
		return nil
	}

	var loaders []*Loader
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".js") {
			continue
		}
		l := Open(filepath.Join(dir, e.Name()))
		if !l.Loaded() {
			slog.Debug("script produced no loader", "file", e.Name())
			continue
		}
		slog.Info("script loader ready",
			"id", l.ID(),
			"name", l.Name(),
			"priority", l.Priority(),
		)
		loaders = append(loaders, l)
	}
	return loaders
}
