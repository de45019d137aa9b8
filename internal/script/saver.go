package script

import (
	"io"

	"github.com/dop251/goja"

	"go.klb.dev/scrivener/internal/item"
	"go.klb.dev/scrivener/internal/loader"
)

// WrapSaver returns s decorated with this script's save-path hooks when the
// script object defines at least one of copyItem, transformItemData as a
// callable; otherwise s is returned untouched. An unloaded script never
// wraps.
func (l *Loader) WrapSaver(s loader.Saver) loader.Saver {
	if !l.hasSaveHooks() {
		return s
	}
	return &saverScript{l: l, base: s}
}

func (l *Loader) hasSaveHooks() bool { return len(l.Hooks()) > 0 }

// Hooks reports which save-path hooks the script object defines as callables,
// in a fixed order. Empty for unloaded scripts and scripts without hooks.
func (l *Loader) Hooks() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.obj == nil {
		return nil
	}
	hooks, _ := guard(l.vm, l.id, "save hooks", func() ([]string, error) {
		var out []string
		for _, name := range []string{"copyItem", "transformItemData"} {
			if prop := l.obj.Get(name); prop != nil {
				if _, isFn := goja.AssertFunction(prop); isFn {
					out = append(out, name)
				}
			}
		}
		return out, nil
	})
	return hooks
}

// applyHook runs the named script hook on data and returns the result. The
// input passes through unchanged when the hook is absent or not callable,
// when the hook returns undefined or null, and when the invocation or the
// result conversion faults (one warning, no propagation).
func (l *Loader) applyHook(name string, data item.Data) item.Data {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.obj == nil {
		return data
	}
	out, ok := guard(l.vm, l.id, name, func() (item.Data, error) {
		prop := l.obj.Get(name)
		if prop == nil {
			return nil, nil
		}
		fn, isFn := goja.AssertFunction(prop)
		if !isFn {
			return nil, nil
		}
		res, err := fn(l.obj, fromData(l.vm, data))
		if err != nil {
			return nil, err
		}
		if res == nil || goja.IsUndefined(res) || goja.IsNull(res) {
			return nil, nil
		}
		return toData(res)
	})
	if !ok || out == nil {
		return data
	}
	return out
}

// saverScript decorates a native Saver with a script's save-path hooks.
// Persistence and the remove/move decisions stay with the native saver; the
// script only post-processes item data on the copy and transform paths.
type saverScript struct {
	l    *Loader
	base loader.Saver
}

func (s *saverScript) Save(m loader.Model, w io.Writer) error {
	return s.base.Save(m, w)
}

func (s *saverScript) CanRemove(m loader.Model, rows []int) bool {
	return s.base.CanRemove(m, rows)
}

func (s *saverScript) CanMove(m loader.Model, rows []int) bool {
	return s.base.CanMove(m, rows)
}

func (s *saverScript) RemovedByUser(m loader.Model, rows []int) {
	s.base.RemovedByUser(m, rows)
}

// Copy lets the native saver produce the copy first; if it refuses there is
// nothing to offer the script. Otherwise the copyItem hook sees the native
// result and may replace it.
func (s *saverScript) Copy(m loader.Model, data item.Data) item.Data {
	copied := s.base.Copy(m, data)
	if copied == nil {
		return nil
	}
	return s.l.applyHook("copyItem", copied)
}

// Transform applies the native saver's transform first, then the
// transformItemData hook on its output.
func (s *saverScript) Transform(data item.Data) item.Data {
	return s.l.applyHook("transformItemData", s.base.Transform(data))
}
