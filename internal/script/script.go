// Package script implements item loaders backed by user-provided JavaScript
// files. A script file defines a single well-known top-level binding,
// scrivener_script, holding either the script object itself or a
// zero-argument factory for it:
//
//	scrivener_script = {
//	    name: 'URL collector',
//	    author: 'someone',
//	    formatsToSave: ['text/plain', 'text/uri-list'],
//	    transformItemData: function (data) {
//	        // return undefined to keep data as-is, or a replacement object
//	    },
//	}
//
// The object's properties are capabilities: metadata (name, author,
// description, formatsToSave) and save-path hooks (copyItem,
// transformItemData) that decorate a tab's native saver.
//
// Scripts are untrusted in the soft sense: a broken script must never take
// the daemon down. Every interpreter entry point is wrapped in a fault
// guard; evaluation errors, thrown exceptions, bad hook results and runaway
// scripts degrade to logged warnings and no-ops.
package script

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// scriptBinding is the well-known top-level name a script file must define,
// either as the script object itself or as a zero-argument factory for it.
const scriptBinding = "scrivener_script"

// IconCog is the gear glyph shown for script loaders in listings.
const IconCog = ""

// Priority of every script loader: below the built-in loaders, so scripts
// only claim items no built-in wants.
const Priority = 20

// callTimeout bounds any single excursion into a script. A script stuck in
// a loop is interrupted and the interruption contained like any other fault.
var callTimeout = 10 * time.Second

// Loader is an item loader backed by one script file. The zero value is not
// usable; construct with Open or OpenSource. A Loader that failed to load
// (unreadable file, evaluation fault, no script object) is still a valid
// value: Loaded reports false and every accessor degrades to its default.
type Loader struct {
	id   string
	path string
	src  string

	// mu serialises all interpreter access; goja runtimes are not safe
	// for concurrent use.
	mu  sync.Mutex
	vm  *goja.Runtime
	obj *goja.Object // nil = not loaded
}

// Open reads and loads the script file at path. Open never fails: a script
// that cannot be read or evaluated yields a loader with Loaded() == false
// and the fault logged under the script's identity.
func Open(path string) *Loader {
	id := sanitizeID(filepath.Base(path))
	src, err := os.ReadFile(path)
	if err != nil {
		scriptLog(slog.LevelError, id, "failed to open script file: "+err.Error())
		return &Loader{id: id, path: path}
	}
	return open(path, string(src))
}

// OpenSource loads a script from in-memory source. The path contributes
// only the loader's identity; nothing is read from disk.
func OpenSource(path, source string) *Loader {
	return open(path, source)
}

func open(path, source string) *Loader {
	l := &Loader{
		id:   sanitizeID(filepath.Base(path)),
		path: path,
		src:  source,
		vm:   goja.New(),
	}
	installConsole(l.vm, l.id)
	l.obj = l.extract()
	return l
}

// extract evaluates the program and resolves the script object from the
// well-known binding: a callable binding is invoked with no arguments, any
// other value is used directly. Any fault discards the object.
func (l *Loader) extract() *goja.Object {
	if _, ok := guard(l.vm, l.id, "evaluate", func() (goja.Value, error) {
		return l.vm.RunScript(l.id, l.src)
	}); !ok {
		return nil
	}

	v, ok := guard(l.vm, l.id, scriptBinding, func() (goja.Value, error) {
		bound := l.vm.GlobalObject().Get(scriptBinding)
		if bound == nil || goja.IsUndefined(bound) || goja.IsNull(bound) {
			return nil, nil
		}
		if factory, isFn := goja.AssertFunction(bound); isFn {
			return factory(goja.Undefined())
		}
		return bound, nil
	})
	if !ok || v == nil {
		return nil
	}
	obj, isObj := v.(*goja.Object)
	if !isObj {
		return nil
	}
	return obj
}

// Loaded reports whether the script produced a usable script object.
func (l *Loader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.obj != nil
}

// ID returns the loader's identity: the script's base file name with every
// rune outside [A-Za-z0-9_] replaced by '_'.
func (l *Loader) ID() string { return l.id }

// Path returns the script file path as given to Open.
func (l *Loader) Path() string { return l.path }

// Icon returns the fixed gear glyph; script loaders are not customisable here.
func (l *Loader) Icon() string { return IconCog }

// Priority returns the fixed script loader priority.
func (l *Loader) Priority() int { return Priority }

// Name returns the script's name property; default is the sanitized base
// file name.
func (l *Loader) Name() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stringValue("name", l.id)
}

// Author returns the script's author property, if any.
func (l *Loader) Author() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stringValue("author", "")
}

// Description returns the script's description property, if any.
func (l *Loader) Description() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stringValue("description", "")
}

// FormatsToSave returns the content types the script wants persisted: the
// formatsToSave property coerced to a string list. An array yields its
// elements' string forms, a single string yields a one-element list,
// anything else yields an empty list.
func (l *Loader) FormatsToSave() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.value("formatsToSave")
	if !ok || goja.IsNull(v) {
		return nil
	}
	formats, ok := guard(l.vm, l.id, "formatsToSave", func() ([]string, error) {
		switch exported := v.Export().(type) {
		case string:
			return []string{exported}, nil
		case []any:
			out := make([]string, len(exported))
			for i, e := range exported {
				out[i] = fmt.Sprint(e)
			}
			return out, nil
		}
		return nil, nil
	})
	if !ok {
		return nil
	}
	return formats
}

// value resolves the named property of the script object, invoking it with
// no arguments when callable (script object as this). ok is false when the
// loader is unloaded, the property is absent or undefined, or a fault
// occurred.
//
// Callers hold l.mu.
func (l *Loader) value(name string) (goja.Value, bool) {
	if l.obj == nil {
		return nil, false
	}
	v, ok := guard(l.vm, l.id, "property "+name, func() (goja.Value, error) {
		prop := l.obj.Get(name)
		if prop == nil || goja.IsUndefined(prop) {
			return nil, nil
		}
		if fn, isFn := goja.AssertFunction(prop); isFn {
			return fn(l.obj)
		}
		return prop, nil
	})
	if !ok || v == nil || goja.IsUndefined(v) {
		return nil, false
	}
	return v, true
}

// stringValue resolves the named property as a string: absent, null and
// faulted values yield def; an empty string is a value, not an absence.
//
// Callers hold l.mu.
func (l *Loader) stringValue(name, def string) string {
	v, ok := l.value(name)
	if !ok || goja.IsNull(v) {
		return def
	}
	s, ok := guard(l.vm, l.id, "property "+name, func() (string, error) {
		return v.String(), nil
	})
	if !ok {
		return def
	}
	return s
}

// sanitizeID maps a script file's base name to its identity: every rune
// outside [A-Za-z0-9_] becomes '_'.
func sanitizeID(base string) string {
	var b strings.Builder
	b.Grow(len(base))
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
