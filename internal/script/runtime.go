package script

import (
	"sync"

	"github.com/dop251/goja"
)

// Scriptable returns a fresh per-item runtime for this script: the same
// identity and cached program source, its own interpreter. Every call
// returns a new independent instance; two runtimes share nothing beyond the
// source text, so item activations cannot observe each other's state.
func (l *Loader) Scriptable() *Runtime {
	return &Runtime{id: l.id, src: l.src}
}

// Runtime is one per-item script execution context. Construct via
// Loader.Scriptable, call Start once, then look up or invoke the globals
// the script defined. All faults are contained.
type Runtime struct {
	id  string
	src string

	mu      sync.Mutex
	vm      *goja.Runtime
	started bool
}

// ID returns the identity shared with the originating loader.
func (r *Runtime) ID() string { return r.id }

// Start evaluates the cached program source in the runtime's own fresh
// interpreter and reports whether evaluation succeeded. Faults are
// contained. Calling Start again has no further effect and returns the
// first result.
func (r *Runtime) Start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.vm != nil {
		return r.started
	}
	r.vm = goja.New()
	installConsole(r.vm, r.id)
	_, ok := guard(r.vm, r.id, "start()", func() (goja.Value, error) {
		return r.vm.RunScript(r.id, r.src)
	})
	r.started = ok
	return ok
}

// Started reports whether Start succeeded.
func (r *Runtime) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Global returns a top-level binding from the started runtime, or nil when
// the runtime is not started or the binding is absent.
func (r *Runtime) Global(name string) goja.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return nil
	}
	v, ok := guard(r.vm, r.id, "global "+name, func() (goja.Value, error) {
		return r.vm.GlobalObject().Get(name), nil
	})
	if !ok || v == nil || goja.IsUndefined(v) {
		return nil
	}
	return v
}

// Invoke calls a global function defined by the script with no arguments.
// ok is false when the runtime is not started, the binding is absent or not
// callable, or the call faulted.
func (r *Runtime) Invoke(name string) (goja.Value, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return nil, false
	}
	v, ok := guard(r.vm, r.id, name+"()", func() (goja.Value, error) {
		bound := r.vm.GlobalObject().Get(name)
		if bound == nil {
			return nil, nil
		}
		fn, isFn := goja.AssertFunction(bound)
		if !isFn {
			return nil, nil
		}
		return fn(goja.Undefined())
	})
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
