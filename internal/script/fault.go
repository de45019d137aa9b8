package script

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dop251/goja"
)

// guard runs fn with interpreter faults contained: a returned error, a panic
// out of the interpreter (thrown exceptions surface as panics on native call
// paths) and a timeout interrupt are all logged as warnings against id and
// reported as !ok. The interpreter stays usable afterwards; no fault state
// leaks into the next call.
func guard[T any](vm *goja.Runtime, id, op string, fn func() (T, error)) (out T, ok bool) {
	timer := time.AfterFunc(callTimeout, func() {
		vm.Interrupt("call timed out after " + callTimeout.String())
	})
	defer func() {
		timer.Stop()
		// The interrupt may fire between fn returning and Stop; clear it
		// unconditionally so it cannot poison the next call.
		vm.ClearInterrupt()
		if r := recover(); r != nil {
			containFault(id, op, fmt.Sprintf("%v", r))
			var zero T
			out, ok = zero, false
		}
	}()

	res, err := fn()
	if err != nil {
		containFault(id, op, err.Error())
		var zero T
		return zero, false
	}
	return res, true
}

// containFault records one contained script fault. Faults never propagate;
// a warning under the script's identity is all that remains of them.
func containFault(id, op, detail string) {
	scriptLog(slog.LevelWarn, id, "exception in "+op+": "+detail)
}
