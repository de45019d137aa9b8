package script

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dop251/goja"
)

// scriptLog writes msg to the global logger with every line prefixed by the
// script's identity label ("scripts::<id>: "), so multi-line diagnostics
// stay attributable.
func scriptLog(level slog.Level, id, msg string) {
	label := "scripts::" + id + ": "
	lines := strings.Split(strings.TrimRight(msg, "\n"), "\n")
	for i, line := range lines {
		lines[i] = label + line
	}
	slog.Log(context.Background(), level, strings.Join(lines, "\n"))
}

// installConsole gives the script a console object routed to the host
// logger. Fault-ish channels (warn, error) map to warnings; the rest is
// informational.
func installConsole(vm *goja.Runtime, id string) {
	emit := func(level slog.Level) func(args ...goja.Value) {
		return func(args ...goja.Value) {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = a.String()
			}
			scriptLog(level, id, strings.Join(parts, " "))
		}
	}
	console := vm.NewObject()
	_ = console.Set("log", emit(slog.LevelInfo))
	_ = console.Set("info", emit(slog.LevelInfo))
	_ = console.Set("warn", emit(slog.LevelWarn))
	_ = console.Set("error", emit(slog.LevelWarn))
	_ = vm.Set("console", console)
}
