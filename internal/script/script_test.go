package script

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// captureLog replaces the global logger for one test and returns the buffer
// receiving its output.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestSanitizeID(t *testing.T) {
	for in, want := range map[string]string{
		"my file!name.js": "my_file_name_js",
		"plain.js":        "plain_js",
		"under_score":     "under_score",
		"héllo.js":        "h_llo_js",
		"UPPER-9.JS":      "UPPER_9_JS",
		"":                "",
	} {
		require.Equal(t, want, sanitizeID(in), "sanitizeID(%q)", in)
	}
}

func TestOpenSource_ObjectBinding(t *testing.T) {
	l := OpenSource("collector.js", `
		scrivener_script = {
			name: 'URL collector',
			author: 'someone',
			description: 'keeps URLs around',
		}
	`)
	require.True(t, l.Loaded())
	require.Equal(t, "collector_js", l.ID())
	require.Equal(t, "URL collector", l.Name())
	require.Equal(t, "someone", l.Author())
	require.Equal(t, "keeps URLs around", l.Description())
	require.Equal(t, Priority, l.Priority())
	require.Equal(t, IconCog, l.Icon())
}

func TestOpenSource_FactoryBinding(t *testing.T) {
	l := OpenSource("factory.js", `
		function scrivener_script() {
			return { name: 'built by factory' }
		}
	`)
	require.True(t, l.Loaded())
	require.Equal(t, "built by factory", l.Name())
}

func TestOpenSource_NotLoaded(t *testing.T) {
	for name, src := range map[string]string{
		"empty file":        "",
		"whitespace only":   " \n\t\n",
		"no binding":        "var unrelated = 1",
		"scalar binding":    "scrivener_script = 'nope'",
		"numeric binding":   "scrivener_script = 42",
		"null binding":      "scrivener_script = null",
		"throw at toplevel": "throw new Error('broken')",
		"syntax error":      "function {",
		"throwing factory":  "function scrivener_script() { throw new Error('no') }",
	} {
		l := OpenSource("bad.js", src)
		require.False(t, l.Loaded(), "%s should not load", name)
	}
}

func TestOpenSource_FunctionObjectLoads(t *testing.T) {
	// Functions are objects; a factory returning a function still counts
	// as a script object.
	l := OpenSource("fn.js", `scrivener_script = function () { return function () {} }`)
	require.True(t, l.Loaded())
}

func TestOpen_MissingFile(t *testing.T) {
	buf := captureLog(t)
	l := Open(filepath.Join(t.TempDir(), "my file!name.js"))
	require.False(t, l.Loaded())
	require.Equal(t, "my_file_name_js", l.ID())
	require.Contains(t, buf.String(), "scripts::my_file_name_js: ")
	require.Contains(t, buf.String(), "failed to open script file")
}

func TestOpen_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.js")
	require.NoError(t, os.WriteFile(path, []byte(`scrivener_script = {name: 'from disk'}`), 0o644))
	l := Open(path)
	require.True(t, l.Loaded())
	require.Equal(t, "from disk", l.Name())
	require.Equal(t, path, l.Path())
}

func TestName_DefaultIsSanitizedBaseName(t *testing.T) {
	l := OpenSource("my file!name.js", `scrivener_script = {}`)
	require.True(t, l.Loaded())
	require.Equal(t, "my_file_name_js", l.Name())

	// Unloaded scripts degrade the same way.
	bad := OpenSource("my file!name.js", `throw 1`)
	require.False(t, bad.Loaded())
	require.Equal(t, "my_file_name_js", bad.Name())
}

func TestMetadata_FunctionProperties(t *testing.T) {
	l := OpenSource("dyn.js", `
		scrivener_script = {
			name: function () { return 'dynamic ' + 'name' },
			author: function () { return this.name() + "'s author" },
		}
	`)
	require.True(t, l.Loaded())
	require.Equal(t, "dynamic name", l.Name())
	require.Equal(t, "dynamic name's author", l.Author())
}

func TestMetadata_FaultFallsBackToDefault(t *testing.T) {
	buf := captureLog(t)
	l := OpenSource("grumpy.js", `
		scrivener_script = {
			name: function () { throw new Error('no name for you') },
		}
	`)
	require.True(t, l.Loaded())
	require.Equal(t, "grumpy_js", l.Name())
	require.Contains(t, buf.String(), "scripts::grumpy_js: ")
	require.Contains(t, buf.String(), "no name for you")

	// The interpreter survives the fault; other properties still work.
	require.Equal(t, "", l.Author())
}

func TestStringValue_EmptyStringIsAValue(t *testing.T) {
	l := OpenSource("empty.js", `scrivener_script = { name: '' }`)
	require.True(t, l.Loaded())
	require.Equal(t, "", l.Name())
}

func TestStringValue_NullFallsBackToDefault(t *testing.T) {
	l := OpenSource("null.js", `scrivener_script = { name: null }`)
	require.True(t, l.Loaded())
	require.Equal(t, "null_js", l.Name())
}

func TestFormatsToSave(t *testing.T) {
	l := OpenSource("formats.js", `
		scrivener_script = { formatsToSave: ['text/plain', 'text/html'] }
	`)
	require.Equal(t, []string{"text/plain", "text/html"}, l.FormatsToSave())
}

func TestFormatsToSave_SingleString(t *testing.T) {
	l := OpenSource("formats.js", `
		scrivener_script = { formatsToSave: 'text/plain' }
	`)
	require.Equal(t, []string{"text/plain"}, l.FormatsToSave())
}

func TestFormatsToSave_Function(t *testing.T) {
	l := OpenSource("formats.js", `
		scrivener_script = { formatsToSave: function () { return ['image/png'] } }
	`)
	require.Equal(t, []string{"image/png"}, l.FormatsToSave())
}

func TestFormatsToSave_AbsentOrUnusable(t *testing.T) {
	for name, src := range map[string]string{
		"absent":   `scrivener_script = {}`,
		"number":   `scrivener_script = { formatsToSave: 7 }`,
		"null":     `scrivener_script = { formatsToSave: null }`,
		"throwing": `scrivener_script = { formatsToSave: function () { throw 'x' } }`,
	} {
		l := OpenSource("formats.js", src)
		require.Empty(t, l.FormatsToSave(), "%s should yield no formats", name)
	}
}

func TestFormatsToSave_NonStringElements(t *testing.T) {
	l := OpenSource("formats.js", `
		scrivener_script = { formatsToSave: ['text/plain', 7] }
	`)
	require.Equal(t, []string{"text/plain", "7"}, l.FormatsToSave())
}

func TestConsole_SeverityMapping(t *testing.T) {
	buf := captureLog(t)
	l := OpenSource("chatty.js", `
		console.log('hello from', 'the script');
		console.warn('something is off');
		scrivener_script = {}
	`)
	require.True(t, l.Loaded())

	out := buf.String()
	require.Contains(t, out, "scripts::chatty_js: hello from the script")
	require.Contains(t, out, "scripts::chatty_js: something is off")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "level=INFO")
	require.Contains(t, lines[1], "level=WARN")
}

func TestScriptLog_PrefixesEveryLine(t *testing.T) {
	buf := captureLog(t)
	scriptLog(slog.LevelInfo, "x_js", "first\nsecond\nthird\n")
	require.Equal(t, 3, strings.Count(buf.String(), "scripts::x_js: "))
}

func TestGuard_TimeoutInterrupts(t *testing.T) {
	prev := callTimeout
	callTimeout = 50 * time.Millisecond
	t.Cleanup(func() { callTimeout = prev })

	buf := captureLog(t)
	start := time.Now()
	l := OpenSource("spin.js", `while (true) {}`)
	require.False(t, l.Loaded())
	require.Less(t, time.Since(start), 5*time.Second)
	require.Contains(t, buf.String(), "scripts::spin_js: ")
	require.Contains(t, buf.String(), "timed out")
}

func TestDiscover(t *testing.T) {
	captureLog(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.js"),
		[]byte(`scrivener_script = {name: 'good'}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.js"),
		[]byte(`throw new Error('nope')`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"),
		[]byte(`not a script`), 0o644))

	loaders := Discover(dir)
	require.Len(t, loaders, 1)
	require.Equal(t, "good_js", loaders[0].ID())
	require.Equal(t, "good", loaders[0].Name())
}

func TestDiscover_MissingDir(t *testing.T) {
	require.Empty(t, Discover(filepath.Join(t.TempDir(), "absent")))
}
