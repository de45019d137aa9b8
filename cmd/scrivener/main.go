// scrivener: scriptable clipboard history.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.klb.dev/scrivener/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "scrivener",
		Short: "Scriptable clipboard history",
		Long: `scrivener keeps a history of everything you copy, organised into tabs,
and lets JavaScript item loaders rename, transform, or veto items as they
pass through.

Run "scrivener serve" to start the daemon. It watches the system clipboard,
persists history to disk, and serves both a JSON-over-TCP protocol and an
HTTP control API on the same port. Use "scrivener copy/paste/status" as CLI
tools against a running daemon, and "scrivener scripts" to inspect loaders.

Config file search order (first found wins):
  /etc/scrivener/scrivener.toml
  $HOME/.config/scrivener/scrivener.toml
  path supplied via --config

All flags can be set via SCRIVENER_<FLAG> env vars or config-file keys.
See "scrivener serve --help" for the full flag reference.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newCopyCmd(),
		newPasteCmd(),
		newStatusCmd(),
		newScriptsCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("scrivener %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	logging.Setup(format, level)
}
