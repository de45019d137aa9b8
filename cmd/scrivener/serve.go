package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soheilhy/cmux"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/scrivener/internal/clip"
	"go.klb.dev/scrivener/internal/crypto"
	"go.klb.dev/scrivener/internal/ctl"
	"go.klb.dev/scrivener/internal/history"
	"go.klb.dev/scrivener/internal/ipc"
	"go.klb.dev/scrivener/internal/itemimage"
	"go.klb.dev/scrivener/internal/loader"
	"go.klb.dev/scrivener/internal/message"
	"go.klb.dev/scrivener/internal/peer"
	"go.klb.dev/scrivener/internal/script"
	"go.klb.dev/scrivener/internal/storage"
	"go.klb.dev/scrivener/internal/watcher"
)

func newServeCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the clipboard history daemon",
		Long: `Starts the scrivener daemon. It watches the system clipboard, keeps a
persistent history of copied items organised into tabs, and runs every item
through the registered loaders (built-in plus any JavaScript loader scripts
found in --scripts-dir).

One TCP port serves two protocols: HTTP requests get the control API
(status, tab listings, a websocket event stream) and everything else is
treated as the newline-delimited JSON peer protocol used by the copy, paste
and status subcommands. The peer protocol is encrypted when a token is set;
the CLI tools on the same host use a plaintext local socket instead.

Config file search order:
  /etc/scrivener/scrivener.toml
  $HOME/.config/scrivener/scrivener.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → SCRIVENER_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runServe(v) },
	}

	f := cmd.Flags()
	f.String("addr", "0.0.0.0:8761", "TCP listen address")
	f.String("token", "", "shared secret (empty = generated and logged at startup)")
	f.Bool("no-clipboard", false, "disable system clipboard integration (history server only)")
	f.String("source", defaultSource(), "name for this host")
	f.String("tabs-dir", storage.DefaultDir(), "directory holding persisted tab files")
	f.String("scripts-dir", defaultScriptsDir(), "directory scanned for loader scripts (*.js)")
	f.Int("max-items", history.DefaultMaxItems, "maximum items kept per tab")
	f.String("default-tab", history.DefaultTab, "tab receiving clipboard captures")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runServe(v *viper.Viper) error {
	setupLogging(v)

	addr := v.GetString("addr")
	noClipboard := v.GetBool("no-clipboard")

	token := v.GetString("token")
	generated := false
	if token == "" {
		var err error
		token, err = crypto.NewToken()
		if err != nil {
			return fmt.Errorf("token generation: %w", err)
		}
		generated = true
	}
	key, err := crypto.DeriveKey(token)
	if err != nil {
		return fmt.Errorf("key derivation: %w", err)
	}

	slog.Info("scrivener starting",
		"version", Version,
		"addr", addr,
		"clipboard", !noClipboard,
	)
	if generated {
		slog.Info("generated session token, pass --token to reuse", "token", token)
	}

	reg := loader.NewRegistry()
	reg.Add(itemimage.New(itemimage.LoadSettings(v)))
	if dir := v.GetString("scripts-dir"); dir != "" {
		for _, l := range script.Discover(dir) {
			reg.Add(l)
		}
	}
	for _, l := range reg.Loaders() {
		slog.Info("item loader registered", "id", l.ID(), "name", l.Name(), "priority", l.Priority())
	}

	disk, err := storage.NewStore(v.GetString("tabs-dir"))
	if err != nil {
		return fmt.Errorf("tab storage: %w", err)
	}
	store := history.NewStore(disk, reg, v.GetInt("max-items"))
	if err := store.Open(); err != nil {
		return fmt.Errorf("loading tabs: %w", err)
	}
	slog.Info("history loaded", "tabs", len(store.Tabs()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var backend clip.Backend
	if !noClipboard {
		backend = clip.New()
		defer backend.Close()
		w := watcher.New(backend, store, v.GetString("default-tab"))
		go w.Run(ctx)
	}

	started := time.Now()
	status := func() *message.Status {
		return buildStatus(store, reg, backendName(backend), started)
	}

	// Encrypted peer protocol on TCP; plaintext and unauthenticated on the
	// local socket, where file permissions are the trust boundary.
	tcpPeer := &peer.Server{Store: store, Status: status, Token: token, Key: key}
	ipcPeer := &peer.Server{Store: store, Status: status}

	if ipcLn, err := ipc.Listen(); err != nil {
		slog.Warn("IPC socket unavailable", "err", err)
	} else {
		slog.Info("IPC socket listening", "path", ipc.SocketPath())
		defer ipcLn.Close()
		go acceptLoop(ctx, ipcLn, ipcPeer.Serve)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	slog.Info("listening", "addr", ln.Addr())

	// One port, two protocols: HTTP verbs go to the control API, anything
	// else is the NDJSON peer protocol.
	mux := cmux.New(ln)
	httpLn := mux.Match(cmux.HTTP1Fast())
	peerLn := mux.Match(cmux.Any())

	httpSrv := &http.Server{Handler: ctl.New(store, status, token).Handler()}
	go func() {
		if err := httpSrv.Serve(httpLn); err != nil && ctx.Err() == nil {
			slog.Error("control API serve failed", "err", err)
		}
	}()
	go acceptLoop(ctx, peerLn, tcpPeer.Serve)

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		_ = httpSrv.Close()
		_ = ln.Close()
	}()

	if err := mux.Serve(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// acceptLoop serves one listener until it closes, one goroutine per
// connection.
func acceptLoop(ctx context.Context, ln net.Listener, handle func(net.Conn)) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil {
				slog.Error("accept failed", "err", err)
			}
			return
		}
		go handle(conn)
	}
}

func buildStatus(store *history.Store, reg *loader.Registry, backend string, started time.Time) *message.Status {
	tabs := store.Tabs()
	st := &message.Status{
		Version: Version,
		PID:     os.Getpid(),
		Uptime:  time.Since(started).Round(time.Second).String(),
		Backend: backend,
		Tabs:    make([]message.TabInfo, 0, len(tabs)),
	}
	for _, name := range tabs {
		st.Tabs = append(st.Tabs, message.TabInfo{Name: name, Items: store.Len(name)})
	}
	for _, l := range reg.Loaders() {
		st.Loaders = append(st.Loaders, message.LoaderInfo{
			ID:          l.ID(),
			Name:        l.Name(),
			Author:      l.Author(),
			Description: l.Description(),
			Priority:    l.Priority(),
			Formats:     l.FormatsToSave(),
		})
	}
	return st
}

func backendName(b clip.Backend) string {
	if b == nil {
		return "disabled"
	}
	return b.Name()
}
