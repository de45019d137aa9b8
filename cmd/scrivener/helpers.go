package main

import (
	"encoding/base64"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/scrivener/internal/crypto"
	"go.klb.dev/scrivener/internal/ipc"
	"go.klb.dev/scrivener/internal/message"
	"go.klb.dev/scrivener/internal/wire"
)

func getenv(key string) string  { return os.Getenv(key) }
func hostname() (string, error) { return os.Hostname() }

func isContainerID(s string) bool {
	if len(s) < 12 || len(s) > 64 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// defaultSource returns a human-readable identifier for this host.
func defaultSource() string {
	for _, env := range []string{
		"SCRIVENER_SOURCE",
		"CONTAINER_NAME",
		"COMPOSE_SERVICE",
		"SERVICE_NAME",
		"HOSTNAME_FRIENDLY",
	} {
		if v := getenv(env); v != "" {
			return v
		}
	}
	h, err := hostname()
	if err != nil {
		return "unknown"
	}
	if isContainerID(h) {
		return "container-" + h[:8]
	}
	return h
}

// defaultHosts is the probe order used when --server is left at its default.
// IPC is tried first (before any TCP) by connect via ipc.IsRunning().
var defaultHosts = []string{
	"host.docker.internal",     // Docker Desktop (macOS / Windows / Docker Desktop Linux)
	"host.containers.internal", // Podman rootless
	"localhost",
}

const dialTimeout = 2 * time.Second

// connect returns a wire connection to a scrivener daemon plus a short
// transport description for display. The local IPC socket is preferred;
// --server forces TCP. The caller closes the connection.
func connect(cmd *cobra.Command, v *viper.Viper) (*wire.Conn, string, error) {
	if !cmd.Flags().Changed("server") && ipc.IsRunning() {
		if conn, err := ipc.Dial(); err == nil {
			return wire.New(conn, nil), fmt.Sprintf("ipc (%s)", ipc.SocketPath()), nil
		}
	}

	token := v.GetString("token")
	source := v.GetString("source")

	var key *[32]byte
	if token != "" {
		var err error
		key, err = crypto.DeriveKey(token)
		if err != nil {
			return nil, "", fmt.Errorf("key derivation: %w", err)
		}
	}

	addrs := []string{v.GetString("server")}
	if !cmd.Flags().Changed("server") {
		addrs = probeAddrs(v.GetString("server"))
	}

	var lastErr error
	for _, addr := range addrs {
		conn, err := net.DialTimeout("tcp", addr, dialTimeout)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", addr, err)
			continue
		}
		wc := wire.New(conn, key)
		if token != "" {
			if err := wc.WriteMsg(&message.Message{
				Type:    message.TypeAuth,
				Source:  source,
				Payload: encodeToken(token),
			}); err != nil {
				_ = wc.Close()
				lastErr = fmt.Errorf("%s: auth: %w", addr, err)
				continue
			}
		}
		return wc, fmt.Sprintf("tcp (%s)", addr), nil
	}
	return nil, "", fmt.Errorf("no reachable scrivener server: %w", lastErr)
}

// probeAddrs expands the default server address into the host probe list,
// keeping the configured port.
func probeAddrs(def string) []string {
	port := "8761"
	if _, p, err := net.SplitHostPort(def); err == nil {
		port = p
	}
	addrs := make([]string, 0, len(defaultHosts))
	for _, h := range defaultHosts {
		addrs = append(addrs, net.JoinHostPort(h, port))
	}
	return addrs
}

// request sends one message and waits for the daemon's reply.
func request(wc *wire.Conn, msg *message.Message) (*message.Message, error) {
	if err := wc.WriteMsg(msg); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	reply, err := wc.ReadMsg()
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	if reply.Type == message.TypeError {
		return nil, fmt.Errorf("server error: %s", reply.Error)
	}
	return reply, nil
}

func encodeToken(token string) string {
	return base64.StdEncoding.EncodeToString([]byte(token))
}
