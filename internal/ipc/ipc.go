// Package ipc provides the local socket channel used by CLI sub-commands
// (copy/paste/status/scripts) to talk to a running scrivener server without
// opening a TCP connection.
//
// The channel carries the same newline-delimited JSON protocol as the TCP
// listener, unencrypted: the socket's file permissions are the trust
// boundary. The server listens on the socket; sub-commands probe for it and
// fall back to TCP when it is absent.
package ipc

import (
	"net"
	"os"
)

// SocketPath returns the platform-appropriate path for the IPC socket.
//
//   - Linux:   $XDG_RUNTIME_DIR/scrivener.sock, else $TMPDIR/scrivener.sock
//   - macOS:   $TMPDIR/scrivener.sock
//   - Windows: \\.\pipe\scrivener
//
// $SCRIVENER_SOCKET overrides all of the above.
func SocketPath() string {
	if s := os.Getenv("SCRIVENER_SOCKET"); s != "" {
		return s
	}
	return socketPath()
}

// IsRunning reports whether a scrivener server appears to be listening on
// the IPC socket. It does a cheap dial-and-close; no data is exchanged.
func IsRunning() bool {
	c, err := dialIPC(SocketPath())
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates and returns a net.Listener on the IPC socket path.
func Listen() (net.Listener, error) {
	return listenIPC(SocketPath())
}

// Dial connects to the IPC socket.
func Dial() (net.Conn, error) {
	return dialIPC(SocketPath())
}
