// Package peer serves wire-protocol connections against the history store:
// authentication, copy/paste/status requests and event streaming. The same
// handler serves the TCP listener (encrypted when a token is set) and the
// local IPC socket (plaintext, no auth).
package peer

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net"
	"time"

	"go.klb.dev/scrivener/internal/history"
	"go.klb.dev/scrivener/internal/message"
	"go.klb.dev/scrivener/internal/wire"
)

const authTimeout = 10 * time.Second

// Server holds what every connection needs.
type Server struct {
	Store  *history.Store
	Status func() *message.Status

	// Token enables auth when non-empty; Key enables encryption when
	// non-nil. The IPC socket passes neither.
	Token string
	Key   *[32]byte
}

// Serve handles one connection until it closes. Call in a goroutine.
func (s *Server) Serve(conn net.Conn) {
	defer conn.Close()
	wc := wire.New(conn, s.Key)
	log := slog.With("peer", conn.RemoteAddr().String())

	authed := s.Token == ""
	if !authed {
		wc.SetReadDeadline(authTimeout)
	}

	for {
		msg, err := wc.ReadMsg()
		if err != nil {
			return
		}

		if !authed {
			if msg.Type != message.TypeAuth {
				_ = wc.WriteMsg(&message.Message{Type: message.TypeError, Error: "auth_required"})
				return
			}
			tokenBytes, _ := base64.StdEncoding.DecodeString(msg.Payload)
			if string(tokenBytes) != s.Token {
				log.Warn("auth failed")
				_ = wc.WriteMsg(&message.Message{Type: message.TypeError, Error: "auth_failed"})
				return
			}
			authed = true
			wc.SetReadDeadline(0)
			log.Info("authenticated", "source", msg.Source)
			continue
		}

		switch msg.Type {
		case message.TypePing:
			_ = wc.WriteMsg(&message.Message{Type: message.TypePong})

		case message.TypeCopy:
			s.handleCopy(wc, log, msg)

		case message.TypePaste:
			s.handlePaste(wc, msg)

		case message.TypeStatus:
			_ = wc.WriteMsg(&message.Message{
				Type:   message.TypeStatusResponse,
				Status: s.Status(),
			})

		case message.TypeSubscribe:
			s.streamEvents(wc, log, msg)
			return

		default:
			_ = wc.WriteMsg(&message.Message{
				Type:  message.TypeError,
				Error: fmt.Sprintf("unsupported message type %q", msg.Type),
			})
		}
	}
}

// handleCopy adds the items to the tab, then copies the new top row so the
// clipboard watcher picks it up. Items the saver chain drops (transformed
// away, duplicate of the current top) are acknowledged without a copy; the
// previous top must not leak onto the clipboard.
func (s *Server) handleCopy(wc *wire.Conn, log *slog.Logger, msg *message.Message) {
	d, err := message.ToData(msg.Items)
	if err != nil {
		_ = wc.WriteMsg(&message.Message{Type: message.TypeError, Error: err.Error()})
		return
	}
	if d.IsEmpty() {
		_ = wc.WriteMsg(&message.Message{Type: message.TypeError, Error: "empty item"})
		return
	}

	added, err := s.Store.Add(msg.Tab, d)
	if err != nil {
		log.Warn("failed to persist item", "tab", msg.Tab, "err", err)
	}

	if added {
		copied, err := s.Store.Copy(msg.Tab, 0)
		if err != nil {
			_ = wc.WriteMsg(&message.Message{Type: message.TypeError, Error: err.Error()})
			return
		}
		log.Debug("item copied", "tab", msg.Tab, "to_clipboard", copied != nil)
	}
	_ = wc.WriteMsg(&message.Message{Type: message.TypeOK})
}

func (s *Server) handlePaste(wc *wire.Conn, msg *message.Message) {
	items := s.Store.Items(msg.Tab)
	if msg.Row < 0 || msg.Row >= len(items) {
		_ = wc.WriteMsg(&message.Message{
			Type:  message.TypeError,
			Error: fmt.Sprintf("row %d out of range", msg.Row),
		})
		return
	}

	reply := &message.Message{
		Type:  message.TypeItem,
		Tab:   msg.Tab,
		Row:   msg.Row,
		Items: message.FromData(items[msg.Row]),
	}
	if len(msg.Accept) > 0 {
		reply.Items = reply.FilterItems(msg.Accept)
	}
	_ = wc.WriteMsg(reply)
}

// streamEvents pushes history changes to the peer until it hangs up. A
// non-empty msg.Tab restricts the stream to that tab.
func (s *Server) streamEvents(wc *wire.Conn, log *slog.Logger, msg *message.Message) {
	events, cancel := s.Store.Subscribe()
	defer cancel()

	// Ack once the subscription is live; events published after the peer
	// reads this are guaranteed to be delivered.
	if err := wc.WriteMsg(&message.Message{Type: message.TypeOK}); err != nil {
		return
	}

	log.Info("event subscriber connected", "tab", msg.Tab)

	// Reader: notice the peer hanging up.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, err := wc.ReadMsg(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if msg.Tab != "" && ev.Tab != msg.Tab {
				continue
			}
			out := &message.Message{
				Type:  message.TypeEvent,
				Event: string(ev.Type),
				Tab:   ev.Tab,
				Row:   ev.Row,
			}
			if ev.Item != nil {
				out.Items = message.FromData(ev.Item)
			}
			if len(msg.Accept) > 0 {
				out.Items = out.FilterItems(msg.Accept)
			}
			if err := wc.WriteMsg(out); err != nil {
				return
			}
		}
	}
}
