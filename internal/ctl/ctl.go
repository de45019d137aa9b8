// Package ctl implements the HTTP control surface served on the
// multiplexed TCP listener: JSON status and tab inspection, plus a
// websocket stream of history events.
package ctl

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v3/process"

	"go.klb.dev/scrivener/internal/history"
	"go.klb.dev/scrivener/internal/message"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	// The control port is loopback or token-guarded; origin checks add
	// nothing for non-browser clients.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Server answers control requests against one history store.
type Server struct {
	store  *history.Store
	status func() *message.Status
	token  string
}

// New returns a control server. status supplies the application-level
// status body; token guards every endpoint when non-empty.
func New(store *history.Store, status func() *message.Status, token string) *Server {
	return &Server{store: store, status: status, token: token}
}

// Handler returns the routed, auth-guarded handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/tabs", s.handleTabs)
	mux.HandleFunc("GET /v1/tabs/{tab}/items", s.handleTabItems)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	return s.auth(mux)
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// statusResponse widens the shared status body with process stats.
type statusResponse struct {
	message.Status
	RSSBytes   uint64  `json:"rss_bytes,omitempty"`
	CPUPercent float64 `json:"cpu_percent,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{Status: *s.status()}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfo(); err == nil && mi != nil {
			resp.RSSBytes = mi.RSS
		}
		if cpu, err := p.CPUPercent(); err == nil {
			resp.CPUPercent = cpu
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTabs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"tabs": s.store.Tabs()})
}

type tabItemsResponse struct {
	Tab   string           `json:"tab"`
	Items [][]message.Item `json:"items"`
}

func (s *Server) handleTabItems(w http.ResponseWriter, r *http.Request) {
	tab := r.PathValue("tab")
	if !s.store.Has(tab) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such tab"})
		return
	}
	items := s.store.Items(tab)
	resp := tabItemsResponse{Tab: tab, Items: make([][]message.Item, len(items))}
	for i, d := range items {
		resp.Items[i] = message.FromData(d)
	}
	writeJSON(w, http.StatusOK, resp)
}

// wsEvent is the JSON form of one history event on the websocket.
type wsEvent struct {
	Type  string         `json:"type"`
	Tab   string         `json:"tab"`
	Row   int            `json:"row"`
	Items []message.Item `json:"items,omitempty"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the handshake completes so a client never misses
	// events published right after its dial returns.
	events, cancel := s.store.Subscribe()
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close()

	slog.Debug("event subscriber connected", "remote", r.RemoteAddr)

	// Drain client frames so a close is noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			out := wsEvent{Type: string(ev.Type), Tab: ev.Tab, Row: ev.Row}
			if ev.Item != nil {
				out.Items = message.FromData(ev.Item)
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(out); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("control response write failed", "err", err)
	}
}
