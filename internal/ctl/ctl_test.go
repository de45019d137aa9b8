package ctl

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"go.klb.dev/scrivener/internal/history"
	"go.klb.dev/scrivener/internal/item"
	"go.klb.dev/scrivener/internal/message"
)

func testServer(t *testing.T, token string) (*httptest.Server, *history.Store) {
	t.Helper()
	store := history.NewStore(nil, nil, 0)
	status := func() *message.Status {
		return &message.Status{Version: "test", PID: 123, Backend: "fake"}
	}
	ts := httptest.NewServer(New(store, status, token).Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func get(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestStatusEndpoint(t *testing.T) {
	ts, _ := testServer(t, "")

	resp := get(t, ts.URL+"/v1/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "test", body.Version)
	require.Equal(t, 123, body.PID)
	require.Equal(t, "fake", body.Backend)
}

func TestAuthRequired(t *testing.T) {
	ts, _ := testServer(t, "sekrit")

	require.Equal(t, http.StatusUnauthorized, get(t, ts.URL+"/v1/status", "").StatusCode)
	require.Equal(t, http.StatusUnauthorized, get(t, ts.URL+"/v1/status", "wrong").StatusCode)
	require.Equal(t, http.StatusOK, get(t, ts.URL+"/v1/status", "sekrit").StatusCode)
}

func TestTabsEndpoint(t *testing.T) {
	ts, store := testServer(t, "")
	_, err := store.Add("notes", item.NewText("x"))
	require.NoError(t, err)

	resp := get(t, ts.URL+"/v1/tabs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, []string{"notes"}, body["tabs"])
}

func TestTabItemsEndpoint(t *testing.T) {
	ts, store := testServer(t, "")
	_, err := store.Add("notes", item.NewText("hello"))
	require.NoError(t, err)

	resp := get(t, ts.URL+"/v1/tabs/notes/items", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body tabItemsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "notes", body.Tab)
	require.Len(t, body.Items, 1)

	d, err := message.ToData(body.Items[0])
	require.NoError(t, err)
	require.Equal(t, "hello", d.Text())
}

func TestTabItemsUnknownTab(t *testing.T) {
	ts, _ := testServer(t, "")
	resp := get(t, ts.URL+"/v1/tabs/ghost/items", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEventStream(t *testing.T) {
	ts, store := testServer(t, "")

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	_, err = store.Add("notes", item.NewText("pushed"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev wsEvent
	require.NoError(t, conn.ReadJSON(&ev))
	require.Equal(t, string(history.EventAdded), ev.Type)
	require.Equal(t, "notes", ev.Tab)

	d, err := message.ToData(ev.Items)
	require.NoError(t, err)
	require.Equal(t, "pushed", d.Text())
}

func TestEventStreamHonoursToken(t *testing.T) {
	ts, _ := testServer(t, "sekrit")

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/events"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	header := http.Header{"Authorization": []string{"Bearer sekrit"}}
	conn, resp2, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	resp2.Body.Close()
	conn.Close()
}
