// Package message defines the scrivener wire protocol.
//
// All messages are newline-delimited JSON. Payloads are always base64-encoded
// so that binary content (images, etc.) is safe to embed in JSON strings.
// Each message is exactly one line: <json>\n
package message

import (
	"encoding/base64"
	"fmt"

	"github.com/goccy/go-json"

	"go.klb.dev/scrivener/internal/item"
)

// Type identifies the kind of message.
type Type string

const (
	// TypeCopy adds items to a tab and places them on the clipboard.
	TypeCopy Type = "COPY"
	// TypePaste requests one history item; the server answers with TypeItem.
	TypePaste Type = "PASTE"
	// TypeItem carries the items answering a PASTE.
	TypeItem Type = "ITEM"
	// TypeSubscribe asks the server to stream history changes as TypeEvent.
	TypeSubscribe Type = "SUBSCRIBE"
	// TypeEvent is one history change pushed to a subscriber.
	TypeEvent          Type = "EVENT"
	TypePing           Type = "PING"
	TypePong           Type = "PONG"
	TypeAuth           Type = "AUTH"
	TypeStatus         Type = "STATUS"
	TypeStatusResponse Type = "STATUS_RESPONSE"
	TypeOK             Type = "OK"
	TypeError          Type = "ERROR"
)

// Item is a single representation of a history item with a MIME type.
// Data is always base64-encoded.
type Item struct {
	MIME string `json:"mime"`
	Data string `json:"data"` // base64-encoded
}

// NewTextItem creates a text/plain Item from a plain string.
func NewTextItem(text string) Item {
	return Item{
		MIME: item.MimeText,
		Data: base64.StdEncoding.EncodeToString([]byte(text)),
	}
}

// NewBinaryItem creates an Item from raw bytes with the given MIME type.
func NewBinaryItem(mime string, data []byte) Item {
	return Item{
		MIME: mime,
		Data: base64.StdEncoding.EncodeToString(data),
	}
}

// Decode returns the raw bytes of the item payload.
func (it Item) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(it.Data)
}

// FromData converts a history item to wire items, one per format, in sorted
// format order.
func FromData(d item.Data) []Item {
	formats := d.Formats()
	out := make([]Item, 0, len(formats))
	for _, format := range formats {
		out = append(out, NewBinaryItem(format, d[format]))
	}
	return out
}

// ToData converts wire items back to a history item.
func ToData(items []Item) (item.Data, error) {
	d := make(item.Data, len(items))
	for _, it := range items {
		payload, err := it.Decode()
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", it.MIME, err)
		}
		d[it.MIME] = payload
	}
	return d, nil
}

// TabInfo summarises one tab in a STATUS_RESPONSE.
type TabInfo struct {
	Name  string `json:"name"`
	Items int    `json:"items"`
}

// LoaderInfo summarises one registered item loader in a STATUS_RESPONSE.
type LoaderInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Author      string   `json:"author,omitempty"`
	Description string   `json:"description,omitempty"`
	Priority    int      `json:"priority"`
	Formats     []string `json:"formats,omitempty"`
}

// Status is the body of a STATUS_RESPONSE.
type Status struct {
	Version string       `json:"version"`
	PID     int          `json:"pid"`
	Uptime  string       `json:"uptime"`
	Backend string       `json:"backend"`
	Tabs    []TabInfo    `json:"tabs,omitempty"`
	Loaders []LoaderInfo `json:"loaders,omitempty"`
}

// Message is the top-level wire envelope.
type Message struct {
	// Always present
	Type   Type   `json:"type"`
	Source string `json:"source,omitempty"`

	// COPY / PASTE / EVENT: target tab; empty means the default tab
	Tab string `json:"tab,omitempty"`

	// PASTE / EVENT: history row
	Row int `json:"row,omitempty"`

	// COPY / ITEM / EVENT: the item representations, one per MIME type
	Items []Item `json:"items,omitempty"`

	// AUTH: the token, base64-encoded
	Payload string `json:"payload,omitempty"`

	// PASTE / SUBSCRIBE: MIME types this peer wants back; empty means all
	Accept []string `json:"accept,omitempty"`

	// EVENT: the history event name
	Event string `json:"event,omitempty"`

	// STATUS_RESPONSE
	Status *Status `json:"status,omitempty"`

	// ERROR
	Error string `json:"error,omitempty"`
}

// Encode serialises the message to JSON without a trailing newline.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode deserialises a message from raw JSON bytes.
func Decode(b []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("message decode: %w", err)
	}
	return &m, nil
}

// TextPayload returns the decoded content of the first text/plain item, or "".
func (m *Message) TextPayload() string {
	for _, it := range m.Items {
		if it.MIME == item.MimeText {
			b, err := it.Decode()
			if err != nil {
				return ""
			}
			return string(b)
		}
	}
	return ""
}

// FilterItems returns only the items whose MIME type appears in accepted.
// If accepted is empty all items are returned unchanged.
func (m *Message) FilterItems(accepted []string) []Item {
	if len(accepted) == 0 {
		return m.Items
	}
	set := make(map[string]struct{}, len(accepted))
	for _, a := range accepted {
		set[a] = struct{}{}
	}
	var out []Item
	for _, it := range m.Items {
		if _, ok := set[it.MIME]; ok {
			out = append(out, it)
		}
	}
	return out
}
