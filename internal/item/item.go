// Package item defines the clipboard item data model: a mapping from
// content-type identifier to opaque payload bytes. One clipboard snapshot or
// one history entry is one Data value carrying every representation of the
// same logical item at once (plain text alongside HTML alongside PNG).
package item

import (
	"bytes"
	"slices"
	"strings"
)

// Well-known content types.
const (
	MimeText = "text/plain"
	MimeHTML = "text/html"
	MimePNG  = "image/png"
	MimeBMP  = "image/bmp"
	MimeJPEG = "image/jpeg"
	MimeGIF  = "image/gif"
	MimeSVG  = "image/svg+xml"

	// MimePrefix marks vendor formats private to this application. They
	// never reach the system clipboard.
	MimePrefix = "application/x-scrivener-"

	// MimeOwner marks items written to the system clipboard by this
	// process, so the watcher can skip re-ingesting its own writes.
	MimeOwner = MimePrefix + "owner"

	// MimeHidden marks items whose contents must not be previewed or
	// offered to item loaders.
	MimeHidden = MimePrefix + "hidden"
)

// Data is one item: content type → payload. Payloads are opaque bytes with
// no text-encoding guarantees. Pipeline stages treat Data as a value: a
// transform returns a new (or the unchanged) map and never mutates a map
// owned by its caller.
type Data map[string][]byte

// NewText returns an item holding a single plain-text payload.
func NewText(s string) Data {
	return Data{MimeText: []byte(s)}
}

// Clone returns a deep copy of d. Clone of an empty or nil item is an empty
// non-nil item.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	for format, payload := range d {
		out[format] = bytes.Clone(payload)
	}
	return out
}

// Formats returns the content types present in d, sorted.
func (d Data) Formats() []string {
	formats := make([]string, 0, len(d))
	for format := range d {
		formats = append(formats, format)
	}
	slices.Sort(formats)
	return formats
}

// Has reports whether format is present in d.
func (d Data) Has(format string) bool {
	_, ok := d[format]
	return ok
}

// Text returns the plain-text payload, or "" if d has none.
func (d Data) Text() string {
	return string(d[MimeText])
}

// IsEmpty reports whether d carries no payloads.
func (d Data) IsEmpty() bool {
	return len(d) == 0
}

// Public returns a deep copy of d without vendor formats. The result is
// what may be offered to the system clipboard or remote peers.
func (d Data) Public() Data {
	out := make(Data, len(d))
	for format, payload := range d {
		if strings.HasPrefix(format, MimePrefix) {
			continue
		}
		out[format] = bytes.Clone(payload)
	}
	return out
}

// Equal reports whether d and o carry identical formats and payloads.
func (d Data) Equal(o Data) bool {
	if len(d) != len(o) {
		return false
	}
	for format, payload := range d {
		other, ok := o[format]
		if !ok || !bytes.Equal(payload, other) {
			return false
		}
	}
	return true
}
