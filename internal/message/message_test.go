package message

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go.klb.dev/scrivener/internal/item"
)

func TestFromData_SortedByFormat(t *testing.T) {
	d := item.Data{
		item.MimePNG:  []byte{1, 2},
		item.MimeText: []byte("txt"),
		item.MimeHTML: []byte("<b>"),
	}

	items := FromData(d)
	require.Len(t, items, 3)
	require.Equal(t, item.MimePNG, items[0].MIME)
	require.Equal(t, item.MimeHTML, items[1].MIME)
	require.Equal(t, item.MimeText, items[2].MIME)
}

func TestToData_RoundTrip(t *testing.T) {
	d := item.Data{
		item.MimeText: []byte("hello"),
		item.MimePNG:  {0x89, 0x50, 0x4e, 0x47},
	}

	back, err := ToData(FromData(d))
	require.NoError(t, err)
	require.True(t, back.Equal(d))
}

func TestToData_BadBase64(t *testing.T) {
	_, err := ToData([]Item{{MIME: item.MimeText, Data: "not base64!"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), item.MimeText)
}

func TestTextPayload(t *testing.T) {
	m := &Message{Items: []Item{
		NewBinaryItem(item.MimePNG, []byte{1}),
		NewTextItem("plain"),
	}}
	require.Equal(t, "plain", m.TextPayload())
	require.Empty(t, (&Message{}).TextPayload())
}

func TestFilterItems(t *testing.T) {
	m := &Message{Items: []Item{
		NewTextItem("a"),
		NewBinaryItem(item.MimePNG, []byte{1}),
	}}

	require.Len(t, m.FilterItems(nil), 2)

	onlyText := m.FilterItems([]string{item.MimeText})
	require.Len(t, onlyText, 1)
	require.Equal(t, item.MimeText, onlyText[0].MIME)

	require.Empty(t, m.FilterItems([]string{"application/pdf"}))
}

func TestEncodeDecode(t *testing.T) {
	m := &Message{
		Type:   TypePaste,
		Tab:    "notes",
		Row:    3,
		Accept: []string{item.MimeText},
	}

	raw, err := m.Encode()
	require.NoError(t, err)

	got, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, m, got)

	_, err = Decode([]byte("{broken"))
	require.Error(t, err)
}
