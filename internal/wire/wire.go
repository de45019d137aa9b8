// Package wire handles reading and writing newline-delimited JSON messages
// over a net.Conn, with optional lz4 compression and NaCl secretbox
// encryption.
//
// Wire format (unencrypted):
//
//	<json>\n
//	z<base64(lz4-frame(json))>\n
//
// Wire format (encrypted):
//
//	<base64(nonce+ciphertext)>\n
//
// Compression is applied before encryption, so the sealed plaintext is
// either raw JSON (first byte '{') or 'z' followed by an lz4 frame. The
// framing logic is identical in all cases: every line is one message.
package wire

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/pierrec/lz4"

	"go.klb.dev/scrivener/internal/crypto"
	"go.klb.dev/scrivener/internal/message"
)

const (
	// MaxMessageSize is the largest message we will read (16 MiB).
	MaxMessageSize = 16 * 1024 * 1024

	// compressThreshold is the encoded size above which a message is
	// compressed. Small messages are left readable on the wire.
	compressThreshold = 4 * 1024

	// compressedPrefix marks an lz4-compressed payload. Unambiguous
	// because raw JSON always starts with '{'.
	compressedPrefix = 'z'

	writeDeadline = 5 * time.Second
)

// Conn wraps a net.Conn with buffered newline-delimited JSON framing,
// transparent compression of large messages and optional encryption.
type Conn struct {
	conn net.Conn
	br   *bufio.Reader
	key  *[32]byte // nil = no encryption
}

// New wraps conn. If key is non-nil every message is encrypted with NaCl
// secretbox before being written and decrypted after being read.
func New(conn net.Conn, key *[32]byte) *Conn {
	return &Conn{
		conn: conn,
		br:   bufio.NewReaderSize(conn, 64*1024),
		key:  key,
	}
}

// Underlying returns the underlying net.Conn.
func (c *Conn) Underlying() net.Conn { return c.conn }

// SetReadDeadline sets or clears the read deadline.
func (c *Conn) SetReadDeadline(d time.Duration) {
	if d == 0 {
		_ = c.conn.SetReadDeadline(time.Time{})
	} else {
		_ = c.conn.SetReadDeadline(time.Now().Add(d))
	}
}

// SetWriteDeadline sets or clears the write deadline.
func (c *Conn) SetWriteDeadline(d time.Duration) {
	if d == 0 {
		_ = c.conn.SetWriteDeadline(time.Time{})
	} else {
		_ = c.conn.SetWriteDeadline(time.Now().Add(d))
	}
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.conn.Close() }

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// WriteMsg serialises msg to JSON, compresses it when large, optionally
// encrypts it, and writes it followed by a newline.
func (c *Conn) WriteMsg(msg *message.Message) error {
	raw, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	payload := raw
	if len(raw) >= compressThreshold {
		if packed, err := compress(raw); err == nil && len(packed) < len(raw) {
			payload = packed
		}
	}

	var line []byte
	if c.key != nil {
		ct, err := crypto.Seal(payload, c.key)
		if err != nil {
			return fmt.Errorf("encrypt: %w", err)
		}
		b64 := base64.StdEncoding.EncodeToString(ct)
		line = append([]byte(b64), '\n')
	} else if payload[0] == compressedPrefix {
		b64 := base64.StdEncoding.EncodeToString(payload[1:])
		line = append([]byte{compressedPrefix}, b64...)
		line = append(line, '\n')
	} else {
		line = append(payload, '\n')
	}

	c.SetWriteDeadline(writeDeadline)
	_, err = c.conn.Write(line)
	c.SetWriteDeadline(0)
	return err
}

// ReadMsg reads one newline-terminated line, optionally decrypts and
// decompresses it, and deserialises it into a Message.
func (c *Conn) ReadMsg() (*message.Message, error) {
	line, err := c.readLine()
	if err != nil {
		return nil, err
	}

	// Strip trailing newline
	line = line[:len(line)-1]
	if len(line) == 0 {
		return nil, fmt.Errorf("empty message")
	}

	var raw []byte
	switch {
	case c.key != nil:
		ct, err := base64.StdEncoding.DecodeString(string(line))
		if err != nil {
			return nil, fmt.Errorf("base64 decode: %w", err)
		}
		raw, err = crypto.Open(ct, c.key)
		if err != nil {
			return nil, fmt.Errorf("decrypt: %w", err)
		}
		if len(raw) > 0 && raw[0] == compressedPrefix {
			raw, err = decompress(raw[1:])
			if err != nil {
				return nil, err
			}
		}
	case line[0] == compressedPrefix:
		packed, err := base64.StdEncoding.DecodeString(string(line[1:]))
		if err != nil {
			return nil, fmt.Errorf("base64 decode: %w", err)
		}
		raw, err = decompress(packed)
		if err != nil {
			return nil, err
		}
	default:
		raw = line
	}

	return message.Decode(raw)
}

// readLine accumulates one newline-terminated line, enforcing the size cap
// while reading rather than after, so an oversized peer cannot make us
// buffer an unbounded line.
func (c *Conn) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, err := c.br.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > MaxMessageSize {
			return nil, fmt.Errorf("message too large (%d bytes)", len(line))
		}
		switch err {
		case nil:
			return line, nil
		case bufio.ErrBufferFull:
			continue
		default:
			return nil, err
		}
	}
}

// compress returns compressedPrefix followed by an lz4 frame of raw.
func compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(compressedPrefix)
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(packed []byte) ([]byte, error) {
	zr := lz4.NewReader(bytes.NewReader(packed))
	raw, err := io.ReadAll(io.LimitReader(zr, MaxMessageSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if len(raw) > MaxMessageSize {
		return nil, fmt.Errorf("message too large after decompression")
	}
	return raw, nil
}
