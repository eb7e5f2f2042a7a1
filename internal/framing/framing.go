// Package framing implements the LSP base protocol wire framing: each
// JSON-RPC payload is prefixed by a Content-Length header block terminated
// by an empty line.
//
// The Decoder is incremental. Bytes are appended with Feed and complete
// frame bodies are pulled with Next, so the byte stream may arrive in
// arbitrarily small chunks (including one byte at a time) without losing
// or duplicating frames.
package framing

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// headerContentLength is the only header the protocol requires. The field
// name must round-trip exactly as written here on outgoing frames; incoming
// frames match it case-insensitively.
const headerContentLength = "Content-Length"

var (
	crlf      = []byte("\r\n")
	headerEnd = []byte("\r\n\r\n")
)

// Encode wraps payload in a Content-Length framed message.
func Encode(payload []byte) []byte {
	header := headerContentLength + ": " + strconv.Itoa(len(payload)) + "\r\n\r\n"
	out := make([]byte, 0, len(header)+len(payload))
	out = append(out, header...)
	return append(out, payload...)
}

// WriteFrame writes payload to w with the Content-Length header.
// Callers that share w between goroutines must serialize calls; a partially
// interleaved frame corrupts the stream for good.
func WriteFrame(w io.Writer, payload []byte) error {
	if _, err := fmt.Fprintf(w, "%s: %d\r\n\r\n", headerContentLength, len(payload)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// Decoder accumulates raw bytes and splits them into frame bodies.
// The zero value is ready to use.
type Decoder struct {
	buf []byte
}

// Feed appends raw bytes from the transport to the decode buffer.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Buffered returns the number of bytes awaiting decoding.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Next returns the body of the next complete frame, or (nil, nil) when the
// buffered bytes do not yet contain one. Incomplete input is left in the
// buffer untouched. A header block that cannot be parsed fails with
// ErrMalformedFrame; at that point byte alignment with the peer is lost and
// the connection cannot be salvaged.
func (d *Decoder) Next() ([]byte, error) {
	end := bytes.Index(d.buf, headerEnd)
	if end < 0 {
		return nil, nil // header block incomplete
	}

	length := -1
	for _, line := range bytes.Split(d.buf[:end], crlf) {
		if len(line) == 0 {
			continue
		}
		name, value, ok := bytes.Cut(line, []byte{':'})
		if !ok {
			return nil, fmt.Errorf("%w: header line %q", ErrMalformedFrame, line)
		}
		if !bytes.EqualFold(bytes.TrimSpace(name), []byte(headerContentLength)) {
			continue // ignore Content-Type and friends
		}
		n, err := strconv.Atoi(string(bytes.TrimSpace(value)))
		if err != nil {
			return nil, fmt.Errorf("%w: bad %s %q", ErrMalformedFrame, headerContentLength, bytes.TrimSpace(value))
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: negative %s", ErrMalformedFrame, headerContentLength)
		}
		length = n
	}
	if length < 0 {
		return nil, fmt.Errorf("%w: missing %s header", ErrMalformedFrame, headerContentLength)
	}

	bodyStart := end + len(headerEnd)
	if len(d.buf)-bodyStart < length {
		return nil, nil // partial body
	}

	body := make([]byte, length)
	copy(body, d.buf[bodyStart:bodyStart+length])

	// Compact rather than reslice so consumed frames don't pin the old
	// backing array.
	rest := d.buf[bodyStart+length:]
	d.buf = append(d.buf[:0], rest...)

	return body, nil
}

// Reader pumps an io.Reader through a Decoder and yields frame bodies.
type Reader struct {
	r    io.Reader
	dec  Decoder
	rbuf []byte
}

// NewReader creates a frame reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, rbuf: make([]byte, 8*1024)}
}

// ReadFrame blocks until a complete frame arrives and returns its body.
// Frames already buffered are drained before the underlying reader's error
// is surfaced.
func (r *Reader) ReadFrame() ([]byte, error) {
	for {
		body, err := r.dec.Next()
		if body != nil || err != nil {
			return body, err
		}

		n, err := r.r.Read(r.rbuf)
		if n > 0 {
			r.dec.Feed(r.rbuf[:n])
		}
		if err != nil {
			// A frame may have completed with this final chunk.
			if body, derr := r.dec.Next(); body != nil || derr != nil {
				return body, derr
			}
			return nil, err
		}
	}
}
