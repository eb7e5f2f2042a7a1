package transport

import (
	"context"
	"fmt"
	"io"

	"github.com/gorilla/websocket"
)

// dialWebSocket connects a WebSocket URL and adapts it to a byte stream.
// LSP framing rides inside the socket's binary messages; message boundaries
// carry no meaning here, the frame decoder re-segments the bytes itself.
func dialWebSocket(ctx context.Context, url string) (io.ReadWriteCloser, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return &wsStream{conn: conn}, nil
}

// wsStream presents a websocket connection as an io.ReadWriteCloser.
// Safe for one concurrent reader and one concurrent writer, which matches
// the engine's single read loop and serialized writes.
type wsStream struct {
	conn *websocket.Conn
	r    io.Reader // current in-progress message, nil between messages
}

func (s *wsStream) Read(p []byte) (int, error) {
	for {
		if s.r == nil {
			_, r, err := s.conn.NextReader()
			if err != nil {
				return 0, translateClose(err)
			}
			s.r = r
		}
		n, err := s.r.Read(p)
		if err == io.EOF {
			// Message exhausted; move on to the next one.
			s.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (s *wsStream) Write(p []byte) (int, error) {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, translateClose(err)
	}
	return len(p), nil
}

func (s *wsStream) Close() error {
	// Best-effort close handshake; the peer may already be gone.
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}

// translateClose maps a websocket close to io.EOF so the read loop treats
// it like any other stream ending.
func translateClose(err error) error {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		return io.EOF
	}
	return err
}
