// Package transport turns a connection target string into a duplex byte
// stream. The engine above it depends only on io.ReadWriteCloser; which
// wire the bytes travel over is decided here and nowhere else.
//
// Target grammar:
//
//	tcp:host:port     TCP socket
//	unix:/path.sock   local (UNIX domain) socket
//	ws://... wss://…  WebSocket URL
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

var (
	// ErrBadTarget indicates a target string that does not match the
	// scheme:address grammar.
	ErrBadTarget = errors.New("bad connection target")

	// ErrUnsupportedScheme indicates a scheme other than tcp, unix, or ws.
	ErrUnsupportedScheme = errors.New("unsupported transport scheme")
)

// Dial connects to target and returns the raw duplex stream.
func Dial(ctx context.Context, target string) (io.ReadWriteCloser, error) {
	if strings.HasPrefix(target, "ws://") || strings.HasPrefix(target, "wss://") {
		return dialWebSocket(ctx, target)
	}

	scheme, addr, ok := strings.Cut(target, ":")
	if !ok || addr == "" {
		return nil, fmt.Errorf("%w: %q (expected scheme:address)", ErrBadTarget, target)
	}

	var d net.Dialer
	switch scheme {
	case "tcp":
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("dial tcp %s: %w", addr, err)
		}
		return conn, nil
	case "unix":
		conn, err := d.DialContext(ctx, "unix", addr)
		if err != nil {
			return nil, fmt.Errorf("dial unix %s: %w", addr, err)
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("%w: %q (use tcp, unix, or ws)", ErrUnsupportedScheme, scheme)
	}
}
