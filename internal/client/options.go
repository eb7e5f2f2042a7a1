package client

import (
	"time"

	"github.com/rs/zerolog"
)

// Option configures a Client.
type Option func(*Client)

// WithSink registers the receiver for inbound notifications and server
// requests. Without a sink, server-initiated traffic is dropped.
func WithSink(sink Sink) Option {
	return func(c *Client) {
		c.sink = sink
	}
}

// WithLogger sets the logger for protocol violations and lifecycle events.
// The default is a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithRequestTimeout sets the default per-request timeout applied when the
// caller's context carries no deadline. Zero disables the default.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithStringIDs switches generated request ids from monotonically
// increasing integers to random UUID strings. Both are legal identifiers;
// string ids make request logs greppable across reconnects.
func WithStringIDs() Option {
	return func(c *Client) {
		c.stringIDs = true
	}
}

// WithDispatchQueueSize sets the inbound dispatch queue length. When the
// queue is full the read loop blocks until the sink catches up.
func WithDispatchQueueSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.queueSize = n
		}
	}
}
