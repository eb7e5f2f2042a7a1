package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lspwire/lspwire/internal/framing"
	"github.com/lspwire/lspwire/internal/ledger"
	"github.com/lspwire/lspwire/internal/protocol"
	"github.com/lspwire/lspwire/internal/transport"
)

// defaultRequestTimeout bounds requests whose context carries no deadline.
const defaultRequestTimeout = 30 * time.Second

// defaultQueueSize is the inbound dispatch queue length.
const defaultQueueSize = 64

// Client is a JSON-RPC connection to one language server.
type Client struct {
	conn   io.ReadWriteCloser
	ledger *ledger.Ledger
	log    zerolog.Logger
	sink   Sink

	writeMu sync.Mutex

	nextID    atomic.Int64
	stringIDs bool

	state     atomic.Int32
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	timeout   time.Duration
	queueSize int
	queue     chan inbound
}

// inbound is one server-initiated message awaiting sink delivery.
type inbound struct {
	note *protocol.Notification
	req  *protocol.Request
}

// New creates a client over an established duplex stream. The client does
// not read from conn until Start.
func New(conn io.ReadWriteCloser, opts ...Option) *Client {
	c := &Client{
		conn:      conn,
		ledger:    ledger.New(),
		log:       zerolog.Nop(),
		timeout:   defaultRequestTimeout,
		queueSize: defaultQueueSize,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.queue = make(chan inbound, c.queueSize)
	return c
}

// Dial connects to a transport target (see the transport package for the
// grammar) and starts a client over it.
func Dial(ctx context.Context, target string, opts ...Option) (*Client, error) {
	conn, err := transport.Dial(ctx, target)
	if err != nil {
		return nil, err
	}
	c := New(conn, opts...)
	if err := c.Start(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// Start transitions the client to Connected and launches the read loop.
// Cancelling ctx closes the connection.
func (c *Client) Start(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateUnconnected), int32(StateConnected)) {
		return ErrAlreadyStarted
	}

	c.log.Debug().Msg("lsp client connected")

	go c.readLoop()
	go c.dispatchLoop()
	go func() {
		select {
		case <-ctx.Done():
			c.shutdown(nil)
		case <-c.done:
		}
	}()

	return nil
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Close tears the connection down: the read loop stops, every pending
// request fails with ErrConnectionLost, and later sends fail with
// ErrConnectionClosed. Safe to call more than once.
func (c *Client) Close() error {
	c.shutdown(nil)
	return c.closeErr
}

// shutdown performs the single Closing -> Closed transition. cause is the
// transport error that triggered it, nil for an orderly close.
func (c *Client) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosing))

		if cause != nil {
			c.log.Warn().Err(cause).Msg("connection failed")
		} else {
			c.log.Debug().Msg("closing connection")
		}

		// Closing the stream unblocks the read loop.
		c.closeErr = c.conn.Close()

		if n := c.ledger.FailAll(ErrConnectionLost); n > 0 {
			c.log.Debug().Int("pending", n).Msg("failed outstanding requests")
		}

		close(c.done)
		c.state.Store(int32(StateClosed))
	})
}

// --- Outbound ---

// Call issues a request and blocks until its response arrives. A response
// carrying an error member is returned as *protocol.ResponseError. On
// success the result is unmarshaled into result when non-nil.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	req, err := protocol.NewRequest(c.newID(), method, params)
	if err != nil {
		return err
	}

	resp, err := c.SendRequest(ctx, req)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}

// SendRequest registers req in the ledger, writes it, and awaits the
// matching response. Unlike Call it hands back error responses as data,
// not as a Go error, for callers that inspect the full response.
func (c *Client) SendRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if err := c.sendable(); err != nil {
		return nil, err
	}

	payload, err := req.Encode()
	if err != nil {
		return nil, err
	}

	p, err := c.ledger.Register(req.ID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	if err := c.write(payload); err != nil {
		// The entry must still resolve exactly once. shutdown may have
		// drained it already; Cancel is a no-op then.
		c.ledger.Cancel(req.ID, ErrConnectionLost)
		<-p.Done()
		return nil, err
	}

	select {
	case out := <-p.Done():
		return out.Response, out.Err
	case <-ctx.Done():
		cause := ErrCancelled
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			cause = ErrTimeout
		}
		if c.ledger.Cancel(req.ID, cause) {
			return nil, cause
		}
		// Lost the race: the response (or a failure) landed first.
		out := <-p.Done()
		return out.Response, out.Err
	}
}

// Notify writes a notification and returns once the transport accepts it.
// Notifications are never tracked by the ledger; the protocol defines no
// acknowledgment for them.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	if err := c.sendable(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	n, err := protocol.NewNotification(method, params)
	if err != nil {
		return err
	}
	payload, err := n.Encode()
	if err != nil {
		return err
	}
	return c.write(payload)
}

// Initialize performs the initialize request and returns the server's raw
// result (capabilities, server info).
func (c *Client) Initialize(ctx context.Context, opts protocol.InitializeOptions) (json.RawMessage, error) {
	req, err := protocol.NewInitializeRequest(c.newID(), opts)
	if err != nil {
		return nil, err
	}
	resp, err := c.SendRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

// Initialized sends the initialized notification that completes the
// handshake begun by Initialize.
func (c *Client) Initialized(ctx context.Context) error {
	if err := c.sendable(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := protocol.NewInitializedNotification().Encode()
	if err != nil {
		return err
	}
	return c.write(payload)
}

// Pending returns the number of requests awaiting responses.
func (c *Client) Pending() int {
	return c.ledger.Len()
}

// sendable rejects sends outside the Connected state.
func (c *Client) sendable() error {
	switch c.State() {
	case StateConnected:
		return nil
	case StateUnconnected:
		return ErrNotConnected
	default:
		return ErrConnectionClosed
	}
}

// requestContext applies the default timeout when the caller set none.
func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return ctx, func() {}
}

// newID generates the next request identifier.
func (c *Client) newID() protocol.ID {
	if c.stringIDs {
		return protocol.StringID(uuid.NewString())
	}
	return protocol.IntID(c.nextID.Add(1))
}

// write sends one framed payload. Frames from concurrent senders are
// serialized here so they never interleave on the wire. A write failure is
// fatal to the connection.
func (c *Client) write(payload []byte) error {
	c.writeMu.Lock()
	err := framing.WriteFrame(c.conn, payload)
	c.writeMu.Unlock()

	if err != nil {
		c.shutdown(err)
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	return nil
}

// --- Inbound ---

// readLoop owns the inbound stream: it decodes frames one at a time and
// routes them until the stream ends or framing breaks.
func (c *Client) readLoop() {
	defer close(c.queue)

	fr := framing.NewReader(c.conn)
	for {
		body, err := fr.ReadFrame()
		if err != nil {
			switch {
			case c.State() != StateConnected:
				// Orderly close; the read error is just the stream dying.
			case errors.Is(err, framing.ErrMalformedFrame):
				// Byte alignment is gone; nothing after this frame can
				// be trusted.
				c.log.Error().Err(err).Msg("malformed frame, closing connection")
			case errors.Is(err, io.EOF):
				c.log.Debug().Msg("server closed the stream")
			default:
				c.log.Warn().Err(err).Msg("transport read failed")
			}
			c.shutdown(err)
			return
		}
		c.handleFrame(body)
	}
}

// handleFrame classifies one decoded frame and routes it.
func (c *Client) handleFrame(body []byte) {
	msg, err := protocol.Classify(body)
	if err != nil {
		// Recoverable: report and drop the frame.
		c.log.Warn().Err(err).Msg("dropping unrecognized message")
		return
	}

	switch m := msg.(type) {
	case *protocol.Response:
		if err := c.ledger.Resolve(m.ID, m); err != nil {
			c.log.Warn().Stringer("id", m.ID).Msg("dropping response with no matching request")
		}
	case *protocol.Notification:
		c.queue <- inbound{note: m}
	case *protocol.Request:
		c.queue <- inbound{req: m}
	}
}

// dispatchLoop delivers server-initiated messages to the sink in wire
// arrival order.
func (c *Client) dispatchLoop() {
	for msg := range c.queue {
		c.deliver(msg)
	}
}

func (c *Client) deliver(msg inbound) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("sink panicked")
		}
	}()

	if c.sink == nil {
		return
	}
	if msg.note != nil {
		c.sink.Notification(msg.note.Method, msg.note.Params)
	} else if msg.req != nil {
		c.sink.ServerRequest(msg.req)
	}
}
