package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/lspwire/lspwire/internal/framing"
	"github.com/lspwire/lspwire/internal/ledger"
	"github.com/lspwire/lspwire/internal/protocol"
)

// wireServer is the far end of a net.Pipe, speaking raw LSP framing.
type wireServer struct {
	conn net.Conn
	fr   *framing.Reader
}

func startClient(t *testing.T, opts ...Option) (*Client, *wireServer) {
	t.Helper()

	clientConn, serverConn := net.Pipe()
	c := New(clientConn, opts...)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	srv := &wireServer{conn: serverConn, fr: framing.NewReader(serverConn)}
	t.Cleanup(func() {
		c.Close()
		serverConn.Close()
	})
	return c, srv
}

// readMessage decodes and classifies the next frame from the client.
func (s *wireServer) readMessage(t *testing.T) any {
	t.Helper()
	body, err := s.fr.ReadFrame()
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	msg, err := protocol.Classify(body)
	if err != nil {
		t.Fatalf("server classify: %v", err)
	}
	return msg
}

func (s *wireServer) readRequest(t *testing.T) *protocol.Request {
	t.Helper()
	req, ok := s.readMessage(t).(*protocol.Request)
	if !ok {
		t.Fatal("server expected a request")
	}
	return req
}

func (s *wireServer) sendRaw(t *testing.T, body []byte) {
	t.Helper()
	if err := framing.WriteFrame(s.conn, body); err != nil {
		t.Fatalf("server write: %v", err)
	}
}

func (s *wireServer) reply(t *testing.T, id protocol.ID, result any) {
	t.Helper()
	raw, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	body, err := json.Marshal(&protocol.Response{JSONRPC: protocol.Version, ID: id, Result: raw})
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	s.sendRaw(t, body)
}

func (s *wireServer) replyError(t *testing.T, id protocol.ID, code int, msg string) {
	t.Helper()
	body, err := json.Marshal(&protocol.Response{
		JSONRPC: protocol.Version,
		ID:      id,
		Error:   &protocol.ResponseError{Code: code, Message: msg},
	})
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	s.sendRaw(t, body)
}

func (s *wireServer) notify(t *testing.T, method string, params any) {
	t.Helper()
	n, err := protocol.NewNotification(method, params)
	if err != nil {
		t.Fatalf("build notification: %v", err)
	}
	body, err := n.Encode()
	if err != nil {
		t.Fatalf("encode notification: %v", err)
	}
	s.sendRaw(t, body)
}

func (s *wireServer) request(t *testing.T, id protocol.ID, method string, params any) {
	t.Helper()
	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	body, err := req.Encode()
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	s.sendRaw(t, body)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestClient_Call(t *testing.T) {
	c, srv := startClient(t)

	go func() {
		req := srv.readRequest(t)
		srv.reply(t, req.ID, map[string]string{"status": "ok"})
	}()

	var result map[string]string
	if err := c.Call(context.Background(), "test/method", nil, &result); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if result["status"] != "ok" {
		t.Errorf("result = %v", result)
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d after resolution, want 0", c.Pending())
	}
}

func TestClient_CallErrorResponse(t *testing.T) {
	c, srv := startClient(t)

	go func() {
		req := srv.readRequest(t)
		srv.replyError(t, req.ID, protocol.CodeMethodNotFound, "method not found")
	}()

	err := c.Call(context.Background(), "unknown/method", nil, nil)
	var rpcErr *protocol.ResponseError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("Call() error = %v, want *protocol.ResponseError", err)
	}
	if rpcErr.Code != protocol.CodeMethodNotFound {
		t.Errorf("Code = %d, want %d", rpcErr.Code, protocol.CodeMethodNotFound)
	}
}

func TestClient_ConcurrentCallsOutOfOrderResponses(t *testing.T) {
	const n = 8
	c, srv := startClient(t)

	// Collect all requests, then answer them newest-first so responses
	// arrive out of order relative to issuance.
	go func() {
		reqs := make([]*protocol.Request, 0, n)
		for i := 0; i < n; i++ {
			reqs = append(reqs, srv.readRequest(t))
		}
		for i := len(reqs) - 1; i >= 0; i-- {
			srv.reply(t, reqs[i].ID, map[string]any{"echo": json.RawMessage(reqs[i].Params)})
		}
	}()

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var result struct {
				Echo struct {
					Seq int `json:"seq"`
				} `json:"echo"`
			}
			err := c.Call(context.Background(), "test/echo", map[string]int{"seq": i}, &result)
			if err != nil {
				errs <- fmt.Errorf("call %d: %w", i, err)
				return
			}
			if result.Echo.Seq != i {
				errs <- fmt.Errorf("call %d got response for %d", i, result.Echo.Seq)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestClient_DuplicateID(t *testing.T) {
	c, srv := startClient(t)

	first, err := protocol.NewRequest(protocol.IntID(7), "test/a", nil)
	if err != nil {
		t.Fatal(err)
	}

	firstDone := make(chan error, 1)
	go func() {
		_, err := c.SendRequest(context.Background(), first)
		firstDone <- err
	}()

	// Hold the first request open.
	got := srv.readRequest(t)
	waitFor(t, "first request registered", func() bool { return c.Pending() == 1 })

	dup, err := protocol.NewRequest(protocol.IntID(7), "test/b", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.SendRequest(context.Background(), dup); !errors.Is(err, ledger.ErrDuplicateID) {
		t.Errorf("duplicate SendRequest() error = %v, want ErrDuplicateID", err)
	}

	// The original request is unaffected.
	srv.reply(t, got.ID, "done")
	if err := <-firstDone; err != nil {
		t.Errorf("original request failed: %v", err)
	}
}

func TestClient_UnmatchedResponseIgnored(t *testing.T) {
	c, srv := startClient(t)

	go func() {
		req := srv.readRequest(t)
		// A response nobody asked for, then the real one.
		srv.reply(t, protocol.IntID(9999), "stray")
		srv.reply(t, req.ID, "real")
	}()

	var result string
	if err := c.Call(context.Background(), "test/method", nil, &result); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if result != "real" {
		t.Errorf("result = %q, want real", result)
	}
	if c.State() != StateConnected {
		t.Errorf("State() = %v, unmatched response must not close the connection", c.State())
	}
}

func TestClient_UnrecognizedFrameDropped(t *testing.T) {
	c, srv := startClient(t)

	go func() {
		req := srv.readRequest(t)
		// Fits no message shape; must be dropped without killing anything.
		srv.sendRaw(t, []byte(`{"jsonrpc":"2.0","odd":true}`))
		srv.reply(t, req.ID, "ok")
	}()

	var result string
	if err := c.Call(context.Background(), "test/method", nil, &result); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %q", result)
	}
}

func TestClient_CloseFailsPending(t *testing.T) {
	c, srv := startClient(t)

	const n = 3
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			errs <- c.Call(context.Background(), fmt.Sprintf("test/slow%d", i), nil, nil)
		}(i)
	}

	// Absorb the requests but never answer.
	for i := 0; i < n; i++ {
		srv.readRequest(t)
	}
	waitFor(t, "all requests pending", func() bool { return c.Pending() == n })

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	for i := 0; i < n; i++ {
		if err := <-errs; !errors.Is(err, ErrConnectionLost) {
			t.Errorf("pending call error = %v, want ErrConnectionLost", err)
		}
	}

	if err := c.Call(context.Background(), "test/after", nil, nil); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Call() after close error = %v, want ErrConnectionClosed", err)
	}
	if c.State() != StateClosed {
		t.Errorf("State() = %v, want closed", c.State())
	}
}

func TestClient_TransportFailureFailsPending(t *testing.T) {
	c, srv := startClient(t)

	done := make(chan error, 1)
	go func() {
		done <- c.Call(context.Background(), "test/slow", nil, nil)
	}()

	srv.readRequest(t)
	waitFor(t, "request pending", func() bool { return c.Pending() == 1 })

	// Server drops the connection.
	srv.conn.Close()

	if err := <-done; !errors.Is(err, ErrConnectionLost) {
		t.Errorf("Call() error = %v, want ErrConnectionLost", err)
	}
	waitFor(t, "client closed", func() bool { return c.State() == StateClosed })
}

func TestClient_MalformedFrameFatal(t *testing.T) {
	c, srv := startClient(t)

	done := make(chan error, 1)
	go func() {
		done <- c.Call(context.Background(), "test/slow", nil, nil)
	}()

	srv.readRequest(t)
	waitFor(t, "request pending", func() bool { return c.Pending() == 1 })

	// Unparseable length header: byte alignment is lost for good.
	if _, err := srv.conn.Write([]byte("Content-Length: oops\r\n\r\n")); err != nil {
		t.Fatalf("server write: %v", err)
	}

	if err := <-done; !errors.Is(err, ErrConnectionLost) {
		t.Errorf("Call() error = %v, want ErrConnectionLost", err)
	}
	waitFor(t, "client closed", func() bool { return c.State() == StateClosed })
}

func TestClient_NotifyNeverRegisters(t *testing.T) {
	c, srv := startClient(t)

	read := make(chan *protocol.Notification, 1)
	go func() {
		msg := srv.readMessage(t)
		if n, ok := msg.(*protocol.Notification); ok {
			read <- n
		} else {
			close(read)
		}
	}()

	if err := c.Notify(context.Background(), "textDocument/didSave", map[string]string{"uri": "file:///a.go"}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d after notify, want 0", c.Pending())
	}

	n, ok := <-read
	if !ok {
		t.Fatal("server did not receive a notification")
	}
	if n.Method != "textDocument/didSave" {
		t.Errorf("method = %q", n.Method)
	}
}

func TestClient_Timeout(t *testing.T) {
	c, srv := startClient(t, WithRequestTimeout(50*time.Millisecond))

	go srv.readRequest(t) // absorb, never answer

	err := c.Call(context.Background(), "test/slow", nil, nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Call() error = %v, want ErrTimeout", err)
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d after timeout, want 0", c.Pending())
	}
	// Timeout cancels only that request; the connection survives.
	if c.State() != StateConnected {
		t.Errorf("State() = %v, want connected", c.State())
	}
}

func TestClient_CallerCancellation(t *testing.T) {
	c, srv := startClient(t)

	go srv.readRequest(t) // absorb, never answer

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Call(ctx, "test/slow", nil, nil)
	}()

	waitFor(t, "request pending", func() bool { return c.Pending() == 1 })
	cancel()

	if err := <-done; !errors.Is(err, ErrCancelled) {
		t.Errorf("Call() error = %v, want ErrCancelled", err)
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d after cancel, want 0", c.Pending())
	}
}

func TestClient_SinkDeliveryOrder(t *testing.T) {
	var mu sync.Mutex
	var got []string

	sink := SinkFuncs{
		OnNotification: func(method string, params json.RawMessage) {
			mu.Lock()
			got = append(got, "note:"+method)
			mu.Unlock()
		},
		OnServerRequest: func(req *protocol.Request) {
			mu.Lock()
			got = append(got, "req:"+req.Method)
			mu.Unlock()
		},
	}

	_, srv := startClient(t, WithSink(sink))

	srv.notify(t, "window/logMessage", map[string]any{"message": "a"})
	srv.request(t, protocol.IntID(1), "workspace/configuration", nil)
	srv.notify(t, "textDocument/publishDiagnostics", map[string]any{"uri": "file:///x.go"})

	want := []string{
		"note:window/logMessage",
		"req:workspace/configuration",
		"note:textDocument/publishDiagnostics",
	}
	waitFor(t, "all deliveries", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == len(want)
	})

	mu.Lock()
	defer mu.Unlock()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivery order = %v, want %v", got, want)
		}
	}
}

func TestClient_SendBeforeStart(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	c := New(clientConn)
	if err := c.Call(context.Background(), "test/x", nil, nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Call() before Start error = %v, want ErrNotConnected", err)
	}
	if err := c.Notify(context.Background(), "test/x", nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Notify() before Start error = %v, want ErrNotConnected", err)
	}
}

func TestClient_StartTwice(t *testing.T) {
	c, _ := startClient(t)
	if err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestClient_StringIDs(t *testing.T) {
	c, srv := startClient(t, WithStringIDs())

	go func() {
		body, err := srv.fr.ReadFrame()
		if err != nil {
			return
		}
		id := gjson.GetBytes(body, "id")
		if id.Type != gjson.String {
			t.Errorf("id type = %v, want string", id.Type)
		}
		srv.reply(t, protocol.StringID(id.String()), "ok")
	}()

	var result string
	if err := c.Call(context.Background(), "test/method", nil, &result); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %q", result)
	}
}

func TestClient_InitializeHandshake(t *testing.T) {
	c, srv := startClient(t)

	serverSeen := make(chan string, 2)
	go func() {
		req := srv.readRequest(t)
		serverSeen <- req.Method
		if got := req.Param("clientInfo.name").String(); got != "lspwire-test" {
			t.Errorf("clientInfo.name = %q", got)
		}
		if !req.Param("processId").Exists() {
			t.Error("initialize params missing processId")
		}
		srv.reply(t, req.ID, map[string]any{"capabilities": map[string]any{"hoverProvider": true}})

		if n, ok := srv.readMessage(t).(*protocol.Notification); ok {
			serverSeen <- n.Method
		}
	}()

	result, err := c.Initialize(context.Background(), protocol.InitializeOptions{
		ClientName:    "lspwire-test",
		ClientVersion: "0.0.1",
		RootURI:       "file:///tmp/proj",
	})
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if !gjson.GetBytes(result, "capabilities.hoverProvider").Bool() {
		t.Errorf("result = %s", result)
	}

	if err := c.Initialized(context.Background()); err != nil {
		t.Fatalf("Initialized() error = %v", err)
	}

	if m := <-serverSeen; m != "initialize" {
		t.Errorf("first message = %q, want initialize", m)
	}
	if m := <-serverSeen; m != "initialized" {
		t.Errorf("second message = %q, want initialized", m)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateUnconnected, "unconnected"},
		{StateConnected, "connected"},
		{StateClosing, "closing"},
		{StateClosed, "closed"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
