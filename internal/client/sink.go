package client

import (
	"encoding/json"

	"github.com/lspwire/lspwire/internal/protocol"
)

// Sink receives server-initiated traffic. Notifications and server-to-
// client requests arrive on separate methods so callers can tell them
// apart; within one connection the combined delivery order matches wire
// arrival order.
//
// Sink methods run on the client's dispatch goroutine. Blocking in them
// stalls later deliveries and, once the queue fills, the read loop.
type Sink interface {
	// Notification delivers an inbound notification.
	Notification(method string, params json.RawMessage)

	// ServerRequest delivers a request the server issued to the client.
	// The engine does not answer it; responding (or not) is the sink's
	// business.
	ServerRequest(req *protocol.Request)
}

// SinkFuncs adapts plain functions to the Sink interface. Nil fields drop
// the corresponding deliveries.
type SinkFuncs struct {
	OnNotification  func(method string, params json.RawMessage)
	OnServerRequest func(req *protocol.Request)
}

// Notification implements Sink.
func (s SinkFuncs) Notification(method string, params json.RawMessage) {
	if s.OnNotification != nil {
		s.OnNotification(method, params)
	}
}

// ServerRequest implements Sink.
func (s SinkFuncs) ServerRequest(req *protocol.Request) {
	if s.OnServerRequest != nil {
		s.OnServerRequest(req)
	}
}
