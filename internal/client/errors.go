package client

import "errors"

// Standard errors returned by the client engine.
var (
	// ErrNotConnected indicates a request before Start.
	ErrNotConnected = errors.New("client not connected")

	// ErrAlreadyStarted indicates a second Start on the same client.
	ErrAlreadyStarted = errors.New("client already started")

	// ErrConnectionClosed indicates a request issued after Close.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrConnectionLost indicates the transport failed (or was closed)
	// while requests were pending; every pending request fails with it.
	ErrConnectionLost = errors.New("connection lost")

	// ErrCancelled indicates the caller's context was cancelled while
	// awaiting a response. The request is removed from the ledger; no
	// wire-level cancellation is sent.
	ErrCancelled = errors.New("request cancelled")

	// ErrTimeout indicates the per-request timeout expired before a
	// response arrived.
	ErrTimeout = errors.New("request timed out")
)
