// Package client implements the connection engine of the LSP wire stack.
//
// A Client owns one duplex byte stream to a language server. It frames and
// unframes JSON-RPC messages, correlates outgoing requests with their
// responses through a ledger, and hands server-initiated traffic to a
// caller-registered sink.
//
// # Architecture
//
// The engine is built from the packages below it:
//
//   - framing: Content-Length wire framing, incremental decode
//   - protocol: message model, ids, classification, initialize builders
//   - ledger: outstanding-request table, one completion per id
//   - transport: target strings to duplex streams
//
// # Quick Start
//
//	conn, err := transport.Dial(ctx, "tcp:127.0.0.1:9257")
//	if err != nil { ... }
//
//	c := client.New(conn, client.WithSink(sink))
//	if err := c.Start(ctx); err != nil { ... }
//	defer c.Close()
//
//	result, err := c.Initialize(ctx, protocol.InitializeOptions{
//	    ClientName: "mytool",
//	    RootURI:    protocol.FilePathToURI("/path/to/project"),
//	})
//
//	var symbols any
//	err = c.Call(ctx, "workspace/symbol", map[string]string{"query": "Foo"}, &symbols)
//
// # Concurrency
//
// Any number of goroutines may issue requests concurrently. A single read
// loop owns the inbound stream; writes are serialized so concurrent frames
// never interleave. Awaiting a response parks only the calling goroutine.
// Inbound notifications and server requests are delivered to the sink in
// wire arrival order by one dispatch goroutine; a sink that blocks
// eventually backpressures the read loop, so sinks should hand work off
// rather than do it inline.
//
// # Lifecycle
//
// A Client moves Unconnected -> Connected -> Closing -> Closed and never
// skips or revisits a state. Transport failures and malformed frames close
// the connection and fail every pending request with ErrConnectionLost;
// requests issued after close fail with ErrConnectionClosed. Every
// registered request resolves exactly once.
package client
