// Package ledger tracks outstanding JSON-RPC requests by identifier and
// hands each one its response (or failure) exactly once.
//
// The ledger is the correlation point between the client's read loop, which
// resolves entries as response frames decode, and callers awaiting those
// responses. Registration, resolution, and cancellation of different ids
// never block one another beyond the map critical section.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/lspwire/lspwire/internal/protocol"
)

// Outcome is the terminal result of a pending request: a response from the
// server or a client-side failure, never both.
type Outcome struct {
	Response *protocol.Response
	Err      error
}

// Pending is the completion slot for one outstanding request. It is owned
// by the Ledger; callers hold it only to await resolution.
type Pending struct {
	id       protocol.ID
	issuedAt time.Time
	ch       chan Outcome
}

// ID returns the request identifier this slot tracks.
func (p *Pending) ID() protocol.ID { return p.id }

// IssuedAt returns when the request was registered.
func (p *Pending) IssuedAt() time.Time { return p.issuedAt }

// Done returns a channel that receives the outcome exactly once.
func (p *Pending) Done() <-chan Outcome { return p.ch }

// Wait blocks until the request resolves or ctx ends. On ctx expiry the
// entry is NOT cancelled; the caller decides whether to Cancel on the
// ledger (the client engine does).
func (p *Pending) Wait(ctx context.Context) (*protocol.Response, error) {
	select {
	case out := <-p.ch:
		return out.Response, out.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ledger is the in-memory table of outstanding requests.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]*Pending
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[string]*Pending)}
}

// Register creates a completion slot for id. It fails with ErrDuplicateID
// while a request with the same id is still outstanding.
func (l *Ledger) Register(id protocol.ID) (*Pending, error) {
	if id.IsZero() {
		return nil, ErrDuplicateID // an absent id can never be tracked
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := id.Key()
	if _, exists := l.entries[key]; exists {
		return nil, ErrDuplicateID
	}

	p := &Pending{
		id:       id,
		issuedAt: time.Now(),
		ch:       make(chan Outcome, 1),
	}
	l.entries[key] = p
	return p, nil
}

// Resolve removes the entry for resp.ID and completes it with resp. A
// response whose id has no entry fails with ErrUnmatchedResponse; the
// caller reports it and moves on. A second resolution of the same id takes
// this path too, since the first one removed the entry.
func (l *Ledger) Resolve(id protocol.ID, resp *protocol.Response) error {
	p := l.remove(id)
	if p == nil {
		return ErrUnmatchedResponse
	}
	p.ch <- Outcome{Response: resp}
	return nil
}

// Cancel removes the entry for id and fails its slot with cause. It
// reports whether an entry was found; cancelling an already-resolved or
// unknown id is a no-op.
func (l *Ledger) Cancel(id protocol.ID, cause error) bool {
	p := l.remove(id)
	if p == nil {
		return false
	}
	p.ch <- Outcome{Err: cause}
	return true
}

// FailAll drains the ledger, failing every outstanding entry with cause.
// Used when the connection is lost or closed. Returns the number of
// entries failed.
func (l *Ledger) FailAll(cause error) int {
	l.mu.Lock()
	entries := l.entries
	l.entries = make(map[string]*Pending)
	l.mu.Unlock()

	for _, p := range entries {
		p.ch <- Outcome{Err: cause}
	}
	return len(entries)
}

// Len returns the number of outstanding requests.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// remove detaches and returns the entry for id, or nil.
// The send to p.ch happens after the entry leaves the map, so each slot
// completes at most once; the channel's buffer of one means the send never
// blocks.
func (l *Ledger) remove(id protocol.ID) *Pending {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := id.Key()
	p, ok := l.entries[key]
	if !ok {
		return nil
	}
	delete(l.entries, key)
	return p
}
