package ledger

import "errors"

var (
	// ErrDuplicateID indicates a request id that is already outstanding.
	// Rejected before anything is written to the wire.
	ErrDuplicateID = errors.New("duplicate request id")

	// ErrUnmatchedResponse indicates a response whose id has no
	// outstanding entry. A server protocol violation; reported, not fatal.
	ErrUnmatchedResponse = errors.New("unmatched response id")
)
