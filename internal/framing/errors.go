package framing

import "errors"

// ErrMalformedFrame indicates a header block that could not be parsed
// (missing, non-numeric, or negative Content-Length, or a header line
// without a colon). It is fatal to the connection: once the length prefix
// is unreadable there is no way to find the next frame boundary.
var ErrMalformedFrame = errors.New("malformed frame")
