package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidID indicates a request identifier that is neither an
	// integer nor a string.
	ErrInvalidID = errors.New("invalid request id")

	// ErrUnrecognizedMessage indicates a frame body that fits none of the
	// request/notification/response shapes. The frame is dropped; the
	// connection continues.
	ErrUnrecognizedMessage = errors.New("unrecognized message shape")
)

// ResponseError is the error member of a JSON-RPC response.
type ResponseError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("rpc error %d: %s (data: %s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// LSP-specific errors
	CodeServerNotInitialized = -32002
	CodeUnknownErrorCode     = -32001
	CodeRequestCancelled     = -32800
	CodeContentModified      = -32801
	CodeServerCancelled      = -32802
	CodeRequestFailed        = -32803
)
