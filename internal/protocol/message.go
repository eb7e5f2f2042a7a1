// Package protocol defines the JSON-RPC 2.0 message model used by the LSP
// wire engine: requests, notifications, responses, and the identifier type
// that correlates them.
//
// Incoming frame bodies are classified by shape, not by method name: a
// message with both id and method is a request, method without id is a
// notification, and id without method is a response. Servers are allowed to
// send requests too, so all three shapes flow in both directions.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Version is the JSON-RPC protocol version stamped on every message.
const Version = "2.0"

// Request is a JSON-RPC call expecting a response with the same id.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Notification is a fire-and-forget JSON-RPC message. It carries no id and
// never receives a response.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response answers exactly one prior Request. Exactly one of Result and
// Error is present.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// NewRequest builds a request, marshaling params to JSON. A nil params
// omits the field entirely.
func NewRequest(id ID, method string, params any) (*Request, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Request{JSONRPC: Version, ID: id, Method: method, Params: raw}, nil
}

// NewNotification builds a notification, marshaling params to JSON.
func NewNotification(method string, params any) (*Notification, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Notification{JSONRPC: Version, Method: method, Params: raw}, nil
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	if raw, ok := params.(json.RawMessage); ok {
		return raw, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	return raw, nil
}

// Encode serializes the request for the wire.
func (r *Request) Encode() ([]byte, error) {
	if r.ID.IsZero() {
		return nil, fmt.Errorf("%w: request without id", ErrInvalidID)
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return data, nil
}

// Encode serializes the notification for the wire.
func (n *Notification) Encode() ([]byte, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}
	return data, nil
}

// SetParam sets a params field by gjson path, creating the params object if
// needed. Useful for layering server-specific options onto a built request
// without re-declaring its parameter struct.
func (r *Request) SetParam(path string, value any) error {
	params := r.Params
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	out, err := sjson.SetBytes(params, path, value)
	if err != nil {
		return fmt.Errorf("set param %s: %w", path, err)
	}
	r.Params = out
	return nil
}

// Param reads a params field by gjson path.
func (r *Request) Param(path string) gjson.Result {
	return gjson.GetBytes(r.Params, path)
}

// Classify parses a frame body and tags it as *Request, *Notification, or
// *Response. Bodies that fit none of the three shapes, or a response
// carrying both result and error (or neither), fail with
// ErrUnrecognizedMessage; the caller drops the frame and keeps the
// connection alive.
func Classify(body []byte) (any, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrUnrecognizedMessage)
	}

	hasID := gjson.GetBytes(body, "id").Exists()
	hasMethod := gjson.GetBytes(body, "method").Exists()

	switch {
	case hasMethod && hasID:
		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnrecognizedMessage, err)
		}
		return &req, nil

	case hasMethod:
		var n Notification
		if err := json.Unmarshal(body, &n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnrecognizedMessage, err)
		}
		return &n, nil

	case hasID:
		hasResult := gjson.GetBytes(body, "result").Exists()
		hasError := gjson.GetBytes(body, "error").Exists()
		if hasResult == hasError {
			return nil, fmt.Errorf("%w: response must carry exactly one of result and error", ErrUnrecognizedMessage)
		}
		var resp Response
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnrecognizedMessage, err)
		}
		return &resp, nil

	default:
		return nil, fmt.Errorf("%w: no id or method", ErrUnrecognizedMessage)
	}
}
