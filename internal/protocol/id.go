package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a JSON-RPC request identifier. The protocol allows integers and
// strings; both round-trip through JSON without losing their type. The zero
// value means "no id" and marshals to null, which is never valid on a
// request this client produces.
type ID struct {
	str   string
	num   int64
	isStr bool
	set   bool
}

// IntID returns an integer identifier.
func IntID(n int64) ID {
	return ID{num: n, set: true}
}

// StringID returns a string identifier.
func StringID(s string) ID {
	return ID{str: s, isStr: true, set: true}
}

// IsZero reports whether the id is absent.
func (id ID) IsZero() bool {
	return !id.set
}

// Key returns a map key that cannot collide across the two id types
// (the integer 42 and the string "42" are distinct identifiers).
func (id ID) Key() string {
	if id.isStr {
		return "s:" + id.str
	}
	return "i:" + strconv.FormatInt(id.num, 10)
}

// String returns the id as it would appear in a log line.
func (id ID) String() string {
	if !id.set {
		return "<none>"
	}
	if id.isStr {
		return strconv.Quote(id.str)
	}
	return strconv.FormatInt(id.num, 10)
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if !id.set {
		return []byte("null"), nil
	}
	if id.isStr {
		return json.Marshal(id.str)
	}
	return strconv.AppendInt(nil, id.num, 10), nil
}

// UnmarshalJSON implements json.Unmarshaler. Only JSON strings and integer
// numbers are legal identifiers; null, fractional numbers, and other JSON
// types are rejected.
func (id *ID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty id", ErrInvalidID)
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidID, err)
		}
		*id = StringID(s)
		return nil
	case 'n':
		return fmt.Errorf("%w: null id", ErrInvalidID)
	default:
		n, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %q is not an integer or string", ErrInvalidID, data)
		}
		*id = IntID(n)
		return nil
	}
}
