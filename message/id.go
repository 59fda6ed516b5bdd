// Package message defines the JSON-RPC 2.0 message value types exchanged
// between endpoints: Request (call or notification) and Response (success
// or error), plus the ID type shared by both.
//
// Values are immutable after construction. Parsing validates the shape
// required by the JSON-RPC 2.0 specification and reports violations as
// *rpcerror.Error values.
package message

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jbraun2025/jsonrpc-go/rpcerror"
)

// Version is the protocol version carried by every message.
const Version = "2.0"

// ID is a JSON-RPC request ID: either a signed 64-bit integer or a string.
// The zero value is the integer ID 0. IDs are opaque to the endpoint except
// for equality; only the endpoint's own generator is restricted to integers.
type ID struct {
	str   string
	num   int64
	isStr bool
}

// IntID returns an integer ID.
func IntID(n int64) ID { return ID{num: n} }

// StringID returns a string ID.
func StringID(s string) ID { return ID{str: s, isStr: true} }

// Int64 returns the integer value, or false if the ID is a string.
func (id ID) Int64() (int64, bool) {
	if id.isStr {
		return 0, false
	}
	return id.num, true
}

// IsString reports whether the ID is a string.
func (id ID) IsString() bool { return id.isStr }

// Equal reports whether two IDs compare equal. An integer ID never equals
// a string ID, even when the string spells the same number.
func (id ID) Equal(other ID) bool {
	if id.isStr != other.isStr {
		return false
	}
	if id.isStr {
		return id.str == other.str
	}
	return id.num == other.num
}

// String renders the ID for logs and error messages.
func (id ID) String() string {
	if id.isStr {
		return strconv.Quote(id.str)
	}
	return strconv.FormatInt(id.num, 10)
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.isStr {
		return json.Marshal(id.str)
	}
	return json.Marshal(id.num)
}

// UnmarshalJSON implements json.Unmarshaler. Only integers and strings are
// accepted; fractional numbers, booleans, objects, and arrays are not
// valid IDs.
func (id *ID) UnmarshalJSON(raw []byte) error {
	// encoding/json decodes null into a string without error; reject it.
	if isJSONNull(raw) {
		return rpcerror.New(rpcerror.InvalidRequest, "id must be an integer or string, got null")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		*id = StringID(s)
		return nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		*id = IntID(n)
		return nil
	}
	return rpcerror.Newf(rpcerror.InvalidRequest, "id must be an integer or string, got %s", raw)
}

// parseOptionalID decodes an "id" member that may be absent. JSON null is
// treated as absent: the spec reserves a null id for error responses whose
// request id could not be determined.
func parseOptionalID(raw json.RawMessage) (*ID, error) {
	if raw == nil || isJSONNull(raw) {
		return nil, nil
	}
	var id ID
	if err := id.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return &id, nil
}

func isJSONNull(raw json.RawMessage) bool {
	return len(raw) == 4 && string(raw) == "null"
}

var _ fmt.Stringer = ID{}
