package message

import (
	"bytes"
	"encoding/json"

	"github.com/jbraun2025/jsonrpc-go/rpcerror"
)

// Request is one JSON-RPC request or notification. A nil id marks a
// notification. Params is the raw JSON of the "params" member, or nil when
// absent; when present it is an object, array, or null, never a scalar.
type Request struct {
	method string
	params json.RawMessage
	id     *ID
}

// NewNotification builds an outbound notification.
func NewNotification(method string, params json.RawMessage) *Request {
	return &Request{method: method, params: params}
}

// NewCall builds an outbound method call with the given id.
func NewCall(method string, params json.RawMessage, id ID) *Request {
	return &Request{method: method, params: params, id: &id}
}

// Method returns the request's method name.
func (r *Request) Method() string { return r.method }

// Params returns the raw params, or nil when absent.
func (r *Request) Params() json.RawMessage { return r.params }

// IsNotification reports whether the request carries no id.
func (r *Request) IsNotification() bool { return r.id == nil }

// ID returns the request id. Ok is false for notifications.
func (r *Request) ID() (ID, bool) {
	if r.id == nil {
		return ID{}, false
	}
	return *r.id, true
}

// requestWire is the serialized form of a Request.
type requestWire struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      *ID             `json:"id,omitempty"`
}

// MarshalJSON implements json.Marshaler. Absent members are omitted:
// notifications carry no "id", and a request built without params carries
// no "params".
func (r *Request) MarshalJSON() ([]byte, error) {
	return json.Marshal(requestWire{
		JSONRPC: Version,
		Method:  r.method,
		Params:  r.params,
		ID:      r.id,
	})
}

// Dump serializes the request for the wire.
func (r *Request) Dump() (string, error) {
	raw, err := r.MarshalJSON()
	if err != nil {
		return "", rpcerror.New(rpcerror.InternalError, err.Error())
	}
	return string(raw), nil
}

// ParseRequest validates and decodes one request object. Violations are
// reported as InvalidRequest errors naming the offending member.
func ParseRequest(raw json.RawMessage) (*Request, error) {
	var probe struct {
		JSONRPC *string         `json:"jsonrpc"`
		Method  json.RawMessage `json:"method"`
		Params  json.RawMessage `json:"params"`
		ID      json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, rpcerror.New(rpcerror.InvalidRequest, "request is not a JSON object")
	}
	if !bytes.HasPrefix(bytes.TrimLeft(raw, " \t\r\n"), []byte("{")) {
		return nil, rpcerror.New(rpcerror.InvalidRequest, "request is not a JSON object")
	}
	if probe.JSONRPC == nil || *probe.JSONRPC != Version {
		return nil, rpcerror.New(rpcerror.InvalidRequest, `jsonrpc member must be "2.0"`)
	}

	var method string
	if probe.Method == nil || json.Unmarshal(probe.Method, &method) != nil {
		return nil, rpcerror.New(rpcerror.InvalidRequest, "method member must be a string")
	}
	if method == "" {
		return nil, rpcerror.New(rpcerror.InvalidRequest, "method member must not be empty")
	}

	params, err := validateParams(probe.Params)
	if err != nil {
		return nil, err
	}

	id, err := parseOptionalID(probe.ID)
	if err != nil {
		return nil, err
	}

	return &Request{method: method, params: params, id: id}, nil
}

// validateParams enforces that params, when present, is structured
// (object, array, or null) rather than a bare scalar.
func validateParams(raw json.RawMessage) (json.RawMessage, error) {
	if raw == nil {
		return nil, nil
	}
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, nil
	}
	switch trimmed[0] {
	case '{', '[':
		return raw, nil
	case 'n':
		if isJSONNull(bytes.TrimSpace(raw)) {
			return raw, nil
		}
	}
	return nil, rpcerror.New(rpcerror.InvalidRequest, "params member must be an object, array, or null")
}
