package message

import (
	"bytes"
	"encoding/json"

	"github.com/jbraun2025/jsonrpc-go/rpcerror"
)

// Response is one JSON-RPC response. Exactly one of the result and error
// members is present. A nil id is legal only on error responses raised
// before the server could determine the request id (parse error,
// malformed request).
type Response struct {
	result json.RawMessage
	err    *rpcerror.Error
	id     *ID
}

// Success builds a success response. A nil result is encoded as JSON null.
func Success(result json.RawMessage, id ID) *Response {
	if result == nil {
		result = json.RawMessage("null")
	}
	return &Response{result: result, id: &id}
}

// ErrorResponse builds an error response from a code, carrying the code's
// default message. Pass a nil id when the request id is unknown.
func ErrorResponse(code rpcerror.Code, id *ID) *Response {
	return &Response{err: rpcerror.FromCode(code), id: id}
}

// ErrorFrom builds an error response from an existing error value.
func ErrorFrom(rpcErr *rpcerror.Error, id *ID) *Response {
	return &Response{err: rpcErr, id: id}
}

// ErrorCustom builds an error response from a raw JSON error object, as
// produced by an application handler. Invalid objects degrade to an
// InternalError response.
func ErrorCustom(errorJSON json.RawMessage, id *ID) *Response {
	rpcErr, err := rpcerror.FromJSON(errorJSON)
	if err != nil {
		rpcErr = rpcerror.FromCode(rpcerror.InternalError)
	}
	return &Response{err: rpcErr, id: id}
}

// IsSuccess reports whether the response carries a result.
func (r *Response) IsSuccess() bool { return r.err == nil }

// Result returns the raw result. Nil for error responses.
func (r *Response) Result() json.RawMessage { return r.result }

// Err returns the error object. Nil for success responses.
func (r *Response) Err() *rpcerror.Error { return r.err }

// ID returns the response id. Ok is false when the id is null.
func (r *Response) ID() (ID, bool) {
	if r.id == nil {
		return ID{}, false
	}
	return *r.id, true
}

// responseWire is the serialized form of a Response. The id member is
// always present; encoding/json renders a nil *ID as null.
type responseWire struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
	ID      *ID             `json:"id"`
}

// MarshalJSON implements json.Marshaler. A success response never emits
// "error" and vice versa; "id" always appears, as null when undetermined.
func (r *Response) MarshalJSON() ([]byte, error) {
	wire := responseWire{JSONRPC: Version, ID: r.id}
	if r.err != nil {
		wire.Error = r.err.ToJSON()
	} else {
		wire.Result = r.result
	}
	return json.Marshal(wire)
}

// Dump serializes the response for the wire.
func (r *Response) Dump() (string, error) {
	raw, err := r.MarshalJSON()
	if err != nil {
		return "", rpcerror.New(rpcerror.InternalError, err.Error())
	}
	return string(raw), nil
}

// ParseResponse validates and decodes one response object: the jsonrpc
// version, exactly one of result/error, a well-formed error object, and a
// null id only alongside an error.
func ParseResponse(raw json.RawMessage) (*Response, error) {
	var probe struct {
		JSONRPC *string         `json:"jsonrpc"`
		Result  json.RawMessage `json:"result"`
		Error   json.RawMessage `json:"error"`
		ID      json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, rpcerror.New(rpcerror.InvalidRequest, "response is not a JSON object")
	}
	if !bytes.HasPrefix(bytes.TrimLeft(raw, " \t\r\n"), []byte("{")) {
		return nil, rpcerror.New(rpcerror.InvalidRequest, "response is not a JSON object")
	}
	if probe.JSONRPC == nil || *probe.JSONRPC != Version {
		return nil, rpcerror.New(rpcerror.InvalidRequest, `jsonrpc member must be "2.0"`)
	}

	hasResult := probe.Result != nil
	hasError := probe.Error != nil
	if hasResult == hasError {
		return nil, rpcerror.New(rpcerror.InvalidRequest, "response must carry exactly one of result and error")
	}

	id, err := parseOptionalID(probe.ID)
	if err != nil {
		return nil, err
	}

	if hasError {
		rpcErr, err := rpcerror.FromJSON(probe.Error)
		if err != nil {
			return nil, err
		}
		return &Response{err: rpcErr, id: id}, nil
	}

	if id == nil {
		return nil, rpcerror.New(rpcerror.InvalidRequest, "success response must carry a non-null id")
	}
	return &Response{result: probe.Result, id: id}, nil
}
