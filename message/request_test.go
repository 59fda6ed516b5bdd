package message

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/jbraun2025/jsonrpc-go/rpcerror"
)

func TestParseRequestCall(t *testing.T) {
	raw := `{"jsonrpc":"2.0","method":"add","params":{"a":10,"b":5},"id":0}`
	req, err := ParseRequest(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("ParseRequest failed: %v", err)
	}
	if req.Method() != "add" {
		t.Errorf("method = %q, want add", req.Method())
	}
	if req.IsNotification() {
		t.Error("request with id should not be a notification")
	}
	id, ok := req.ID()
	if !ok || !id.Equal(IntID(0)) {
		t.Errorf("id = %v, want 0", id)
	}
	if string(req.Params()) != `{"a":10,"b":5}` {
		t.Errorf("params = %s", req.Params())
	}
}

func TestParseRequestNotification(t *testing.T) {
	raw := `{"jsonrpc":"2.0","method":"notify","params":[7]}`
	req, err := ParseRequest(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("ParseRequest failed: %v", err)
	}
	if !req.IsNotification() {
		t.Error("request without id should be a notification")
	}
}

func TestParseRequestStringID(t *testing.T) {
	raw := `{"jsonrpc":"2.0","method":"sum","params":[1,2],"id":"abc"}`
	req, err := ParseRequest(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("ParseRequest failed: %v", err)
	}
	id, ok := req.ID()
	if !ok || !id.Equal(StringID("abc")) {
		t.Errorf("id = %v, want \"abc\"", id)
	}

	// Round trip: the string id must survive re-serialization unchanged.
	dumped, err := req.Dump()
	if err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	if !strings.Contains(dumped, `"id":"abc"`) {
		t.Errorf("string id not preserved: %s", dumped)
	}
}

func TestParseRequestViolations(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not an object", `[1,2,3]`},
		{"scalar", `42`},
		{"null", `null`},
		{"missing jsonrpc", `{"method":"m","id":1}`},
		{"wrong version", `{"jsonrpc":"1.0","method":"m","id":1}`},
		{"missing method", `{"jsonrpc":"2.0","id":1}`},
		{"method not a string", `{"jsonrpc":"2.0","method":5,"id":1}`},
		{"empty method", `{"jsonrpc":"2.0","method":"","id":1}`},
		{"scalar params", `{"jsonrpc":"2.0","method":"m","params":7,"id":1}`},
		{"string params", `{"jsonrpc":"2.0","method":"m","params":"x","id":1}`},
		{"bool id", `{"jsonrpc":"2.0","method":"m","id":true}`},
		{"fractional id", `{"jsonrpc":"2.0","method":"m","id":1.5}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseRequest(json.RawMessage(c.raw))
			if err == nil {
				t.Fatalf("ParseRequest(%s) should fail", c.raw)
			}
			rpcErr, ok := err.(*rpcerror.Error)
			if !ok {
				t.Fatalf("expected *rpcerror.Error, got %T", err)
			}
			if rpcErr.Code != rpcerror.InvalidRequest {
				t.Errorf("code = %d, want InvalidRequest", rpcErr.Code)
			}
		})
	}
}

func TestParseRequestNullParams(t *testing.T) {
	raw := `{"jsonrpc":"2.0","method":"m","params":null,"id":1}`
	if _, err := ParseRequest(json.RawMessage(raw)); err != nil {
		t.Fatalf("null params should be accepted: %v", err)
	}
}

func TestNotificationOmitsID(t *testing.T) {
	dumped, err := NewNotification("ping", nil).Dump()
	if err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	if strings.Contains(dumped, `"id"`) {
		t.Errorf("notification must not emit id: %s", dumped)
	}
	if strings.Contains(dumped, `"params"`) {
		t.Errorf("absent params must not be emitted: %s", dumped)
	}
	if !strings.Contains(dumped, `"jsonrpc":"2.0"`) {
		t.Errorf("missing jsonrpc member: %s", dumped)
	}
}

func TestCallEmitsID(t *testing.T) {
	dumped, err := NewCall("add", json.RawMessage(`[1,2]`), IntID(7)).Dump()
	if err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	if !strings.Contains(dumped, `"id":7`) {
		t.Errorf("call must emit its id: %s", dumped)
	}
}

func TestIDEquality(t *testing.T) {
	if IntID(1).Equal(StringID("1")) {
		t.Error("integer and string ids must not compare equal")
	}
	if !IntID(5).Equal(IntID(5)) {
		t.Error("equal integer ids must compare equal")
	}
	if !StringID("x").Equal(StringID("x")) {
		t.Error("equal string ids must compare equal")
	}
}
