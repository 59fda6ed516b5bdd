package endpoint

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jbraun2025/jsonrpc-go/rpcerror"
	"github.com/jbraun2025/jsonrpc-go/transport"
)

// startEndpointPair wires two endpoints over an in-memory transport pair
// and starts both.
func startEndpointPair(t *testing.T) (a, b *Endpoint) {
	t.Helper()
	ta, tb := transport.NewMemPair()
	a = New(ta)
	b = New(tb)
	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		a.Shutdown(context.Background())
		b.Shutdown(context.Background())
	})
	return a, b
}

func registerCalculator(e *Endpoint) {
	e.RegisterMethod("add", func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
		var args struct{ A, B int }
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, rpcerror.FromCode(rpcerror.InvalidParams)
		}
		return json.Marshal(map[string]int{"result": args.A + args.B})
	})
	e.RegisterMethod("divide", func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
		var args struct{ A, B float64 }
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, rpcerror.FromCode(rpcerror.InvalidParams)
		}
		if args.B == 0 {
			return nil, rpcerror.New(rpcerror.ServerError, "Division by zero")
		}
		return json.Marshal(map[string]float64{"result": args.A / args.B})
	})
}

func TestSendCallRoundTrip(t *testing.T) {
	client, server := startEndpointPair(t)
	registerCalculator(server)

	result, err := client.SendCall(context.Background(), "add", json.RawMessage(`{"a":10,"b":5}`))
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if string(result) != `{"result":15}` {
		t.Errorf("result = %s", result)
	}
}

func TestSendCallApplicationError(t *testing.T) {
	client, server := startEndpointPair(t)
	registerCalculator(server)

	_, err := client.SendCall(context.Background(), "divide", json.RawMessage(`{"a":10,"b":0}`))
	if err == nil {
		t.Fatal("expected an error")
	}
	rpcErr, ok := err.(*rpcerror.Error)
	if !ok {
		t.Fatalf("expected *rpcerror.Error, got %T", err)
	}
	if rpcErr.Code != rpcerror.ClientError {
		t.Errorf("code = %d, want ClientError", rpcErr.Code)
	}
	if !strings.Contains(rpcErr.Message, "Division by zero") {
		t.Errorf("message = %q, want it to carry the peer's message", rpcErr.Message)
	}
}

func TestSendCallMethodNotFound(t *testing.T) {
	client, _ := startEndpointPair(t)

	_, err := client.SendCall(context.Background(), "unknown", nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "Method not found") {
		t.Errorf("err = %v", err)
	}
}

func TestBidirectionalCalls(t *testing.T) {
	a, b := startEndpointPair(t)
	registerCalculator(a)
	registerCalculator(b)

	ctx := context.Background()
	resA, err := a.SendCall(ctx, "add", json.RawMessage(`{"a":1,"b":2}`))
	if err != nil {
		t.Fatalf("a→b call failed: %v", err)
	}
	resB, err := b.SendCall(ctx, "add", json.RawMessage(`{"a":3,"b":4}`))
	if err != nil {
		t.Fatalf("b→a call failed: %v", err)
	}
	if string(resA) != `{"result":3}` || string(resB) != `{"result":7}` {
		t.Errorf("results: %s / %s", resA, resB)
	}
}

func TestSendNotification(t *testing.T) {
	client, server := startEndpointPair(t)

	received := make(chan json.RawMessage, 1)
	server.RegisterNotification("log", func(ctx context.Context, params json.RawMessage) {
		received <- params
	})

	if err := client.SendNotification(context.Background(), "log", json.RawMessage(`["hello"]`)); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	select {
	case params := <-received:
		if string(params) != `["hello"]` {
			t.Errorf("params = %s", params)
		}
	case <-time.After(time.Second):
		t.Fatal("notification never arrived")
	}

	// Notifications never install pending entries.
	if client.HasPendingRequests() {
		t.Error("notification left a pending request behind")
	}
}

func TestConcurrentCallsGetDistinctIDs(t *testing.T) {
	client, server := startEndpointPair(t)
	registerCalculator(server)
	ctx := context.Background()

	const callers = 16
	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			params, _ := json.Marshal(map[string]int{"a": i, "b": i})
			res, err := client.SendCall(ctx, "add", params)
			results[i], errs[i] = string(res), err
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("call %d failed: %v", i, errs[i])
		}
		var decoded struct{ Result int }
		if err := json.Unmarshal([]byte(results[i]), &decoded); err != nil {
			t.Fatal(err)
		}
		if decoded.Result != 2*i {
			t.Errorf("call %d: result %d, want %d (responses crossed)", i, decoded.Result, 2*i)
		}
	}
	if client.HasPendingRequests() {
		t.Error("pending table should be empty after all calls completed")
	}
}

func TestSecondStartFails(t *testing.T) {
	client, _ := startEndpointPair(t)
	err := client.Start(context.Background())
	if err == nil {
		t.Fatal("second Start should fail")
	}
	rpcErr, ok := err.(*rpcerror.Error)
	if !ok || rpcErr.Code != rpcerror.ClientError {
		t.Errorf("expected ClientError, got %v", err)
	}
}

func TestCallAfterShutdownFails(t *testing.T) {
	client, _ := startEndpointPair(t)
	if err := client.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	_, err := client.SendCall(context.Background(), "add", nil)
	if err == nil {
		t.Fatal("call after shutdown should fail")
	}
	if !strings.Contains(err.Error(), "not running") {
		t.Errorf("err = %v", err)
	}

	if err := client.SendNotification(context.Background(), "x", nil); err == nil {
		t.Error("notification after shutdown should fail")
	}
}

func TestShutdownCancelsPendingCall(t *testing.T) {
	client, _ := startEndpointPair(t)
	// The peer has no handler registered... a call to a missing method
	// still answers; use a peer that never answers instead.
	ta, _ := transport.NewMemPair()
	silent := New(ta)
	if err := silent.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	callErr := make(chan error, 1)
	go func() {
		_, err := silent.SendCall(context.Background(), "void", nil)
		callErr <- err
	}()

	// Wait until the call is armed before shutting down.
	deadline := time.Now().Add(time.Second)
	for !silent.HasPendingRequests() {
		if time.Now().After(deadline) {
			t.Fatal("call never became pending")
		}
		time.Sleep(time.Millisecond)
	}

	if err := silent.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	select {
	case err := <-callErr:
		if err == nil {
			t.Fatal("pending call should fail on shutdown")
		}
		if !strings.Contains(err.Error(), "shutting down") {
			t.Errorf("err = %v, want shutting-down message", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending call never completed")
	}

	if err := silent.WaitForShutdown(context.Background()); err != nil {
		t.Errorf("WaitForShutdown failed: %v", err)
	}
	client.Shutdown(context.Background())
}

func TestShutdownIsIdempotent(t *testing.T) {
	client, _ := startEndpointPair(t)
	for i := 0; i < 3; i++ {
		if err := client.Shutdown(context.Background()); err != nil {
			t.Errorf("shutdown %d failed: %v", i, err)
		}
	}
}

func TestWaitForShutdownBeforeStart(t *testing.T) {
	ta, _ := transport.NewMemPair()
	e := New(ta)
	if err := e.WaitForShutdown(context.Background()); err != nil {
		t.Errorf("WaitForShutdown on an idle endpoint should return: %v", err)
	}
}

func TestUnknownResponseIDIsDropped(t *testing.T) {
	ta, tb := transport.NewMemPair()
	e := New(ta)
	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	tb.Start(ctx)
	t.Cleanup(func() {
		e.Shutdown(context.Background())
		tb.CloseNow()
	})

	// A response nobody asked for must be dropped without crashing the
	// pump; the endpoint keeps serving afterwards.
	if err := tb.Send(ctx, []byte(`{"jsonrpc":"2.0","result":1,"id":999}`)); err != nil {
		t.Fatal(err)
	}

	e.RegisterMethod("ping", func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`"pong"`), nil
	})
	if err := tb.Send(ctx, []byte(`{"jsonrpc":"2.0","method":"ping","id":1}`)); err != nil {
		t.Fatal(err)
	}

	reply, err := tb.Receive(ctx)
	if err != nil {
		t.Fatalf("pump died after unknown response id: %v", err)
	}
	if !strings.Contains(string(reply), `"pong"`) {
		t.Errorf("reply = %s", reply)
	}
}

func TestDuplicateResponseResolvesOnce(t *testing.T) {
	ta, tb := transport.NewMemPair()
	e := New(ta)
	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	tb.Start(ctx)
	t.Cleanup(func() {
		e.Shutdown(context.Background())
		tb.CloseNow()
	})

	go func() {
		// Read the outbound call, answer it twice.
		raw, err := tb.Receive(ctx)
		if err != nil {
			return
		}
		var req struct {
			ID int64 `json:"id"`
		}
		json.Unmarshal(raw, &req)
		resp, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "result": "first", "id": req.ID})
		tb.Send(ctx, resp)
		resp2, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "result": "second", "id": req.ID})
		tb.Send(ctx, resp2)
	}()

	result, err := e.SendCall(ctx, "whatever", nil)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if string(result) != `"first"` {
		t.Errorf("result = %s, want the first response", result)
	}

	// The duplicate must leave no pending state behind.
	time.Sleep(50 * time.Millisecond)
	if e.HasPendingRequests() {
		t.Error("duplicate response re-armed the pending table")
	}
}

func TestRequestIDsAreStrictlyIncreasingFromZero(t *testing.T) {
	ta, tb := transport.NewMemPair()
	e := New(ta)
	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	tb.Start(ctx)
	t.Cleanup(func() {
		e.Shutdown(context.Background())
		tb.CloseNow()
	})

	echo := func() int64 {
		raw, err := tb.Receive(ctx)
		if err != nil {
			t.Fatal(err)
		}
		var req struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			t.Fatal(err)
		}
		resp, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "result": nil, "id": req.ID})
		tb.Send(ctx, resp)
		return req.ID
	}

	ids := make(chan int64, 3)
	for i := 0; i < 3; i++ {
		go func() {
			e.SendCall(ctx, "m", nil)
		}()
		ids <- echo()
	}
	close(ids)

	want := int64(0)
	for id := range ids {
		if id != want {
			t.Errorf("id = %d, want %d", id, want)
		}
		want++
	}
}

func TestMalformedInboundMessageDoesNotKillPump(t *testing.T) {
	ta, tb := transport.NewMemPair()
	e := New(ta)
	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	tb.Start(ctx)
	t.Cleanup(func() {
		e.Shutdown(context.Background())
		tb.CloseNow()
	})

	tb.Send(ctx, []byte(`{malformed`))

	// A parse error comes back as a response with a null id.
	reply, err := tb.Receive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(reply), `"code":-32700`) || !strings.Contains(string(reply), `"id":null`) {
		t.Errorf("reply = %s", reply)
	}
}
