package transport

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/jbraun2025/jsonrpc-go/framer"
	"github.com/jbraun2025/jsonrpc-go/rpcerror"
)

// chunkTransport feeds scripted chunks to a Framed wrapper and records
// everything sent through it.
type chunkTransport struct {
	mu     sync.Mutex
	chunks [][]byte
	sent   [][]byte
	closed bool
}

func (c *chunkTransport) Start(ctx context.Context) error { return nil }

func (c *chunkTransport) Send(ctx context.Context, msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, append([]byte(nil), msg...))
	return nil
}

func (c *chunkTransport) Receive(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.chunks) == 0 {
		return nil, rpcerror.New(rpcerror.TransportError, "connection closed")
	}
	chunk := c.chunks[0]
	c.chunks = c.chunks[1:]
	return chunk, nil
}

func (c *chunkTransport) Close() error {
	c.CloseNow()
	return nil
}

func (c *chunkTransport) CloseNow() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func TestFramedSendFramesMessages(t *testing.T) {
	inner := &chunkTransport{}
	f := NewFramed(inner)

	payload := []byte(`{"method":"x"}`)
	if err := f.Send(context.Background(), payload); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if len(inner.sent) != 1 {
		t.Fatalf("expected one wire write, got %d", len(inner.sent))
	}
	if !bytes.Equal(inner.sent[0], framer.Frame(payload)) {
		t.Errorf("wire bytes mismatch: %q", inner.sent[0])
	}
}

func TestFramedReceiveReassemblesSplitMessage(t *testing.T) {
	payload := []byte(`{"jsonrpc":"2.0","method":"m"}`)
	framed := framer.Frame(payload)

	// Deliver one byte per chunk.
	inner := &chunkTransport{}
	for _, b := range framed {
		inner.chunks = append(inner.chunks, []byte{b})
	}

	f := NewFramed(inner)
	got, err := f.Receive(context.Background())
	if err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload mismatch: %s", got)
	}
}

func TestFramedReceiveSplitsCoalescedMessages(t *testing.T) {
	p1 := []byte(`{"id":1}`)
	p2 := []byte(`{"id":2}`)
	combined := append(framer.Frame(p1), framer.Frame(p2)...)

	inner := &chunkTransport{chunks: [][]byte{combined}}
	f := NewFramed(inner)
	ctx := context.Background()

	got1, err := f.Receive(ctx)
	if err != nil || !bytes.Equal(got1, p1) {
		t.Fatalf("first message: %s err=%v", got1, err)
	}
	got2, err := f.Receive(ctx)
	if err != nil || !bytes.Equal(got2, p2) {
		t.Fatalf("second message: %s err=%v", got2, err)
	}
}

func TestFramedReceiveFatalHeaderClosesTransport(t *testing.T) {
	inner := &chunkTransport{chunks: [][]byte{[]byte("Content-Length: oops\r\n\r\n")}}
	f := NewFramed(inner)

	_, err := f.Receive(context.Background())
	if err == nil {
		t.Fatal("corrupt header should fail the receive")
	}
	if !inner.closed {
		t.Error("fatal deframe error should close the inner transport")
	}
}

func TestFramedRoundTripOverPipe(t *testing.T) {
	path := tempSocketPath(t)
	serverRaw, clientRaw := startPipePair(t, path)
	server := NewFramed(serverRaw)
	client := NewFramed(clientRaw)
	ctx := context.Background()

	payload := []byte(`{"jsonrpc":"2.0","method":"add","params":[1,2],"id":1}`)
	if err := client.Send(ctx, payload); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	got, err := server.Receive(ctx)
	if err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload mismatch: %s", got)
	}
}
