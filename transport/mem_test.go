package transport

import (
	"bytes"
	"context"
	"testing"
)

func startMemPair(t *testing.T) (*Mem, *Mem) {
	t.Helper()
	a, b := NewMemPair()
	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		a.CloseNow()
		b.CloseNow()
	})
	return a, b
}

func TestMemPreservesMessageBoundaries(t *testing.T) {
	a, b := startMemPair(t)
	ctx := context.Background()

	msgs := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	for _, m := range msgs {
		if err := a.Send(ctx, m); err != nil {
			t.Fatal(err)
		}
	}
	for _, want := range msgs {
		got, err := b.Receive(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("received %q, want %q", got, want)
		}
	}
}

func TestMemDrainsBufferAfterPeerClose(t *testing.T) {
	a, b := startMemPair(t)
	ctx := context.Background()

	if err := a.Send(ctx, []byte("last words")); err != nil {
		t.Fatal(err)
	}
	a.CloseNow()

	got, err := b.Receive(ctx)
	if err != nil {
		t.Fatalf("buffered message should still be delivered: %v", err)
	}
	if string(got) != "last words" {
		t.Errorf("received %q", got)
	}

	if _, err := b.Receive(ctx); err == nil {
		t.Error("drained transport should report connection closed")
	}
}

func TestMemLifecycle(t *testing.T) {
	a, _ := NewMemPair()
	ctx := context.Background()

	if err := a.Send(ctx, []byte("x")); err == nil {
		t.Error("send before start should fail")
	}
	if err := a.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := a.Start(ctx); err == nil {
		t.Error("second start should fail")
	}
	a.CloseNow()
	if err := a.Send(ctx, []byte("x")); err == nil {
		t.Error("send after close should fail")
	}
}
