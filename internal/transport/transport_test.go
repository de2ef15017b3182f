package transport

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestSendRecvRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sc := NewConn(server)
	cc := NewConn(client)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msg := []byte{0x12, 0xE1, 0x00, 0x00, 0xAA, 0xBB}
	errCh := make(chan error, 1)
	go func() { errCh <- cc.Send(ctx, msg) }()

	got, err := sc.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	defer sc.Release(got)

	if string(got) != string(msg) {
		t.Errorf("Recv() = %x, want %x", got, msg)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestListenAccept(t *testing.T) {
	l, err := Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()

	acceptErr := make(chan error, 1)
	var accepted *Conn
	go func() {
		c, err := l.Accept()
		accepted = c
		acceptErr <- err
	}()

	nc, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer nc.Close()

	if err := <-acceptErr; err != nil {
		t.Fatalf("Accept: %v", err)
	}
	defer accepted.Close()
}

func TestRecvRejectsOversizedFrame(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sc := NewConn(server)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	lenPrefix := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	go func() { _, _ = client.Write(lenPrefix) }()

	if _, err := sc.Recv(ctx); err == nil {
		t.Fatal("expected error for oversized frame, got nil")
	}
}
