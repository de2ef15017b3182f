package spdm

import "testing"

func TestNewContextInitializesTranscripts(t *testing.T) {
	ctx, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if ctx.MessageA.Capacity() == 0 || ctx.MessageB.Capacity() == 0 || ctx.MessageC.Capacity() == 0 {
		t.Fatal("transcript buffers not initialized")
	}
	if ctx.ConnectionState != ConnectionStateNotStarted {
		t.Errorf("ConnectionState = %v, want NotStarted", ctx.ConnectionState)
	}
}

func TestNewSessionRespectsLimit(t *testing.T) {
	ctx, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	for i := 0; i < MaxSessions; i++ {
		if _, err := ctx.NewSession(); err != nil {
			t.Fatalf("NewSession #%d: %v", i, err)
		}
	}
	if _, err := ctx.NewSession(); err == nil {
		t.Fatal("expected session limit error, got nil")
	}
	if ctx.SessionCount() != MaxSessions {
		t.Errorf("SessionCount() = %d, want %d", ctx.SessionCount(), MaxSessions)
	}
}

func TestEndSessionReleasesSlot(t *testing.T) {
	ctx, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	s, err := ctx.NewSession()
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	ctx.EndSession(s.ID)
	if ctx.Session(s.ID) != nil {
		t.Error("session still present after EndSession")
	}
	if ctx.sessionIDs.IsAllocated(s.ID) {
		t.Error("session id still marked allocated after EndSession")
	}
}

func TestResetConnectionClearsSessionsAndTranscripts(t *testing.T) {
	ctx, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if _, err := ctx.NewSession(); err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	_ = ctx.MessageA.Append([]byte("x"), 1)
	ctx.ConnectionState = ConnectionStateNegotiated

	ctx.ResetConnection()

	if ctx.ConnectionState != ConnectionStateNotStarted {
		t.Errorf("ConnectionState = %v, want NotStarted", ctx.ConnectionState)
	}
	if ctx.SessionCount() != 0 {
		t.Errorf("SessionCount() = %d, want 0", ctx.SessionCount())
	}
	if ctx.MessageA.Size() != 0 {
		t.Errorf("MessageA.Size() = %d, want 0", ctx.MessageA.Size())
	}
}

func TestSessionIDAllocatorNoCollisions(t *testing.T) {
	a := newSessionIDAllocator()
	seen := make(map[uint32]bool)
	for i := 0; i < MaxSessions; i++ {
		id, err := a.Allocate()
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate session id %d", id)
		}
		seen[id] = true
	}
}
