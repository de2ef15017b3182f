package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyDeliversEvent(t *testing.T) {
	received := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Errorf("decode body: %v", err)
		}
		received <- ev
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, discardLogger(), DampeningConfig{Enabled: false})
	ev := Event{ConnectionID: "conn-1", Kind: "state_change", Detail: "AfterCertificate", Time: time.Now()}
	if err := n.Notify(context.Background(), ev); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	select {
	case got := <-received:
		if got.ConnectionID != ev.ConnectionID {
			t.Errorf("ConnectionID = %q, want %q", got.ConnectionID, ev.ConnectionID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never received event")
	}
}

func TestNotifySuppressesRepeatedBursts(t *testing.T) {
	var count int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, discardLogger(), DampeningConfig{
		Enabled:           true,
		SuppressThreshold: 3,
		ReuseThreshold:    1,
		HalfLife:          time.Hour, // effectively no decay within the test
	})

	for i := 0; i < 10; i++ {
		_ = n.Notify(context.Background(), Event{ConnectionID: "flapper", Kind: "state_change"})
	}

	if count >= 10 {
		t.Errorf("expected dampening to suppress some events, got %d delivered of 10", count)
	}
	if count == 0 {
		t.Error("expected at least the first burst of events to be delivered before suppression kicks in")
	}
}
