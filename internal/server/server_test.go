package server_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/spdm-io/spdm-responder/internal/server"
	"github.com/spdm-io/spdm-responder/internal/spdm"
)

// fakeProvider hands out a fixed Context, or nil to simulate a responder
// that has not yet been initialized.
type fakeProvider struct {
	ctx *spdm.Context
}

func (f fakeProvider) Current() *spdm.Context { return f.ctx }

func newTestServer(t *testing.T, ctx *spdm.Context) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	handler := server.New(fakeProvider{ctx: ctx}, logger)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestGetContextUninitialized(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/v1/context")
	if err != nil {
		t.Fatalf("GET /v1/context: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestGetContext(t *testing.T) {
	t.Parallel()

	ctx, err := spdm.NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	ctx.ConnectionState = spdm.ConnectionStateAfterVersion
	ctx.Slots[0].Chain = []byte{0x01, 0x02, 0x03}

	srv := newTestServer(t, ctx)

	resp, err := http.Get(srv.URL + "/v1/context")
	if err != nil {
		t.Fatalf("GET /v1/context: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var view server.ContextView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	if view.ConnectionState != "AfterVersion" {
		t.Errorf("ConnectionState = %q, want AfterVersion", view.ConnectionState)
	}
	if !view.Slots[0].Provisioned {
		t.Error("Slots[0].Provisioned = false, want true")
	}
	if view.Slots[0].ChainLength != 3 {
		t.Errorf("Slots[0].ChainLength = %d, want 3", view.Slots[0].ChainLength)
	}
}

func TestListAndGetSession(t *testing.T) {
	t.Parallel()

	ctx, err := spdm.NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	sess, err := ctx.NewSession()
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	srv := newTestServer(t, ctx)

	resp, err := http.Get(srv.URL + "/v1/sessions")
	if err != nil {
		t.Fatalf("GET /v1/sessions: %v", err)
	}
	defer resp.Body.Close()

	var views []server.SessionView
	if err := json.NewDecoder(resp.Body).Decode(&views); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("len(views) = %d, want 1", len(views))
	}
	if views[0].ID != sess.ID {
		t.Errorf("views[0].ID = %d, want %d", views[0].ID, sess.ID)
	}

	getResp, err := http.Get(srv.URL + "/v1/sessions/" + itoa(sess.ID))
	if err != nil {
		t.Fatalf("GET /v1/sessions/{id}: %v", err)
	}
	defer getResp.Body.Close()

	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", getResp.StatusCode)
	}

	var view server.SessionView
	if err := json.NewDecoder(getResp.Body).Decode(&view); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if view.ID != sess.ID {
		t.Errorf("view.ID = %d, want %d", view.ID, sess.ID)
	}
	if view.State != "Handshaking" {
		t.Errorf("view.State = %q, want Handshaking", view.State)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	t.Parallel()

	ctx, err := spdm.NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}

	srv := newTestServer(t, ctx)

	resp, err := http.Get(srv.URL + "/v1/sessions/999")
	if err != nil {
		t.Fatalf("GET /v1/sessions/999: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetSessionBadID(t *testing.T) {
	t.Parallel()

	ctx, err := spdm.NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}

	srv := newTestServer(t, ctx)

	resp, err := http.Get(srv.URL + "/v1/sessions/not-a-number")
	if err != nil {
		t.Fatalf("GET /v1/sessions/not-a-number: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func itoa(v uint32) string {
	return strconv.Itoa(int(v))
}
