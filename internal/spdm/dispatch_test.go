package spdm

import (
	"testing"

	"github.com/spdm-io/spdm-responder/internal/wire"
)

func TestHandshakeAdvancesConnectionState(t *testing.T) {
	ctx, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	ctx.Negotiated.Version = Version12
	ctx.Negotiated.LocalFlags = CapCertCap | CapChalCap
	ctx.Negotiated.SupportedBaseHashAlgos = 1 << 1 // SHA-384 bit, arbitrary for this test
	ctx.Negotiated.SupportedBaseAsymAlgos = 1 << 2

	out := make([]byte, 256)

	// GET_VERSION
	getVersion := []byte{uint8(Version10), uint8(CodeGetVersion), 0, 0}
	n, status := Dispatch(ctx, getVersion, out)
	if status != StatusSuccess {
		t.Fatalf("GET_VERSION dispatch status = %v", status)
	}
	if h, _ := decodeHeader(out[:n]); h.Code != CodeVersion {
		t.Fatalf("GET_VERSION response code = %v, want VERSION", h.Code)
	}
	if ctx.ConnectionState != ConnectionStateAfterVersion {
		t.Fatalf("ConnectionState = %v, want AfterVersion", ctx.ConnectionState)
	}

	// GET_CAPABILITIES
	getCaps := make([]byte, HeaderSize+8)
	getCaps[0] = uint8(Version12)
	getCaps[1] = uint8(CodeGetCapabilities)
	_ = wire.WriteU32(getCaps[HeaderSize+4:], uint32(CapCertCap|CapChalCap))
	n, status = Dispatch(ctx, getCaps, out)
	if status != StatusSuccess {
		t.Fatalf("GET_CAPABILITIES dispatch status = %v", status)
	}
	if h, _ := decodeHeader(out[:n]); h.Code != CodeCapabilities {
		t.Fatalf("GET_CAPABILITIES response code = %v, want CAPABILITIES", h.Code)
	}
	if ctx.ConnectionState != ConnectionStateAfterCapabilities {
		t.Fatalf("ConnectionState = %v, want AfterCapabilities", ctx.ConnectionState)
	}

	// NEGOTIATE_ALGORITHMS
	negAlg := make([]byte, HeaderSize+12)
	negAlg[0] = uint8(Version12)
	negAlg[1] = uint8(CodeNegotiateAlgorithms)
	_ = wire.WriteU32(negAlg[HeaderSize+4:], uint32(ctx.Negotiated.SupportedBaseAsymAlgos))
	_ = wire.WriteU32(negAlg[HeaderSize+8:], uint32(ctx.Negotiated.SupportedBaseHashAlgos))
	n, status = Dispatch(ctx, negAlg, out)
	if status != StatusSuccess {
		t.Fatalf("NEGOTIATE_ALGORITHMS dispatch status = %v", status)
	}
	if h, _ := decodeHeader(out[:n]); h.Code != CodeAlgorithms {
		t.Fatalf("NEGOTIATE_ALGORITHMS response code = %v, want ALGORITHMS", h.Code)
	}
	if ctx.ConnectionState != ConnectionStateNegotiated {
		t.Fatalf("ConnectionState = %v, want Negotiated", ctx.ConnectionState)
	}
}

func TestVersionMismatchTakesPrecedence(t *testing.T) {
	ctx, err := newTestContext(nil)
	if err != nil {
		t.Fatalf("newTestContext: %v", err)
	}
	ctx.ResponseState = ResponseStateBusy

	// Slot 1 is unprovisioned and the responder is busy; either condition
	// would normally produce its own error, but a version mismatch must
	// win before either is ever evaluated.
	req := buildGetCertificateRequest(1, 0, 0)
	req[0] = uint8(Version11)

	out := make([]byte, 256)
	n, status := Dispatch(ctx, req, out)
	if status != StatusSuccess {
		t.Fatalf("Dispatch status = %v, want Success", status)
	}
	h, err := decodeHeader(out[:n])
	if err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}
	if h.Code != CodeError || ErrorCode(h.Param1) != ErrorVersionMismatch {
		t.Errorf("got code=%v param1=%#x, want ERROR/VersionMismatch", h.Code, h.Param1)
	}
}

func TestRequestBeforeVersionIsUnexpected(t *testing.T) {
	ctx, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	getCaps := make([]byte, HeaderSize+8)
	getCaps[0] = uint8(Version12)
	getCaps[1] = uint8(CodeGetCapabilities)
	out := make([]byte, 256)
	n, status := Dispatch(ctx, getCaps, out)
	if status != StatusSuccess {
		t.Fatalf("dispatch status = %v", status)
	}
	h, err := decodeHeader(out[:n])
	if err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}
	if h.Code != CodeError || ErrorCode(h.Param1) != ErrorUnexpectedRequest {
		t.Errorf("got code=%v param1=%#x, want ERROR/UnexpectedRequest", h.Code, h.Param1)
	}
}
