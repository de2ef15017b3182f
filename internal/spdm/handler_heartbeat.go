package spdm

import "fmt"

func init() {
	registerHandler(CodeHeartbeat, handleHeartbeat)
	registerHandler(CodeEndSession, handleEndSession)
}

// handleHeartbeat implements HEARTBEAT/HEARTBEAT_ACK. It
// carries no transcript or state effects beyond requiring HBEAT_CAP: a
// heartbeat exists purely to keep a session's liveness timer from expiring.
func handleHeartbeat(ctx *Context, req []byte, out []byte) (int, error) {
	if !ctx.Negotiated.EffectiveFlags().Has(CapHBeatCap) {
		return 0, NewProtocolError(ErrorUnsupportedRequest, uint8(CodeHeartbeat))
	}
	resp := HeartbeatAckResponse{Header: Header{Version: ctx.Negotiated.Version, Code: CodeHeartbeatAck}}
	n, err := MarshalHeartbeatAckResponse(out, resp)
	if err != nil {
		return 0, fmt.Errorf("handle heartbeat: %w", err)
	}
	return n, nil
}

// handleEndSession implements END_SESSION/END_SESSION_ACK. The session id
// this request targets arrives via the secured-message transport binding
// rather than the SPDM header itself, and Dispatch is not given it. This
// handler only writes the acknowledgement: it removes no session from the
// table. Removing one is done by Context.EndSession, which this handler
// does not call.
func handleEndSession(ctx *Context, req []byte, out []byte) (int, error) {
	resp := EndSessionAckResponse{Header: Header{Version: ctx.Negotiated.Version, Code: CodeEndSessionAck}}
	n, err := MarshalEndSessionAckResponse(out, resp)
	if err != nil {
		return 0, fmt.Errorf("handle end_session: %w", err)
	}
	return n, nil
}
