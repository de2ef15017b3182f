package spdm

import "fmt"

func init() {
	registerHandler(CodeGetCapabilities, handleGetCapabilities)
}

// handleGetCapabilities implements GET_CAPABILITIES/CAPABILITIES. The responder's own flag set is ctx.Negotiated.LocalFlags,
// as configured by the integrator; only the peer's advertised flags vary
// per request.
func handleGetCapabilities(ctx *Context, req []byte, out []byte) (int, error) {
	getReq, err := UnmarshalGetCapabilitiesRequest(req)
	if err != nil {
		return 0, NewProtocolError(ErrorInvalidRequest, 0)
	}

	// GET_CAPABILITIES is the request that fixes the connection version: every
	// request from here on is held to whatever version the requester sent here.
	ctx.Negotiated.Version = getReq.Header.Version
	ctx.Negotiated.PeerFlags = getReq.Flags
	ctx.Negotiated.CTExponent = getReq.CTExponent

	resp := CapabilitiesResponse{
		Header: Header{
			Version: ctx.Negotiated.Version,
			Code:    CodeCapabilities,
		},
		CTExponent: ctx.Negotiated.CTExponent,
		Flags:      ctx.Negotiated.LocalFlags,
	}

	n, err := MarshalCapabilitiesResponse(out, resp)
	if err != nil {
		return 0, fmt.Errorf("handle get_capabilities: %w", err)
	}

	if err := ctx.MessageA.Append(req, len(req)); err != nil {
		return 0, NewProtocolError(ErrorUnspecified, 0)
	}
	if err := ctx.MessageA.Append(out[:n], n); err != nil {
		return 0, NewProtocolError(ErrorUnspecified, 0)
	}

	ctx.ConnectionState.AdvanceTo(ConnectionStateAfterCapabilities)
	return n, nil
}
