package spdm

import "fmt"

func init() {
	registerHandler(CodeGetCertificate, handleGetCertificate)
}

// handleGetCertificate implements GET_CERTIFICATE/CERTIFICATE, the worked
// example this package is built around. It follows the same
// gate ordering as the reference responder it is grounded on: capability,
// request shape, slot validity, offset bounds, length, then chunk
// clamping, before it ever touches the transcript or advances connection
// state. Response state and connection state are gated by Dispatch before
// this handler is ever called.
func handleGetCertificate(ctx *Context, req []byte, out []byte) (int, error) {
	if !ctx.Negotiated.EffectiveFlags().Has(CapCertCap) {
		return 0, NewProtocolError(ErrorUnsupportedRequest, uint8(CodeGetCertificate))
	}

	getReq, err := UnmarshalGetCertificateRequest(req)
	if err != nil {
		return 0, NewProtocolError(ErrorInvalidRequest, 0)
	}

	slotID := getReq.SlotID()
	if slotID >= MaxSlots {
		return 0, NewProtocolError(ErrorInvalidRequest, 0)
	}
	slot := ctx.Slots[slotID]
	if !slot.Provisioned() {
		return 0, NewProtocolError(ErrorInvalidRequest, 0)
	}

	chainSize := len(slot.Chain)
	if getReq.Offset >= uint16(chainSize) && chainSize > 0 {
		return 0, NewProtocolError(ErrorInvalidRequest, 0)
	}

	length := getReq.Length
	if length == 0 {
		return 0, NewProtocolError(ErrorInvalidRequest, 0)
	}

	// Clamp to the transport's maximum chunk length when the peer has not
	// negotiated CHUNK_CAP.
	if !ctx.Negotiated.EffectiveFlags().Has(CapChunkCap) && length > MaxCertChainBlockLen {
		length = MaxCertChainBlockLen
	}
	// Clamp again to what is actually left in the chain.
	if remaining := uint16(chainSize) - getReq.Offset; length > remaining {
		length = remaining
	}

	remainderLength := uint16(chainSize) - getReq.Offset - length

	ctx.resetTranscriptViaRequestCode(CodeGetCertificate)

	resp := CertificateResponse{
		Header: Header{
			Version: ctx.Negotiated.Version,
			Code:    CodeCertificate,
			Param1:  slotID,
			Param2:  0,
		},
		PortionLength:    length,
		RemainderLength:  remainderLength,
		CertChainPortion: slot.Chain[getReq.Offset : getReq.Offset+length],
	}

	n, err := MarshalCertificateResponse(out, resp)
	if err != nil {
		return 0, fmt.Errorf("handle get_certificate: %w", err)
	}

	// GET_CERTIFICATE/CERTIFICATE exchanges always feed message_b. Dispatch
	// receives no session id with a request, so a request carried inside a
	// session is not told apart from an unsecured one here.
	if err := ctx.MessageB.Append(req, len(req)); err != nil {
		return 0, NewProtocolError(ErrorUnspecified, 0)
	}
	if err := ctx.MessageB.Append(out[:n], n); err != nil {
		return 0, NewProtocolError(ErrorUnspecified, 0)
	}

	ctx.ConnectionState.AdvanceTo(ConnectionStateAfterCertificate)

	return n, nil
}
