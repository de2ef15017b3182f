package spdm

import "fmt"

func init() {
	registerHandler(CodeGetDigests, handleGetDigests)
}

// handleGetDigests implements GET_DIGESTS/DIGESTS. The
// response carries one digest per provisioned slot, in ascending slot
// order, with SlotMask recording which slots they belong to.
func handleGetDigests(ctx *Context, req []byte, out []byte) (int, error) {
	if !ctx.Negotiated.EffectiveFlags().Has(CapCertCap) {
		return 0, NewProtocolError(ErrorUnsupportedRequest, uint8(CodeGetDigests))
	}

	var mask uint8
	var digests [][]byte
	for i, slot := range ctx.Slots {
		if !slot.Provisioned() {
			continue
		}
		mask |= 1 << uint(i)
		digests = append(digests, slot.Hash)
	}
	if mask == 0 {
		return 0, NewProtocolError(ErrorUnspecified, 0)
	}

	resp := DigestsResponse{
		Header: Header{
			Version: ctx.Negotiated.Version,
			Code:    CodeDigests,
		},
		SlotMask: mask,
		Digests:  digests,
	}

	n, err := MarshalDigestsResponse(out, resp)
	if err != nil {
		return 0, fmt.Errorf("handle get_digests: %w", err)
	}

	// A fresh GET_DIGESTS starts the certificate sub-phase over.
	ctx.MessageB.Reset()
	if err := ctx.MessageB.Append(req, len(req)); err != nil {
		return 0, NewProtocolError(ErrorUnspecified, 0)
	}
	if err := ctx.MessageB.Append(out[:n], n); err != nil {
		return 0, NewProtocolError(ErrorUnspecified, 0)
	}

	ctx.ConnectionState.AdvanceTo(ConnectionStateAfterDigests)
	return n, nil
}
