package spdm

import (
	"context"
	"fmt"
)

func init() {
	registerHandler(CodeGetMeasurements, handleGetMeasurements)
	registerHandler(CodeVendorDefinedRequest, handleVendorDefined)
}

// handleGetMeasurements implements GET_MEASUREMENTS/MEASUREMENTS. Param2 selects "all blocks" (0x00), "number of blocks" (0xFF), or
// a single one-based index; anything else is a malformed request. Signing
// is delegated to the same SignProvider CHALLENGE uses.
func handleGetMeasurements(ctx *Context, req []byte, out []byte) (int, error) {
	if ctx.Negotiated.EffectiveFlags()&(CapMeasCapSig|CapMeasCapNoSig) == 0 {
		return 0, NewProtocolError(ErrorUnsupportedRequest, uint8(CodeGetMeasurements))
	}

	measReq, err := UnmarshalGetMeasurementsRequest(req)
	if err != nil {
		return 0, NewProtocolError(ErrorInvalidRequest, 0)
	}
	if measReq.SignatureRequested() && !ctx.Negotiated.EffectiveFlags().Has(CapMeasCapSig) {
		return 0, NewProtocolError(ErrorInvalidRequest, 0)
	}

	var blocks []MeasurementBlock
	switch measReq.Header.Param2 {
	case 0x00:
		blocks = ctx.Measurements
	case 0xFF:
		// Number-of-blocks query: the response carries the count but no
		// block content.
	default:
		idx := int(measReq.Header.Param2) - 1
		if idx < 0 || idx >= len(ctx.Measurements) {
			return 0, NewProtocolError(ErrorInvalidRequest, 0)
		}
		blocks = []MeasurementBlock{ctx.Measurements[idx]}
	}

	resp := MeasurementsResponse{
		Header:         Header{Version: ctx.Negotiated.Version},
		NumberOfBlocks: uint8(len(ctx.Measurements)),
		Blocks:         blocks,
	}

	if measReq.SignatureRequested() {
		if ctx.Hash == nil {
			return 0, fmt.Errorf("handle get_measurements: signing collaborator: %w", ErrInvalidState)
		}
		if _, err := readNonce(resp.Nonce[:]); err != nil {
			return 0, fmt.Errorf("handle get_measurements: %w", err)
		}
		sig, err := ctx.Hash.Sign(context.Background(), resp.Nonce[:])
		if err != nil {
			return 0, NewProtocolError(ErrorUnspecified, 0)
		}
		resp.Signature = sig
	}

	n, err := MarshalMeasurementsResponse(out, resp)
	if err != nil {
		return 0, fmt.Errorf("handle get_measurements: %w", err)
	}
	return n, nil
}

// handleVendorDefined implements VENDOR_DEFINED_REQUEST/RESPONSE. This package has no vendor payload of its own to interpret; it
// echoes the request's standard id and vendor id back with an empty
// payload, giving an integrator a place to intercept and answer instead.
func handleVendorDefined(ctx *Context, req []byte, out []byte) (int, error) {
	vdReq, err := UnmarshalVendorDefinedRequest(req)
	if err != nil {
		return 0, NewProtocolError(ErrorInvalidRequest, 0)
	}
	resp := VendorDefinedResponse{
		Header:     Header{Version: ctx.Negotiated.Version},
		StandardID: vdReq.StandardID,
		VendorID:   vdReq.VendorID,
	}
	n, err := MarshalVendorDefinedResponse(out, resp)
	if err != nil {
		return 0, fmt.Errorf("handle vendor_defined_request: %w", err)
	}
	return n, nil
}
