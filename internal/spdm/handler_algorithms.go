package spdm

import "fmt"

func init() {
	registerHandler(CodeNegotiateAlgorithms, handleNegotiateAlgorithms)
}

// handleNegotiateAlgorithms implements NEGOTIATE_ALGORITHMS/ALGORITHMS.
// It picks the highest mutually supported bit in each algorithm bitmask;
// a request that shares no bit with this responder's supported set fails
// with ErrorUnsupportedRequest rather than silently selecting nothing.
func handleNegotiateAlgorithms(ctx *Context, req []byte, out []byte) (int, error) {
	negReq, err := UnmarshalNegotiateAlgorithmsRequest(req)
	if err != nil {
		return 0, NewProtocolError(ErrorInvalidRequest, 0)
	}

	hashSel := highestCommonBit(negReq.BaseHashAlgo, ctx.Negotiated.SupportedBaseHashAlgos)
	if hashSel == 0 {
		return 0, NewProtocolError(ErrorUnsupportedRequest, uint8(CodeNegotiateAlgorithms))
	}
	asymSel := highestCommonBit(negReq.BaseAsymAlgo, ctx.Negotiated.SupportedBaseAsymAlgos)
	if asymSel == 0 {
		return 0, NewProtocolError(ErrorUnsupportedRequest, uint8(CodeNegotiateAlgorithms))
	}

	ctx.Negotiated.BaseHashSel = hashSel
	ctx.Negotiated.BaseAsymSel = asymSel

	resp := AlgorithmsResponse{
		Header: Header{
			Version: ctx.Negotiated.Version,
		},
		MeasurementSpec: negReq.MeasurementSpec,
		BaseHashSel:     hashSel,
		BaseAsymSel:     asymSel,
	}

	n, err := MarshalAlgorithmsResponse(out, resp)
	if err != nil {
		return 0, fmt.Errorf("handle negotiate_algorithms: %w", err)
	}

	if err := ctx.MessageA.Append(req, len(req)); err != nil {
		return 0, NewProtocolError(ErrorUnspecified, 0)
	}
	if err := ctx.MessageA.Append(out[:n], n); err != nil {
		return 0, NewProtocolError(ErrorUnspecified, 0)
	}

	ctx.ConnectionState.AdvanceTo(ConnectionStateNegotiated)
	return n, nil
}

// highestCommonBit returns the numerically highest bit set in both a and b,
// or 0 if they share none.
func highestCommonBit(a, b uint32) uint32 {
	common := a & b
	if common == 0 {
		return 0
	}
	highest := uint32(1) << 31
	for highest != 0 {
		if common&highest != 0 {
			return highest
		}
		highest >>= 1
	}
	return 0
}
