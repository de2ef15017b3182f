package spdm

import (
	"fmt"

	"github.com/spdm-io/spdm-responder/internal/wire"
)

// NegotiateAlgorithmsRequest is the NEGOTIATE_ALGORITHMS request body,
// reduced to its fixed-size prefix: length, measurement specification and
// the requester's proposed base asymmetric and base hash algorithm
// bitmasks. The variable list of extended algorithm blocks that follows in
// SPDM's full request is not parsed.
type NegotiateAlgorithmsRequest struct {
	Header          Header // Param1: number of algorithm structs that follow
	Length          uint16
	MeasurementSpec uint8
	Reserved        uint8
	BaseAsymAlgo    uint32
	BaseHashAlgo    uint32
}

// UnmarshalNegotiateAlgorithmsRequest decodes the fixed-size prefix of a
// NEGOTIATE_ALGORITHMS request.
func UnmarshalNegotiateAlgorithmsRequest(buf []byte) (NegotiateAlgorithmsRequest, error) {
	h, err := decodeHeader(buf)
	if err != nil {
		return NegotiateAlgorithmsRequest{}, err
	}
	const size = HeaderSize + 12
	if len(buf) < size {
		return NegotiateAlgorithmsRequest{}, fmt.Errorf("unmarshal negotiate_algorithms: need %d bytes, got %d: %w", size, len(buf), ErrInvalidParameter)
	}
	length, err := wire.ReadU16(buf[HeaderSize:])
	if err != nil {
		return NegotiateAlgorithmsRequest{}, fmt.Errorf("unmarshal negotiate_algorithms length: %w", err)
	}
	baseAsym, err := wire.ReadU32(buf[HeaderSize+4:])
	if err != nil {
		return NegotiateAlgorithmsRequest{}, fmt.Errorf("unmarshal negotiate_algorithms base_asym: %w", err)
	}
	baseHash, err := wire.ReadU32(buf[HeaderSize+8:])
	if err != nil {
		return NegotiateAlgorithmsRequest{}, fmt.Errorf("unmarshal negotiate_algorithms base_hash: %w", err)
	}
	return NegotiateAlgorithmsRequest{
		Header:          h,
		Length:          length,
		MeasurementSpec: buf[HeaderSize+2],
		BaseAsymAlgo:    baseAsym,
		BaseHashAlgo:    baseHash,
	}, nil
}

// AlgorithmsResponse is the ALGORITHMS response body, reduced the same way
// as NegotiateAlgorithmsRequest.
type AlgorithmsResponse struct {
	Header          Header
	Length          uint16
	MeasurementSpec uint8
	BaseAsymSel     uint32
	BaseHashSel     uint32
}

// MarshalAlgorithmsResponse encodes an ALGORITHMS response into dst.
func MarshalAlgorithmsResponse(dst []byte, resp AlgorithmsResponse) (int, error) {
	const total = HeaderSize + 12
	if len(dst) < total {
		return 0, fmt.Errorf("marshal algorithms response: need %d bytes, got %d: %w", total, len(dst), ErrBufferTooSmall)
	}
	resp.Header.Code = CodeAlgorithms
	if err := encodeHeader(dst, resp.Header); err != nil {
		return 0, fmt.Errorf("marshal algorithms response: %w", err)
	}
	if err := wire.WriteU16(dst[HeaderSize:], uint16(total)); err != nil {
		return 0, fmt.Errorf("marshal algorithms response length: %w", err)
	}
	dst[HeaderSize+2] = resp.MeasurementSpec
	dst[HeaderSize+3] = 0
	if err := wire.WriteU32(dst[HeaderSize+4:], resp.BaseAsymSel); err != nil {
		return 0, fmt.Errorf("marshal algorithms response base_asym: %w", err)
	}
	if err := wire.WriteU32(dst[HeaderSize+8:], resp.BaseHashSel); err != nil {
		return 0, fmt.Errorf("marshal algorithms response base_hash: %w", err)
	}
	return total, nil
}
