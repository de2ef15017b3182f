package spdm

import (
	"fmt"

	"github.com/spdm-io/spdm-responder/internal/wire"
)

// GetMeasurementsRequest is the GET_MEASUREMENTS request body. Param1 bit 0 requests a signature over the measurement block.
type GetMeasurementsRequest struct {
	Header Header // Param2: measurement operation (0x00 = all, 0xFF = number of blocks, else one index)
	Nonce  [32]byte
	SlotID uint8
}

// SignatureRequested reports whether the requester asked for a signed
// response.
func (r GetMeasurementsRequest) SignatureRequested() bool {
	return r.Header.Param1&0x01 != 0
}

// UnmarshalGetMeasurementsRequest decodes a GET_MEASUREMENTS request. The
// nonce and slot id are only present when a signature is requested.
func UnmarshalGetMeasurementsRequest(buf []byte) (GetMeasurementsRequest, error) {
	h, err := decodeHeader(buf)
	if err != nil {
		return GetMeasurementsRequest{}, err
	}
	req := GetMeasurementsRequest{Header: h}
	if !req.SignatureRequested() {
		return req, nil
	}
	const size = HeaderSize + 32 + 1
	if len(buf) < size {
		return GetMeasurementsRequest{}, fmt.Errorf("unmarshal get_measurements: need %d bytes, got %d: %w", size, len(buf), ErrInvalidParameter)
	}
	copy(req.Nonce[:], buf[HeaderSize:HeaderSize+32])
	req.SlotID = buf[HeaderSize+32]
	return req, nil
}

// MeasurementBlock is one indexed measurement record.
type MeasurementBlock struct {
	Index      uint8
	MeasurementSpec uint8
	Value      []byte
}

// MeasurementsResponse is the MEASUREMENTS response body.
type MeasurementsResponse struct {
	Header             Header // Param1: reserved/content changed bit
	NumberOfBlocks     uint8
	Blocks             []MeasurementBlock
	OpaqueData         []byte
	Nonce              [32]byte
	Signature          []byte
}

// MarshalMeasurementsResponse encodes a MEASUREMENTS response into dst.
func MarshalMeasurementsResponse(dst []byte, resp MeasurementsResponse) (int, error) {
	recordLen := 0
	for _, b := range resp.Blocks {
		recordLen += 4 + len(b.Value)
	}
	total := HeaderSize + 1 + 3 + recordLen + 2 + len(resp.OpaqueData)
	if len(resp.Signature) > 0 {
		total += 32 + len(resp.Signature)
	}
	if len(dst) < total {
		return 0, fmt.Errorf("marshal measurements response: need %d bytes, got %d: %w", total, len(dst), ErrBufferTooSmall)
	}
	resp.Header.Code = CodeMeasurements
	if err := encodeHeader(dst, resp.Header); err != nil {
		return 0, fmt.Errorf("marshal measurements response: %w", err)
	}
	off := HeaderSize
	dst[off] = resp.NumberOfBlocks
	off++
	if err := wire.WriteU24(dst[off:], uint32(recordLen)); err != nil {
		return 0, fmt.Errorf("marshal measurements response record length: %w", err)
	}
	off += 3
	for _, b := range resp.Blocks {
		dst[off] = b.Index
		dst[off+1] = b.MeasurementSpec
		if err := wire.WriteU16(dst[off+2:], uint16(len(b.Value))); err != nil {
			return 0, fmt.Errorf("marshal measurements response block length: %w", err)
		}
		off += 4
		off += copy(dst[off:], b.Value)
	}
	if err := wire.WriteU16(dst[off:], uint16(len(resp.OpaqueData))); err != nil {
		return 0, fmt.Errorf("marshal measurements response opaque length: %w", err)
	}
	off += 2
	off += copy(dst[off:], resp.OpaqueData)
	if len(resp.Signature) > 0 {
		off += copy(dst[off:], resp.Nonce[:])
		off += copy(dst[off:], resp.Signature)
	}
	return off, nil
}

// VendorDefinedRequest is the VENDOR_DEFINED_REQUEST body.
type VendorDefinedRequest struct {
	Header          Header
	StandardID      uint16
	VendorIDLen     uint8
	VendorID        []byte
	Payload         []byte
}

// UnmarshalVendorDefinedRequest decodes a VENDOR_DEFINED_REQUEST.
func UnmarshalVendorDefinedRequest(buf []byte) (VendorDefinedRequest, error) {
	h, err := decodeHeader(buf)
	if err != nil {
		return VendorDefinedRequest{}, err
	}
	const fixed = HeaderSize + 3
	if len(buf) < fixed {
		return VendorDefinedRequest{}, fmt.Errorf("unmarshal vendor_defined_request: need %d bytes, got %d: %w", fixed, len(buf), ErrInvalidParameter)
	}
	standardID, err := wire.ReadU16(buf[HeaderSize:])
	if err != nil {
		return VendorDefinedRequest{}, fmt.Errorf("unmarshal vendor_defined_request standard_id: %w", err)
	}
	vendorLen := int(buf[HeaderSize+2])
	end := fixed + vendorLen
	if len(buf) < end {
		return VendorDefinedRequest{}, fmt.Errorf("unmarshal vendor_defined_request: need %d bytes, got %d: %w", end, len(buf), ErrInvalidParameter)
	}
	return VendorDefinedRequest{
		Header:      h,
		StandardID:  standardID,
		VendorIDLen: uint8(vendorLen),
		VendorID:    buf[fixed:end],
		Payload:     buf[end:],
	}, nil
}

// VendorDefinedResponse is the VENDOR_DEFINED_RESPONSE body.
type VendorDefinedResponse struct {
	Header     Header
	StandardID uint16
	VendorID   []byte
	Payload    []byte
}

// MarshalVendorDefinedResponse encodes a VENDOR_DEFINED_RESPONSE into dst.
func MarshalVendorDefinedResponse(dst []byte, resp VendorDefinedResponse) (int, error) {
	total := HeaderSize + 3 + len(resp.VendorID) + len(resp.Payload)
	if len(dst) < total {
		return 0, fmt.Errorf("marshal vendor_defined_response: need %d bytes, got %d: %w", total, len(dst), ErrBufferTooSmall)
	}
	resp.Header.Code = CodeVendorDefinedResponse
	if err := encodeHeader(dst, resp.Header); err != nil {
		return 0, fmt.Errorf("marshal vendor_defined_response: %w", err)
	}
	if err := wire.WriteU16(dst[HeaderSize:], resp.StandardID); err != nil {
		return 0, fmt.Errorf("marshal vendor_defined_response standard_id: %w", err)
	}
	dst[HeaderSize+2] = uint8(len(resp.VendorID))
	off := HeaderSize + 3
	off += copy(dst[off:], resp.VendorID)
	off += copy(dst[off:], resp.Payload)
	return off, nil
}
