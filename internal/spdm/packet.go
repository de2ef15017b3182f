package spdm

import (
	"fmt"

	"github.com/spdm-io/spdm-responder/internal/wire"
)

// Header is the 4-byte prefix common to every SPDM message.
type Header struct {
	Version Version
	Code    Code
	Param1  uint8
	Param2  uint8
}

// decodeHeader reads the fixed 4-byte header from the front of buf.
func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("decode header: need %d bytes, got %d: %w", HeaderSize, len(buf), ErrInvalidParameter)
	}
	return Header{
		Version: Version(buf[0]),
		Code:    Code(buf[1]),
		Param1:  buf[2],
		Param2:  buf[3],
	}, nil
}

// encodeHeader writes h into the front of buf.
func encodeHeader(buf []byte, h Header) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("encode header: need %d bytes, got %d: %w", HeaderSize, len(buf), ErrBufferTooSmall)
	}
	buf[0] = uint8(h.Version)
	buf[1] = uint8(h.Code)
	buf[2] = h.Param1
	buf[3] = h.Param2
	return nil
}

// ErrorResponse is the SPDM ERROR message body.
type ErrorResponse struct {
	Header Header
	Data   []byte // optional extended error data, beyond the header's param2
}

// MarshalErrorResponse encodes an ERROR response at the given version in
// response to a ProtocolError, writing into dst and returning the number of
// bytes written.
func MarshalErrorResponse(dst []byte, version Version, pe *ProtocolError) (int, error) {
	if err := encodeHeader(dst, Header{
		Version: version,
		Code:    CodeError,
		Param1:  uint8(pe.Code),
		Param2:  pe.Data,
	}); err != nil {
		return 0, fmt.Errorf("marshal error response: %w", err)
	}
	return HeaderSize, nil
}

// GetCertificateRequest is the GET_CERTIFICATE request body.
type GetCertificateRequest struct {
	Header Header // Param1 low nibble: slot id; Param2: reserved
	Offset uint16
	Length uint16
}

// SlotID returns the requested certificate slot, masking off the reserved
// upper bits of Param1
func (r GetCertificateRequest) SlotID() uint8 {
	return r.Header.Param1 & SlotIDMask
}

// UnmarshalGetCertificateRequest decodes a GET_CERTIFICATE request from
// buf. The header must already have been validated as CodeGetCertificate by
// the caller; this function re-reads it for convenience.
func UnmarshalGetCertificateRequest(buf []byte) (GetCertificateRequest, error) {
	h, err := decodeHeader(buf)
	if err != nil {
		return GetCertificateRequest{}, err
	}
	if len(buf) < GetCertificateRequestSize {
		return GetCertificateRequest{}, fmt.Errorf("unmarshal get_certificate: need %d bytes, got %d: %w",
			GetCertificateRequestSize, len(buf), ErrInvalidParameter)
	}
	offset, err := wire.ReadU16(buf[HeaderSize:])
	if err != nil {
		return GetCertificateRequest{}, fmt.Errorf("unmarshal get_certificate offset: %w", err)
	}
	length, err := wire.ReadU16(buf[HeaderSize+2:])
	if err != nil {
		return GetCertificateRequest{}, fmt.Errorf("unmarshal get_certificate length: %w", err)
	}
	return GetCertificateRequest{Header: h, Offset: offset, Length: length}, nil
}

// CertificateResponse is the CERTIFICATE response body.
type CertificateResponse struct {
	Header          Header // Param1: slot id; Param2: reserved, always 0
	PortionLength   uint16
	RemainderLength uint16
	CertChainPortion []byte
}

// MarshalCertificateResponse encodes a CERTIFICATE response into dst and
// returns the number of bytes written.
func MarshalCertificateResponse(dst []byte, resp CertificateResponse) (int, error) {
	total := CertificateResponseHeaderSize + len(resp.CertChainPortion)
	if len(dst) < total {
		return 0, fmt.Errorf("marshal certificate response: need %d bytes, got %d: %w", total, len(dst), ErrBufferTooSmall)
	}
	if err := encodeHeader(dst, resp.Header); err != nil {
		return 0, fmt.Errorf("marshal certificate response: %w", err)
	}
	if err := wire.WriteU16(dst[HeaderSize:], resp.PortionLength); err != nil {
		return 0, fmt.Errorf("marshal certificate response portion_length: %w", err)
	}
	if err := wire.WriteU16(dst[HeaderSize+2:], resp.RemainderLength); err != nil {
		return 0, fmt.Errorf("marshal certificate response remainder_length: %w", err)
	}
	copy(dst[CertificateResponseHeaderSize:total], resp.CertChainPortion)
	return total, nil
}

// GetVersionRequest is the GET_VERSION request body; it carries no fields
// beyond the header.
type GetVersionRequest struct {
	Header Header
}

// VersionEntry is one (major, minor, update, alpha) version entry in a
// VERSION response.
type VersionEntry struct {
	Alpha        uint8
	UpdateVer    uint8
	Minor        uint8
	Major        uint8
}

// VersionResponse is the VERSION response body.
type VersionResponse struct {
	Header      Header
	Reserved    uint8
	VersionList []VersionEntry
}

// MarshalVersionResponse encodes a VERSION response into dst.
func MarshalVersionResponse(dst []byte, resp VersionResponse) (int, error) {
	total := HeaderSize + 2 + 2*len(resp.VersionList)
	if len(dst) < total {
		return 0, fmt.Errorf("marshal version response: need %d bytes, got %d: %w", total, len(dst), ErrBufferTooSmall)
	}
	if err := encodeHeader(dst, resp.Header); err != nil {
		return 0, fmt.Errorf("marshal version response: %w", err)
	}
	dst[HeaderSize] = resp.Reserved
	dst[HeaderSize+1] = uint8(len(resp.VersionList))
	off := HeaderSize + 2
	for _, v := range resp.VersionList {
		entry := uint16(v.Alpha) | uint16(v.UpdateVer)<<4 | uint16(v.Minor)<<8 | uint16(v.Major)<<12
		if err := wire.WriteU16(dst[off:], entry); err != nil {
			return 0, fmt.Errorf("marshal version response entry: %w", err)
		}
		off += 2
	}
	return total, nil
}

// GetCapabilitiesRequest is the GET_CAPABILITIES request body.
type GetCapabilitiesRequest struct {
	Header               Header
	Reserved             uint8
	CTExponent           uint8
	Reserved2            uint16
	Flags                CapabilityFlags
}

// UnmarshalGetCapabilitiesRequest decodes a GET_CAPABILITIES request.
func UnmarshalGetCapabilitiesRequest(buf []byte) (GetCapabilitiesRequest, error) {
	h, err := decodeHeader(buf)
	if err != nil {
		return GetCapabilitiesRequest{}, err
	}
	const size = HeaderSize + 8
	if len(buf) < size {
		return GetCapabilitiesRequest{}, fmt.Errorf("unmarshal get_capabilities: need %d bytes, got %d: %w", size, len(buf), ErrInvalidParameter)
	}
	flags, err := wire.ReadU32(buf[HeaderSize+4:])
	if err != nil {
		return GetCapabilitiesRequest{}, fmt.Errorf("unmarshal get_capabilities flags: %w", err)
	}
	return GetCapabilitiesRequest{
		Header:     h,
		Reserved:   buf[HeaderSize],
		CTExponent: buf[HeaderSize+1],
		Flags:      CapabilityFlags(flags),
	}, nil
}

// CapabilitiesResponse is the CAPABILITIES response body.
type CapabilitiesResponse struct {
	Header     Header
	Reserved   uint8
	CTExponent uint8
	Flags      CapabilityFlags
}

// MarshalCapabilitiesResponse encodes a CAPABILITIES response into dst.
func MarshalCapabilitiesResponse(dst []byte, resp CapabilitiesResponse) (int, error) {
	const total = HeaderSize + 8
	if len(dst) < total {
		return 0, fmt.Errorf("marshal capabilities response: need %d bytes, got %d: %w", total, len(dst), ErrBufferTooSmall)
	}
	if err := encodeHeader(dst, resp.Header); err != nil {
		return 0, fmt.Errorf("marshal capabilities response: %w", err)
	}
	dst[HeaderSize] = resp.Reserved
	dst[HeaderSize+1] = resp.CTExponent
	dst[HeaderSize+2] = 0
	dst[HeaderSize+3] = 0
	if err := wire.WriteU32(dst[HeaderSize+4:], uint32(resp.Flags)); err != nil {
		return 0, fmt.Errorf("marshal capabilities response flags: %w", err)
	}
	return total, nil
}

// GetDigestsRequest is the GET_DIGESTS request body; it carries no fields
// beyond the header.
type GetDigestsRequest struct {
	Header Header
}

// DigestsResponse is the DIGESTS response body.
type DigestsResponse struct {
	Header      Header // Param2: bitmask of slots with a provisioned chain
	SlotMask    uint8
	Digests     [][]byte // one digest per set bit in SlotMask, ascending slot order
}

// MarshalDigestsResponse encodes a DIGESTS response into dst.
func MarshalDigestsResponse(dst []byte, resp DigestsResponse) (int, error) {
	total := HeaderSize
	for _, d := range resp.Digests {
		total += len(d)
	}
	if len(dst) < total {
		return 0, fmt.Errorf("marshal digests response: need %d bytes, got %d: %w", total, len(dst), ErrBufferTooSmall)
	}
	resp.Header.Param2 = resp.SlotMask
	if err := encodeHeader(dst, resp.Header); err != nil {
		return 0, fmt.Errorf("marshal digests response: %w", err)
	}
	off := HeaderSize
	for _, d := range resp.Digests {
		off += copy(dst[off:], d)
	}
	return total, nil
}

// ChallengeRequest is the CHALLENGE request body.
type ChallengeRequest struct {
	Header        Header // Param1: slot id; Param2: measurement summary hash type
	Nonce         [32]byte
}

// UnmarshalChallengeRequest decodes a CHALLENGE request.
func UnmarshalChallengeRequest(buf []byte) (ChallengeRequest, error) {
	h, err := decodeHeader(buf)
	if err != nil {
		return ChallengeRequest{}, err
	}
	const size = HeaderSize + 32
	if len(buf) < size {
		return ChallengeRequest{}, fmt.Errorf("unmarshal challenge: need %d bytes, got %d: %w", size, len(buf), ErrInvalidParameter)
	}
	var req ChallengeRequest
	req.Header = h
	copy(req.Nonce[:], buf[HeaderSize:size])
	return req, nil
}

// ChallengeAuthResponse is the CHALLENGE_AUTH response body.
type ChallengeAuthResponse struct {
	Header             Header // Param1 low nibble: slot id
	CertChainHash      []byte
	Nonce              [32]byte
	MeasurementSummary []byte
	OpaqueData         []byte
	Signature          []byte
}

// MarshalChallengeAuthResponse encodes a CHALLENGE_AUTH response into dst.
func MarshalChallengeAuthResponse(dst []byte, resp ChallengeAuthResponse) (int, error) {
	total := HeaderSize + len(resp.CertChainHash) + 32 + len(resp.MeasurementSummary) + 2 + len(resp.OpaqueData) + len(resp.Signature)
	if len(dst) < total {
		return 0, fmt.Errorf("marshal challenge_auth response: need %d bytes, got %d: %w", total, len(dst), ErrBufferTooSmall)
	}
	if err := encodeHeader(dst, resp.Header); err != nil {
		return 0, fmt.Errorf("marshal challenge_auth response: %w", err)
	}
	off := HeaderSize
	off += copy(dst[off:], resp.CertChainHash)
	off += copy(dst[off:], resp.Nonce[:])
	off += copy(dst[off:], resp.MeasurementSummary)
	if err := wire.WriteU16(dst[off:], uint16(len(resp.OpaqueData))); err != nil {
		return 0, fmt.Errorf("marshal challenge_auth response opaque length: %w", err)
	}
	off += 2
	off += copy(dst[off:], resp.OpaqueData)
	off += copy(dst[off:], resp.Signature)
	return off, nil
}

// HeartbeatRequest carries no fields beyond the header.
type HeartbeatRequest struct {
	Header Header
}

// HeartbeatAckResponse carries no fields beyond the header.
type HeartbeatAckResponse struct {
	Header Header
}

// MarshalHeartbeatAckResponse encodes a HEARTBEAT_ACK response into dst.
func MarshalHeartbeatAckResponse(dst []byte, resp HeartbeatAckResponse) (int, error) {
	if len(dst) < HeaderSize {
		return 0, fmt.Errorf("marshal heartbeat_ack response: need %d bytes, got %d: %w", HeaderSize, len(dst), ErrBufferTooSmall)
	}
	if err := encodeHeader(dst, resp.Header); err != nil {
		return 0, fmt.Errorf("marshal heartbeat_ack response: %w", err)
	}
	return HeaderSize, nil
}

// EndSessionRequest is the END_SESSION request body; it carries no fields
// beyond the header (Param1 bit 0: preserve negotiated state across
// session).
type EndSessionRequest struct {
	Header Header
}

// EndSessionAckResponse carries no fields beyond the header.
type EndSessionAckResponse struct {
	Header Header
}

// MarshalEndSessionAckResponse encodes an END_SESSION_ACK response into
// dst.
func MarshalEndSessionAckResponse(dst []byte, resp EndSessionAckResponse) (int, error) {
	if len(dst) < HeaderSize {
		return 0, fmt.Errorf("marshal end_session_ack response: need %d bytes, got %d: %w", HeaderSize, len(dst), ErrBufferTooSmall)
	}
	if err := encodeHeader(dst, resp.Header); err != nil {
		return 0, fmt.Errorf("marshal end_session_ack response: %w", err)
	}
	return HeaderSize, nil
}
