package spdm

import (
	"fmt"

	"github.com/spdm-io/spdm-responder/internal/wire"
)

// KeyExchangeRequest is the KEY_EXCHANGE request body, reduced to the
// fields the responder's handshake setup actually consults.
// The requester's Diffie-Hellman exchange data itself is opaque to this
// package: key agreement is delegated to KDFProvider.
type KeyExchangeRequest struct {
	Header            Header // Param1: measurement summary hash type; Param2: slot id
	ReqSessionID      uint16
	SessionPolicy     uint8
	Reserved          uint8
	RandomData        [32]byte
	ExchangeData      []byte
}

// UnmarshalKeyExchangeRequest decodes a KEY_EXCHANGE request. Every byte of
// buf past the fixed prefix is taken as ExchangeData.
func UnmarshalKeyExchangeRequest(buf []byte) (KeyExchangeRequest, error) {
	h, err := decodeHeader(buf)
	if err != nil {
		return KeyExchangeRequest{}, err
	}
	const fixed = HeaderSize + 4 + 32
	if len(buf) < fixed {
		return KeyExchangeRequest{}, fmt.Errorf("unmarshal key_exchange: need %d bytes, got %d: %w", fixed, len(buf), ErrInvalidParameter)
	}
	reqSessionID, err := wire.ReadU16(buf[HeaderSize:])
	if err != nil {
		return KeyExchangeRequest{}, fmt.Errorf("unmarshal key_exchange req_session_id: %w", err)
	}
	var req KeyExchangeRequest
	req.Header = h
	req.ReqSessionID = reqSessionID
	req.SessionPolicy = buf[HeaderSize+2]
	copy(req.RandomData[:], buf[HeaderSize+4:fixed])
	if len(buf) > fixed {
		req.ExchangeData = buf[fixed:]
	}
	return req, nil
}

// KeyExchangeRspResponse is the KEY_EXCHANGE_RSP response body.
type KeyExchangeRspResponse struct {
	Header          Header
	RspSessionID    uint16 // low 16 bits of the responder's allocated session id
	MacDataLen      uint8
	Reserved        uint8
	RandomData      [32]byte
	ExchangeData    []byte
	MeasurementSummary []byte
	OpaqueData      []byte
	Signature       []byte
	ResponderVerifyData []byte
}

// MarshalKeyExchangeRspResponse encodes a KEY_EXCHANGE_RSP response into
// dst.
func MarshalKeyExchangeRspResponse(dst []byte, resp KeyExchangeRspResponse) (int, error) {
	fixed := HeaderSize + 4 + 32 + len(resp.ExchangeData) + len(resp.MeasurementSummary) + 2 + len(resp.OpaqueData)
	total := fixed + len(resp.Signature) + len(resp.ResponderVerifyData)
	if len(dst) < total {
		return 0, fmt.Errorf("marshal key_exchange_rsp: need %d bytes, got %d: %w", total, len(dst), ErrBufferTooSmall)
	}
	resp.Header.Code = CodeKeyExchangeRsp
	if err := encodeHeader(dst, resp.Header); err != nil {
		return 0, fmt.Errorf("marshal key_exchange_rsp: %w", err)
	}
	if err := wire.WriteU16(dst[HeaderSize:], resp.RspSessionID); err != nil {
		return 0, fmt.Errorf("marshal key_exchange_rsp session id: %w", err)
	}
	dst[HeaderSize+2] = resp.MacDataLen
	dst[HeaderSize+3] = 0
	off := HeaderSize + 4
	off += copy(dst[off:], resp.RandomData[:])
	off += copy(dst[off:], resp.ExchangeData)
	off += copy(dst[off:], resp.MeasurementSummary)
	if err := wire.WriteU16(dst[off:], uint16(len(resp.OpaqueData))); err != nil {
		return 0, fmt.Errorf("marshal key_exchange_rsp opaque length: %w", err)
	}
	off += 2
	off += copy(dst[off:], resp.OpaqueData)
	off += copy(dst[off:], resp.Signature)
	off += copy(dst[off:], resp.ResponderVerifyData)
	return off, nil
}

// FinishRequest is the FINISH request body.
type FinishRequest struct {
	Header         Header // Param1 bit 0: signature included
	SignatureOrMAC []byte
}

// FinishSignatureIncluded reports whether the requester included a
// signature over the handshake transcript, as opposed to a MAC computed
// from the session's handshake secret.
func (r FinishRequest) FinishSignatureIncluded() bool {
	return r.Header.Param1&0x01 != 0
}

// UnmarshalFinishRequest decodes a FINISH request. sigOrMACLen is the
// expected length of the trailing signature-or-MAC field, which depends on
// whether mutual authentication was requested during KEY_EXCHANGE and is
// therefore supplied by the caller rather than read from the wire.
func UnmarshalFinishRequest(buf []byte, sigOrMACLen int) (FinishRequest, error) {
	h, err := decodeHeader(buf)
	if err != nil {
		return FinishRequest{}, err
	}
	total := HeaderSize + sigOrMACLen
	if len(buf) < total {
		return FinishRequest{}, fmt.Errorf("unmarshal finish: need %d bytes, got %d: %w", total, len(buf), ErrInvalidParameter)
	}
	return FinishRequest{
		Header:         h,
		SignatureOrMAC: buf[HeaderSize:total],
	}, nil
}

// FinishRspResponse is the FINISH_RSP response body.
type FinishRspResponse struct {
	Header       Header
	ResponderMAC []byte // present only when the session was not established in clear text
}

// MarshalFinishRspResponse encodes a FINISH_RSP response into dst.
func MarshalFinishRspResponse(dst []byte, resp FinishRspResponse) (int, error) {
	total := HeaderSize + len(resp.ResponderMAC)
	if len(dst) < total {
		return 0, fmt.Errorf("marshal finish_rsp: need %d bytes, got %d: %w", total, len(dst), ErrBufferTooSmall)
	}
	resp.Header.Code = CodeFinishRsp
	if err := encodeHeader(dst, resp.Header); err != nil {
		return 0, fmt.Errorf("marshal finish_rsp: %w", err)
	}
	copy(dst[HeaderSize:total], resp.ResponderMAC)
	return total, nil
}

// PSKExchangeRequest is the PSK_EXCHANGE request body, reduced to the
// fields needed to establish a pre-shared-key session.
type PSKExchangeRequest struct {
	Header        Header // Param1: measurement summary hash type
	ReqSessionID  uint16
	PSKHintLen    uint16
	RequesterContextLen uint16
	OpaqueDataLen uint16
	PSKHint       []byte
	RequesterContext []byte
	OpaqueData    []byte
}

// PSKExchangeRspResponse is the PSK_EXCHANGE_RSP response body.
type PSKExchangeRspResponse struct {
	Header              Header
	RspSessionID        uint16
	ResponderContext    []byte
	MeasurementSummary  []byte
	OpaqueData          []byte
	ResponderVerifyData []byte
}

// MarshalPSKExchangeRspResponse encodes a PSK_EXCHANGE_RSP response into
// dst.
func MarshalPSKExchangeRspResponse(dst []byte, resp PSKExchangeRspResponse) (int, error) {
	total := HeaderSize + 4 + len(resp.ResponderContext) + len(resp.MeasurementSummary) + 2 + len(resp.OpaqueData) + len(resp.ResponderVerifyData)
	if len(dst) < total {
		return 0, fmt.Errorf("marshal psk_exchange_rsp: need %d bytes, got %d: %w", total, len(dst), ErrBufferTooSmall)
	}
	resp.Header.Code = CodePSKExchangeRsp
	if err := encodeHeader(dst, resp.Header); err != nil {
		return 0, fmt.Errorf("marshal psk_exchange_rsp: %w", err)
	}
	if err := wire.WriteU16(dst[HeaderSize:], resp.RspSessionID); err != nil {
		return 0, fmt.Errorf("marshal psk_exchange_rsp session id: %w", err)
	}
	off := HeaderSize + 4
	off += copy(dst[off:], resp.ResponderContext)
	off += copy(dst[off:], resp.MeasurementSummary)
	if err := wire.WriteU16(dst[off:], uint16(len(resp.OpaqueData))); err != nil {
		return 0, fmt.Errorf("marshal psk_exchange_rsp opaque length: %w", err)
	}
	off += 2
	off += copy(dst[off:], resp.OpaqueData)
	off += copy(dst[off:], resp.ResponderVerifyData)
	return off, nil
}

// PSKFinishRequest is the PSK_FINISH request body.
type PSKFinishRequest struct {
	Header         Header
	RequesterVerifyData []byte
}

// PSKFinishRspResponse is the PSK_FINISH_RSP response body; it carries no
// fields beyond the header.
type PSKFinishRspResponse struct {
	Header Header
}

// MarshalPSKFinishRspResponse encodes a PSK_FINISH_RSP response into dst.
func MarshalPSKFinishRspResponse(dst []byte, resp PSKFinishRspResponse) (int, error) {
	if len(dst) < HeaderSize {
		return 0, fmt.Errorf("marshal psk_finish_rsp: need %d bytes, got %d: %w", HeaderSize, len(dst), ErrBufferTooSmall)
	}
	resp.Header.Code = CodePSKFinishRsp
	if err := encodeHeader(dst, resp.Header); err != nil {
		return 0, fmt.Errorf("marshal psk_finish_rsp: %w", err)
	}
	return HeaderSize, nil
}

// KeyUpdateRequest is the KEY_UPDATE request body; it carries no fields
// beyond the header (Param1: update action, Param2: update token).
type KeyUpdateRequest struct {
	Header Header
}

// KeyUpdateAckResponse mirrors the request's Param1/Param2 back to the
// requester.
type KeyUpdateAckResponse struct {
	Header Header
}

// MarshalKeyUpdateAckResponse encodes a KEY_UPDATE_ACK response into dst.
func MarshalKeyUpdateAckResponse(dst []byte, resp KeyUpdateAckResponse) (int, error) {
	if len(dst) < HeaderSize {
		return 0, fmt.Errorf("marshal key_update_ack: need %d bytes, got %d: %w", HeaderSize, len(dst), ErrBufferTooSmall)
	}
	resp.Header.Code = CodeKeyUpdateAck
	if err := encodeHeader(dst, resp.Header); err != nil {
		return 0, fmt.Errorf("marshal key_update_ack: %w", err)
	}
	return HeaderSize, nil
}
