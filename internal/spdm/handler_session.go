package spdm

import (
	"context"
	"fmt"
)

func init() {
	registerHandler(CodeKeyExchange, handleKeyExchange)
	registerHandler(CodeFinish, handleFinish)
	registerHandler(CodePSKExchange, handlePSKExchange)
	registerHandler(CodePSKFinish, handlePSKFinish)
	registerHandler(CodeKeyUpdate, handleKeyUpdate)
}

// handleKeyExchange implements KEY_EXCHANGE/KEY_EXCHANGE_RSP. It allocates
// a session, derives a responder verify-data value via the KDF
// collaborator, and leaves key agreement itself to that collaborator:
// this package never touches a shared secret directly.
func handleKeyExchange(ctx *Context, req []byte, out []byte) (int, error) {
	if !ctx.Negotiated.EffectiveFlags().Has(CapKeyExCap) {
		return 0, NewProtocolError(ErrorUnsupportedRequest, uint8(CodeKeyExchange))
	}
	if ctx.KDF == nil {
		return 0, fmt.Errorf("handle key_exchange: kdf collaborator: %w", ErrInvalidState)
	}

	keReq, err := UnmarshalKeyExchangeRequest(req)
	if err != nil {
		return 0, NewProtocolError(ErrorInvalidRequest, 0)
	}

	session, err := ctx.NewSession()
	if err != nil {
		var pe *ProtocolError
		if asProtocolError(err, &pe) {
			return 0, pe
		}
		return 0, fmt.Errorf("handle key_exchange: %w", err)
	}
	session.MutAuthRequested = keReq.SessionPolicy&0x01 != 0

	if err := session.MessageK.Append(req, len(req)); err != nil {
		ctx.EndSession(session.ID)
		return 0, NewProtocolError(ErrorUnspecified, 0)
	}

	var randomData [32]byte
	if _, err := readNonce(randomData[:]); err != nil {
		ctx.EndSession(session.ID)
		return 0, fmt.Errorf("handle key_exchange: %w", err)
	}

	verifyData, err := ctx.KDF.Derive(context.Background(), keReq.RandomData[:], []byte("responder finished"), randomData[:], 32)
	if err != nil {
		ctx.EndSession(session.ID)
		return 0, NewProtocolError(ErrorUnspecified, 0)
	}

	resp := KeyExchangeRspResponse{
		Header:              Header{Version: ctx.Negotiated.Version},
		RspSessionID:        uint16(session.ID),
		RandomData:          randomData,
		ResponderVerifyData: verifyData,
	}

	n, err := MarshalKeyExchangeRspResponse(out, resp)
	if err != nil {
		ctx.EndSession(session.ID)
		return 0, fmt.Errorf("handle key_exchange: %w", err)
	}

	if err := session.MessageK.Append(out[:n], n); err != nil {
		ctx.EndSession(session.ID)
		return 0, NewProtocolError(ErrorUnspecified, 0)
	}

	return n, nil
}

// handleFinish implements FINISH/FINISH_RSP. Since FINISH carries no
// session id of its own in the SPDM header, this handler looks
// up the one session still mid-handshake rather than decoding one. It
// verifies the requester's finish signature or MAC against the handshake
// transcript before the session is allowed to reach ESTABLISHED; a FINISH
// that fails verification never touches session or connection state.
func handleFinish(ctx *Context, req []byte, out []byte) (int, error) {
	if !ctx.Negotiated.EffectiveFlags().Has(CapKeyExCap) {
		return 0, NewProtocolError(ErrorUnsupportedRequest, uint8(CodeFinish))
	}

	session := ctx.handshakingSession()
	if session == nil {
		return 0, NewProtocolError(ErrorSessionRequired, 0)
	}

	baseHash := ctx.Negotiated.BaseHash
	if baseHash == nil {
		return 0, fmt.Errorf("handle finish: base hash collaborator: %w", ErrInvalidState)
	}

	// A mutually authenticated session carries a requester signature sized
	// to the negotiated asymmetric algorithm; otherwise FINISH carries a
	// MAC the size of the negotiated hash.
	sigOrMACLen := baseHash.Size()
	if session.MutAuthRequested {
		if ctx.Hash == nil {
			return 0, fmt.Errorf("handle finish: sign collaborator: %w", ErrInvalidState)
		}
		sigOrMACLen = ctx.Hash.SignatureSize()
	}

	finReq, err := UnmarshalFinishRequest(req, sigOrMACLen)
	if err != nil {
		return 0, NewProtocolError(ErrorInvalidRequest, 0)
	}
	if finReq.FinishSignatureIncluded() != session.MutAuthRequested {
		return 0, NewProtocolError(ErrorInvalidRequest, 0)
	}

	digest := baseHash.New()
	digest.Write(ctx.MessageA.Data())
	digest.Write(ctx.MessageB.Data())
	digest.Write(ctx.MessageC.Data())
	digest.Write(session.MessageK.Data())
	transcriptDigest := digest.Sum(nil)

	if session.MutAuthRequested {
		if err := ctx.Hash.Verify(context.Background(), transcriptDigest, finReq.SignatureOrMAC); err != nil {
			return 0, NewProtocolError(ErrorDecryptError, 0)
		}
	} else {
		if ctx.AEAD == nil {
			return 0, fmt.Errorf("handle finish: aead collaborator: %w", ErrInvalidState)
		}
		nonce := make([]byte, ctx.AEAD.NonceSize())
		if _, err := ctx.AEAD.Open(nil, nonce, finReq.SignatureOrMAC, transcriptDigest); err != nil {
			return 0, NewProtocolError(ErrorDecryptError, 0)
		}
	}

	if err := session.MessageF.Append(req, len(req)); err != nil {
		return 0, NewProtocolError(ErrorUnspecified, 0)
	}

	resp := FinishRspResponse{Header: Header{Version: ctx.Negotiated.Version}}
	n, err := MarshalFinishRspResponse(out, resp)
	if err != nil {
		return 0, fmt.Errorf("handle finish: %w", err)
	}

	if err := session.MessageF.Append(out[:n], n); err != nil {
		return 0, NewProtocolError(ErrorUnspecified, 0)
	}

	session.State = SessionStateEstablished
	ctx.ConnectionState.AdvanceTo(ConnectionStateAuthenticated)

	return n, nil
}

// handlePSKExchange implements PSK_EXCHANGE/PSK_EXCHANGE_RSP, the pre-shared-key analog of KEY_EXCHANGE. Resolving the PSK hint
// to an actual key belongs to the KDF collaborator's caller, not this
// package.
func handlePSKExchange(ctx *Context, req []byte, out []byte) (int, error) {
	if !ctx.Negotiated.EffectiveFlags().Has(CapPSKCap) {
		return 0, NewProtocolError(ErrorUnsupportedRequest, uint8(CodePSKExchange))
	}

	session, err := ctx.NewSession()
	if err != nil {
		var pe *ProtocolError
		if asProtocolError(err, &pe) {
			return 0, pe
		}
		return 0, fmt.Errorf("handle psk_exchange: %w", err)
	}

	if err := session.MessageK.Append(req, len(req)); err != nil {
		ctx.EndSession(session.ID)
		return 0, NewProtocolError(ErrorUnspecified, 0)
	}

	var responderContext [32]byte
	if _, err := readNonce(responderContext[:]); err != nil {
		ctx.EndSession(session.ID)
		return 0, fmt.Errorf("handle psk_exchange: %w", err)
	}

	resp := PSKExchangeRspResponse{
		Header:           Header{Version: ctx.Negotiated.Version},
		RspSessionID:     uint16(session.ID),
		ResponderContext: responderContext[:],
	}

	n, err := MarshalPSKExchangeRspResponse(out, resp)
	if err != nil {
		ctx.EndSession(session.ID)
		return 0, fmt.Errorf("handle psk_exchange: %w", err)
	}

	if err := session.MessageK.Append(out[:n], n); err != nil {
		ctx.EndSession(session.ID)
		return 0, NewProtocolError(ErrorUnspecified, 0)
	}

	return n, nil
}

// handlePSKFinish implements PSK_FINISH/PSK_FINISH_RSP.
func handlePSKFinish(ctx *Context, req []byte, out []byte) (int, error) {
	if !ctx.Negotiated.EffectiveFlags().Has(CapPSKCap) {
		return 0, NewProtocolError(ErrorUnsupportedRequest, uint8(CodePSKFinish))
	}
	session := ctx.handshakingSession()
	if session == nil {
		return 0, NewProtocolError(ErrorSessionRequired, 0)
	}
	resp := PSKFinishRspResponse{Header: Header{Version: ctx.Negotiated.Version}}
	n, err := MarshalPSKFinishRspResponse(out, resp)
	if err != nil {
		return 0, fmt.Errorf("handle psk_finish: %w", err)
	}
	session.State = SessionStateEstablished
	ctx.ConnectionState.AdvanceTo(ConnectionStateAuthenticated)
	return n, nil
}

// handleKeyUpdate implements KEY_UPDATE/KEY_UPDATE_ACK. Key
// derivation for the new application secret is the KDF collaborator's job;
// this handler only acknowledges the request.
func handleKeyUpdate(ctx *Context, req []byte, out []byte) (int, error) {
	if !ctx.Negotiated.EffectiveFlags().Has(CapKeyUpdCap) {
		return 0, NewProtocolError(ErrorUnsupportedRequest, uint8(CodeKeyUpdate))
	}
	h, err := decodeHeader(req)
	if err != nil {
		return 0, NewProtocolError(ErrorInvalidRequest, 0)
	}
	resp := KeyUpdateAckResponse{Header: Header{Version: ctx.Negotiated.Version, Param1: h.Param1, Param2: h.Param2}}
	n, err := MarshalKeyUpdateAckResponse(out, resp)
	if err != nil {
		return 0, fmt.Errorf("handle key_update: %w", err)
	}
	return n, nil
}
