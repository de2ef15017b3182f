package spdm

import (
	"context"
	"fmt"
)

func init() {
	registerHandler(CodeChallenge, handleChallenge)
}

// handleChallenge implements CHALLENGE/CHALLENGE_AUTH. It
// binds the requester's nonce and the accumulated message_a/message_b
// transcript into a digest, signs it via the responder's SignProvider, and
// advances the connection to AUTHENTICATED directly when no session
// capability was negotiated at all: a responder that never advertised KEY_EX_CAP or PSK_CAP has no
// further handshake step to reach AUTHENTICATED through.
func handleChallenge(ctx *Context, req []byte, out []byte) (int, error) {
	if !ctx.Negotiated.EffectiveFlags().Has(CapChalCap) {
		return 0, NewProtocolError(ErrorUnsupportedRequest, uint8(CodeChallenge))
	}
	if ctx.Hash == nil {
		return 0, fmt.Errorf("handle challenge: signing collaborator: %w", ErrInvalidState)
	}

	chalReq, err := UnmarshalChallengeRequest(req)
	if err != nil {
		return 0, NewProtocolError(ErrorInvalidRequest, 0)
	}
	slotID := chalReq.Header.Param1 & SlotIDMask
	if slotID >= MaxSlots || !ctx.Slots[slotID].Provisioned() {
		return 0, NewProtocolError(ErrorInvalidRequest, 0)
	}

	if err := ctx.MessageC.Append(req, len(req)); err != nil {
		return 0, NewProtocolError(ErrorUnspecified, 0)
	}

	h := ctx.Negotiated.BaseHash
	if h == nil {
		return 0, fmt.Errorf("handle challenge: base hash collaborator: %w", ErrInvalidState)
	}
	digest := h.New()
	digest.Write(ctx.MessageA.Data())
	digest.Write(ctx.MessageB.Data())
	digest.Write(ctx.MessageC.Data())
	transcriptDigest := digest.Sum(nil)

	signature, err := ctx.Hash.Sign(context.Background(), transcriptDigest)
	if err != nil {
		return 0, NewProtocolError(ErrorUnspecified, 0)
	}

	var nonce [32]byte
	if _, err := readNonce(nonce[:]); err != nil {
		return 0, fmt.Errorf("handle challenge: %w", err)
	}

	resp := ChallengeAuthResponse{
		Header: Header{
			Version: ctx.Negotiated.Version,
			Code:    CodeChallengeAuth,
			Param1:  slotID,
		},
		CertChainHash: ctx.Slots[slotID].Hash,
		Nonce:         nonce,
		Signature:     signature,
	}

	n, err := MarshalChallengeAuthResponse(out, resp)
	if err != nil {
		return 0, fmt.Errorf("handle challenge: %w", err)
	}

	if err := ctx.MessageC.Append(out[:n], n); err != nil {
		return 0, NewProtocolError(ErrorUnspecified, 0)
	}

	if ctx.Negotiated.EffectiveFlags()&(CapKeyExCap|CapPSKCap) == 0 {
		ctx.ConnectionState.AdvanceTo(ConnectionStateAuthenticated)
	}

	return n, nil
}
