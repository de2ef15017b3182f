package spdm

import (
	"context"
	"hash"
)

// HashProvider supplies the negotiated hash algorithm. The responder core
// never selects or implements a hash primitive itself; it asks its collaborator for one each time it needs to extend
// or finalize a transcript digest.
type HashProvider interface {
	// New returns a fresh hash.Hash for the algorithm negotiated during
	// NEGOTIATE_ALGORITHMS.
	New() hash.Hash

	// Size returns the digest size in bytes for the negotiated algorithm.
	Size() int
}

// SignProvider supplies signing and verification over a transcript digest
// using the responder's provisioned private key. ctx carries cancellation
// for collaborators that call out to a hardware security module or remote
// signer.
type SignProvider interface {
	Sign(ctx context.Context, digest []byte) (signature []byte, err error)
	Verify(ctx context.Context, digest, signature []byte) error

	// SignatureSize returns the fixed signature length for the negotiated
	// asymmetric algorithm.
	SignatureSize() int
}

// AEADProvider supplies authenticated encryption for the secured-session
// record layer once a session reaches SessionStateEstablished. The
// responder core never implements AEAD itself. Inside this package only
// FINISH uses it, calling Open as a MAC check over the transcript digest
// for a session without mutual authentication.
type AEADProvider interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	KeySize() int
	NonceSize() int
}

// KDFProvider derives session keys from a shared secret and transcript
// binding. Concrete derivation (HKDF, SPDM's bin_concat construction) is a
// cryptographic primitive the responder core does not implement.
type KDFProvider interface {
	Derive(ctx context.Context, secret, label, context []byte, outLen int) ([]byte, error)
}
