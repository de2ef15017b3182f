package spdm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"hash"
)

// fakeHashProvider wraps sha256 so tests don't depend on a real negotiated
// algorithm collaborator.
type fakeHashProvider struct{}

func (fakeHashProvider) New() hash.Hash { return sha256.New() }
func (fakeHashProvider) Size() int      { return sha256.Size }

// fakeSignProvider returns a fixed-length deterministic "signature" so
// tests can assert on response shape without a real asymmetric key.
type fakeSignProvider struct {
	sigLen int
}

func (f fakeSignProvider) Sign(ctx context.Context, digest []byte) ([]byte, error) {
	sig := make([]byte, f.sigLen)
	copy(sig, digest)
	return sig, nil
}

func (f fakeSignProvider) Verify(ctx context.Context, digest, signature []byte) error {
	return nil
}

func (f fakeSignProvider) SignatureSize() int { return f.sigLen }

// fakeKDFProvider derives a fixed-length deterministic key so session
// handlers can be exercised without real key agreement.
type fakeKDFProvider struct{}

func (fakeKDFProvider) Derive(ctx context.Context, secret, label, ctxBytes []byte, outLen int) ([]byte, error) {
	out := make([]byte, outLen)
	copy(out, secret)
	return out, nil
}

// fakeAEADProvider implements Open as a bare equality check against
// additionalData, letting tests exercise the non-mutual-auth FINISH path
// without a real cipher.
type fakeAEADProvider struct {
	nonceSize int
	keySize   int
}

func (f fakeAEADProvider) Seal(dst, nonce, plaintext, additionalData []byte) []byte {
	return append(dst, additionalData...)
}

func (f fakeAEADProvider) Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	if !bytes.Equal(ciphertext, additionalData) {
		return nil, errFakeAEADAuthFailed
	}
	return dst, nil
}

func (f fakeAEADProvider) KeySize() int   { return f.keySize }
func (f fakeAEADProvider) NonceSize() int { return f.nonceSize }

var errFakeAEADAuthFailed = errors.New("fake aead: authentication failed")

// newTestContext builds a Context wired with fake collaborators and one
// provisioned certificate slot, negotiated up through NEGOTIATED, ready for
// handler-level tests that start at GET_DIGESTS or later.
func newTestContext(chain []byte) (*Context, error) {
	ctx, err := NewContext()
	if err != nil {
		return nil, err
	}
	h := fakeHashProvider{}
	sum := sha256.Sum256(chain)
	ctx.Slots[0] = CertificateSlot{Chain: chain, Hash: sum[:]}
	ctx.Negotiated.Version = Version12
	ctx.Negotiated.LocalFlags = CapCertCap | CapChalCap | CapMeasCapSig | CapHBeatCap | CapKeyExCap | CapPSKCap | CapKeyUpdCap
	ctx.Negotiated.PeerFlags = ctx.Negotiated.LocalFlags
	ctx.Negotiated.BaseHash = h
	ctx.Negotiated.MeasurementHash = h
	ctx.Hash = fakeSignProvider{sigLen: 64}
	ctx.KDF = fakeKDFProvider{}
	ctx.AEAD = fakeAEADProvider{nonceSize: 12, keySize: 32}
	ctx.ConnectionState = ConnectionStateNegotiated
	return ctx, nil
}
