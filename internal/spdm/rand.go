package spdm

import "crypto/rand"

// readNonce fills buf with cryptographically random bytes, used for the
// responder's contribution to the CHALLENGE_AUTH and KEY_EXCHANGE_RSP
// nonce fields.
func readNonce(buf []byte) (int, error) {
	return rand.Read(buf)
}
