package spdm

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/spdm-io/spdm-responder/internal/msgbuf"
)

// maxSessionIDAllocAttempts bounds the retry loop in Allocate
// against the vanishingly unlikely case of repeated collisions, mirroring
// the bounded-retry discriminator allocator this type is grounded on.
const maxSessionIDAllocAttempts = 100

// SessionInfo tracks one secured-session's negotiated state from
// KEY_EXCHANGE/PSK_EXCHANGE through END_SESSION.
type SessionInfo struct {
	ID    uint32
	State SessionState

	// MessageK and MessageF are the per-session transcript buffers: the
	// key-exchange transcript and the finish transcript respectively
	//.
	MessageK msgbuf.Buffer
	MessageF msgbuf.Buffer

	// MutAuthRequested records whether this session's KEY_EXCHANGE asked
	// for mutual authentication, gating whether FINISH must carry a
	// requester signature.
	MutAuthRequested bool

	// HandshakeSecret and the derived application secrets are intentionally
	// omitted: secret material and the AEAD record layer belong to the
	// collaborator behind AEADProvider/KDFProvider.
}

// sessionIDAllocator hands out unique 32-bit session identifiers using a
// cryptographically random source, guarding against accidental correlation
// between sessions that an incrementing counter would expose.
type sessionIDAllocator struct {
	mu        sync.Mutex
	allocated map[uint32]struct{}
}

func newSessionIDAllocator() *sessionIDAllocator {
	return &sessionIDAllocator{
		allocated: make(map[uint32]struct{}, MaxSessions),
	}
}

// Allocate returns a session id not currently in use. It retries on
// collision up to maxSessionIDAllocAttempts times before giving up; with a
// 32-bit space and at most MaxSessions concurrently allocated, exhausting
// the retry budget indicates a broken random source, not bad luck.
func (a *sessionIDAllocator) Allocate() (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var buf [4]byte
	for attempt := 0; attempt < maxSessionIDAllocAttempts; attempt++ {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, fmt.Errorf("allocate session id: %w", err)
		}
		id := binary.LittleEndian.Uint32(buf[:])
		if id == 0 {
			continue
		}
		if _, exists := a.allocated[id]; exists {
			continue
		}
		a.allocated[id] = struct{}{}
		return id, nil
	}
	return 0, fmt.Errorf("allocate session id: exhausted %d attempts: %w", maxSessionIDAllocAttempts, ErrInternal)
}

// Release returns id to the pool of available session identifiers.
func (a *sessionIDAllocator) Release(id uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.allocated, id)
}

// IsAllocated reports whether id is currently in use.
func (a *sessionIDAllocator) IsAllocated(id uint32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.allocated[id]
	return ok
}
