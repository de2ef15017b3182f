package spdm

import (
	"fmt"

	"github.com/spdm-io/spdm-responder/internal/msgbuf"
)

// CertificateSlot holds one provisioned certificate chain.
// An unprovisioned slot has a nil Chain and is skipped by GET_DIGESTS and
// rejected by GET_CERTIFICATE.
type CertificateSlot struct {
	Chain []byte
	Hash  []byte // pre-computed digest of Chain, sized to the negotiated hash algorithm
}

// Provisioned reports whether the slot holds a certificate chain.
func (s CertificateSlot) Provisioned() bool {
	return len(s.Chain) > 0
}

// NegotiatedParams holds the outcome of capability and algorithm
// negotiation, fixed once ConnectionState reaches
// ConnectionStateNegotiated.
type NegotiatedParams struct {
	Version          Version
	LocalFlags       CapabilityFlags
	PeerFlags        CapabilityFlags
	CTExponent       uint8
	MeasurementHash  HashProvider
	BaseHash         HashProvider

	// SupportedBaseHashAlgos and SupportedBaseAsymAlgos are the responder's
	// own algorithm bitmasks, ANDed against the requester's proposal during
	// NEGOTIATE_ALGORITHMS to pick BaseHashSel/BaseAsymSel.
	SupportedBaseHashAlgos uint32
	SupportedBaseAsymAlgos uint32
	BaseHashSel            uint32
	BaseAsymSel            uint32
}

// EffectiveFlags returns the AND of local and peer capability flags: the
// set of capabilities both sides support and that the responder is
// therefore allowed to exercise.
func (p NegotiatedParams) EffectiveFlags() CapabilityFlags {
	return p.LocalFlags & p.PeerFlags
}

// Context is the responder's per-connection state: the connection and
// response state machine, negotiated parameters, provisioned certificate
// slots, the session table, and the transcript buffers that feed
// signature and MAC computation.
//
// A Context is not safe for concurrent use; callers serialize requests on a
// single connection the way the underlying transport already does.
type Context struct {
	ConnectionState ConnectionState
	ResponseState   ResponseState
	Negotiated      NegotiatedParams

	Slots [MaxSlots]CertificateSlot

	// Measurements holds the responder's static measurement set, provided
	// by the integrator at provisioning time; this package neither collects
	// nor interprets measurement content.
	Measurements []MeasurementBlock

	Hash SignProvider // signing collaborator for CHALLENGE_AUTH/KEY_EXCHANGE_RSP
	AEAD AEADProvider
	KDF  KDFProvider

	// Transcript buffers. MessageA covers GET_VERSION through
	// NEGOTIATE_ALGORITHMS; MessageB covers GET_DIGESTS/GET_CERTIFICATE;
	// MessageC covers CHALLENGE.
	MessageA msgbuf.Buffer
	MessageB msgbuf.Buffer
	MessageC msgbuf.Buffer

	sessions    map[uint32]*SessionInfo
	sessionIDs  *sessionIDAllocator
}

// NewContext constructs a Context with its transcript buffers initialized
// and its state machine at the starting position. Callers populate Slots
// and the collaborator fields (Hash, AEAD, KDF, Negotiated.MeasurementHash,
// Negotiated.BaseHash) before the first Dispatch call.
func NewContext() (*Context, error) {
	c := &Context{
		sessions:   make(map[uint32]*SessionInfo, MaxSessions),
		sessionIDs: newSessionIDAllocator(),
	}
	if err := c.MessageA.Init(msgbuf.Small); err != nil {
		return nil, fmt.Errorf("new context: message_a: %w", err)
	}
	if err := c.MessageB.Init(msgbuf.Large); err != nil {
		return nil, fmt.Errorf("new context: message_b: %w", err)
	}
	if err := c.MessageC.Init(msgbuf.Medium); err != nil {
		return nil, fmt.Errorf("new context: message_c: %w", err)
	}
	return c, nil
}

// Session returns the session with the given id, or nil if none exists.
func (c *Context) Session(id uint32) *SessionInfo {
	return c.sessions[id]
}

// SessionCount returns the number of sessions currently in the table.
func (c *Context) SessionCount() int {
	return len(c.sessions)
}

// Sessions returns a snapshot slice of every session currently in the
// table, in no particular order. Intended for read-only introspection
// (e.g. the admin API); callers must not mutate the returned SessionInfo
// values concurrently with Dispatch.
func (c *Context) Sessions() []*SessionInfo {
	out := make([]*SessionInfo, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, s)
	}
	return out
}

// NewSession allocates a session id and inserts a fresh SessionInfo into
// the session table, failing with ErrorSessionLimitExceeded if the table is
// already at MaxSessions.
func (c *Context) NewSession() (*SessionInfo, error) {
	if len(c.sessions) >= MaxSessions {
		return nil, NewProtocolError(ErrorSessionLimitExceeded, 0)
	}
	id, err := c.sessionIDs.Allocate()
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	info := &SessionInfo{ID: id, State: SessionStateHandshaking}
	if err := info.MessageK.Init(msgbuf.Large); err != nil {
		c.sessionIDs.Release(id)
		return nil, fmt.Errorf("new session: message_k: %w", err)
	}
	if err := info.MessageF.Init(msgbuf.Medium); err != nil {
		c.sessionIDs.Release(id)
		return nil, fmt.Errorf("new session: message_f: %w", err)
	}
	c.sessions[id] = info
	return info, nil
}

// handshakingSession returns the session currently mid-handshake:
// FINISH/PSK_FINISH carry no session id in the SPDM header itself, so this
// package resolves the one session still in SessionStateHandshaking rather
// than decoding an id that isn't there. Returns nil if none or more than
// one session is handshaking.
func (c *Context) handshakingSession() *SessionInfo {
	var found *SessionInfo
	for _, s := range c.sessions {
		if s.State != SessionStateHandshaking {
			continue
		}
		if found != nil {
			return nil
		}
		found = s
	}
	return found
}

// EndSession removes a session from the table and releases its id for
// reuse.
func (c *Context) EndSession(id uint32) {
	delete(c.sessions, id)
	c.sessionIDs.Release(id)
}

// ResetTranscripts clears the connection-level transcript buffers
// (message_a, message_b, message_c) and is used when a GET_VERSION request
// restarts negotiation. Per-session buffers are not touched here.
func (c *Context) ResetTranscripts() {
	c.MessageA.Reset()
	c.MessageB.Reset()
	c.MessageC.Reset()
}

// resetTranscriptViaRequestCode discards transcript state a fresh request
// for code makes stale, before that request's handler appends anything of
// its own. A GET_CERTIFICATE arriving after a CHALLENGE attempt invalidates
// that challenge's binding, since the cert chain it signed over is being
// re-read; message_c has to start over before the new exchange continues.
func (c *Context) resetTranscriptViaRequestCode(code Code) {
	switch code {
	case CodeGetCertificate:
		c.MessageC.Reset()
	}
}

// ResetConnection restores the Context to ConnectionStateNotStarted,
// clears transcripts, and tears down every session. Negotiated parameters
// and provisioned slots are preserved since they describe responder
// capability, not connection progress.
func (c *Context) ResetConnection() {
	c.ConnectionState = ConnectionStateNotStarted
	c.ResponseState = ResponseStateNormal
	c.ResetTranscripts()
	for id := range c.sessions {
		c.sessionIDs.Release(id)
	}
	c.sessions = make(map[uint32]*SessionInfo, MaxSessions)
}
