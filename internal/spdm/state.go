package spdm

// ConnectionState tracks how far a single transport connection has
// progressed through the SPDM handshake. It advances
// monotonically; handlers never move it backward. The only way back is
// Context.ResetConnection, which Dispatch runs on every GET_VERSION.
type ConnectionState int

const (
	ConnectionStateNotStarted ConnectionState = iota
	ConnectionStateAfterVersion
	ConnectionStateAfterCapabilities
	ConnectionStateNegotiated
	ConnectionStateAfterDigests
	ConnectionStateAfterCertificate
	ConnectionStateAuthenticated
)

var connectionStateNames = [...]string{
	"NotStarted",
	"AfterVersion",
	"AfterCapabilities",
	"Negotiated",
	"AfterDigests",
	"AfterCertificate",
	"Authenticated",
}

func (s ConnectionState) String() string {
	if int(s) < 0 || int(s) >= len(connectionStateNames) {
		return "Unknown"
	}
	return connectionStateNames[s]
}

// AdvanceTo moves the connection state forward to target, if and only if
// target is strictly greater than the current state. Attempting to move backward
// or sideways is a silent no-op; a hard reset goes through
// Context.ResetConnection instead.
func (s *ConnectionState) AdvanceTo(target ConnectionState) {
	if target > *s {
		*s = target
	}
}

// ResponseState tracks the responder's readiness to process the next
// request on a connection. Unlike ConnectionState, it is not
// monotonic: BUSY and NEED_RESYNC are transient conditions a handler or
// dispatcher clears once resolved.
type ResponseState int

const (
	ResponseStateNormal ResponseState = iota
	ResponseStateBusy
	ResponseStateNeedResync
	ResponseStateProcessingEncap
	ResponseStateNotReady
)

var responseStateNames = [...]string{
	"Normal",
	"Busy",
	"NeedResync",
	"ProcessingEncap",
	"NotReady",
}

func (s ResponseState) String() string {
	if int(s) < 0 || int(s) >= len(responseStateNames) {
		return "Unknown"
	}
	return responseStateNames[s]
}

// SessionState tracks an individual session's progress through key exchange
//. Sessions are established after NEGOTIATED and are
// independent of the connection's own ConnectionState once KEY_EXCHANGE or
// PSK_EXCHANGE begins.
type SessionState int

const (
	SessionStateNotStarted SessionState = iota
	SessionStateHandshaking
	SessionStateEstablished
)

var sessionStateNames = [...]string{
	"NotStarted",
	"Handshaking",
	"Established",
}

func (s SessionState) String() string {
	if int(s) < 0 || int(s) >= len(sessionStateNames) {
		return "Unknown"
	}
	return sessionStateNames[s]
}
