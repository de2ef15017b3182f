package spdm

import (
	"fmt"
)

// handlerFunc processes one decoded request against ctx, writing its
// response (success or protocol-error) into out and returning the number
// of bytes written. A non-nil error from a handlerFunc is either a
// ProtocolError, which Dispatch turns into an ERROR response, or a wrapped
// core sentinel error (a nil collaborator, for instance), which Dispatch
// reports as a non-success Status.
type handlerFunc func(ctx *Context, req []byte, out []byte) (int, error)

// handlers maps each request code this responder accepts to its handler.
// Populated by the init function of each handler_*.go file via
// registerHandler so each handler file stays self-contained.
var handlers = map[Code]handlerFunc{}

func registerHandler(code Code, fn handlerFunc) {
	handlers[code] = fn
}

// minConnectionState records the minimum ConnectionState required before a
// given request code is accepted. Requests not present here (GET_VERSION)
// have no floor: they are valid from NotStarted onward and also double as
// a reset.
var minConnectionState = map[Code]ConnectionState{
	CodeGetCapabilities:      ConnectionStateAfterVersion,
	CodeNegotiateAlgorithms:  ConnectionStateAfterCapabilities,
	CodeGetDigests:           ConnectionStateNegotiated,
	CodeGetCertificate:       ConnectionStateNegotiated,
	CodeChallenge:            ConnectionStateAfterCertificate,
	CodeKeyExchange:          ConnectionStateNegotiated,
	CodeFinish:               ConnectionStateAfterCertificate,
	CodePSKExchange:          ConnectionStateNegotiated,
	CodePSKFinish:            ConnectionStateNegotiated,
	CodeGetMeasurements:      ConnectionStateNegotiated,
	CodeHeartbeat:            ConnectionStateNegotiated,
	CodeKeyUpdate:            ConnectionStateNegotiated,
	CodeEndSession:           ConnectionStateNegotiated,
	CodeVendorDefinedRequest: ConnectionStateNegotiated,
}

// Dispatch decodes the request header in req, routes it to the matching
// handler, and writes the resulting response (success or SPDM ERROR) into
// out. It returns the number of bytes written and a Status describing
// whether Dispatch itself could do its job — a rejected or malformed SPDM
// request still returns StatusSuccess, because the responder successfully
// told the peer no.
//
// Every request but GET_VERSION passes through the same prologue, in order:
// version match (GET_CAPABILITIES is exempt from this one step),
// response-state, connection-state floor. A handler only
// ever sees a request that already cleared all three; anything more
// specific (capability flags, request shape, slot/session validity) is the
// handler's own job.
//
// Dispatch never allocates: req and out are caller-owned buffers, and every
// intermediate buffer Dispatch touches belongs to ctx.
func Dispatch(ctx *Context, req []byte, out []byte) (int, Status) {
	if ctx == nil {
		return 0, StatusInvalidParameter
	}
	if len(out) < HeaderSize {
		return 0, StatusBufferTooSmall
	}

	h, err := decodeHeader(req)
	if err != nil {
		n, werr := writeProtocolError(ctx, out, NewProtocolError(ErrorInvalidRequest, 0))
		if werr != nil {
			return 0, StatusForError(werr)
		}
		return n, StatusSuccess
	}

	// GET_VERSION resets the state machine unconditionally and is the one
	// request accepted in every ConnectionState, at any version. GET_CAPABILITIES
	// is exempt from the version-match gate below because it is the request
	// that fixes ctx.Negotiated.Version in the first place; every request
	// after it is held to that value.
	if h.Code == CodeGetVersion {
		ctx.ResetConnection()
	} else {
		if h.Code != CodeGetCapabilities && h.Version != ctx.Negotiated.Version {
			n, werr := writeProtocolError(ctx, out, NewProtocolError(ErrorVersionMismatch, 0))
			if werr != nil {
				return 0, StatusForError(werr)
			}
			return n, StatusSuccess
		}

		var responseErr ErrorCode
		switch ctx.ResponseState {
		case ResponseStateBusy:
			responseErr = ErrorBusy
		case ResponseStateNeedResync:
			responseErr = ErrorRequestResynch
		case ResponseStateNotReady:
			responseErr = ErrorResponseNotReady
		}
		if responseErr != 0 {
			n, werr := writeProtocolError(ctx, out, NewProtocolError(responseErr, 0))
			if werr != nil {
				return 0, StatusForError(werr)
			}
			return n, StatusSuccess
		}

		if floor, gated := minConnectionState[h.Code]; gated && ctx.ConnectionState < floor {
			n, werr := writeProtocolError(ctx, out, NewProtocolError(ErrorUnexpectedRequest, 0))
			if werr != nil {
				return 0, StatusForError(werr)
			}
			return n, StatusSuccess
		}
	}

	fn, ok := handlers[h.Code]
	if !ok {
		n, werr := writeProtocolError(ctx, out, NewProtocolError(ErrorUnsupportedRequest, uint8(h.Code)))
		if werr != nil {
			return 0, StatusForError(werr)
		}
		return n, StatusSuccess
	}

	n, err := fn(ctx, req, out)
	if err == nil {
		return n, StatusSuccess
	}

	var pe *ProtocolError
	if asProtocolError(err, &pe) {
		n, werr := writeProtocolError(ctx, out, pe)
		if werr != nil {
			return 0, StatusForError(werr)
		}
		return n, StatusSuccess
	}

	// Anything else is a core contract violation: a nil collaborator, a
	// malformed Context. This is plane two, not plane one, so no ERROR
	// response is generated, and whatever the handler already wrote into
	// out is zeroed so no partial response can be forwarded.
	zero(out)
	return 0, StatusForError(err)
}

func writeProtocolError(ctx *Context, out []byte, pe *ProtocolError) (int, error) {
	n, err := MarshalErrorResponse(out, ctx.Negotiated.Version, pe)
	if err != nil {
		return 0, fmt.Errorf("write protocol error: %w", err)
	}
	return n, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// asProtocolError is a small helper around errors.As so dispatch.go doesn't
// need to import errors just for this one call site spread across several
// branches.
func asProtocolError(err error, target **ProtocolError) bool {
	if pe, ok := err.(*ProtocolError); ok {
		*target = pe
		return true
	}
	return false
}
