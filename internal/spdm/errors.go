package spdm

import (
	"errors"
	"fmt"
)

// ErrorCode identifies an SPDM ERROR response's error_code field. These are wire values, not Go errors; they travel to the peer inside
// an ERROR response message. A handler that hits one of these conditions
// still returns StatusSuccess from Dispatch, because the responder
// successfully did its job: telling the peer no.
type ErrorCode uint8

const (
	ErrorInvalidRequest     ErrorCode = 0x01
	ErrorInvalidSession     ErrorCode = 0x02
	ErrorBusy               ErrorCode = 0x03
	ErrorUnexpectedRequest  ErrorCode = 0x04
	ErrorUnspecified        ErrorCode = 0x05
	ErrorDecryptError       ErrorCode = 0x06
	ErrorUnsupportedRequest ErrorCode = 0x07
	ErrorRequestInFlight    ErrorCode = 0x08
	ErrorInvalidResponseCode ErrorCode = 0x09
	ErrorSessionLimitExceeded ErrorCode = 0x0A
	ErrorSessionRequired    ErrorCode = 0x0B
	ErrorResetRequired      ErrorCode = 0x0C
	ErrorResponseTooLarge   ErrorCode = 0x0D
	ErrorRequestTooLarge    ErrorCode = 0x0E
	ErrorLargeResponse      ErrorCode = 0x0F
	ErrorMessageLost        ErrorCode = 0x10
	ErrorInvalidPolicy      ErrorCode = 0x11
	ErrorVersionMismatch    ErrorCode = 0x41
	ErrorResponseNotReady   ErrorCode = 0x42
	ErrorRequestResynch     ErrorCode = 0x43
	ErrorOperationFailed    ErrorCode = 0x44
	ErrorNoPendingRequests  ErrorCode = 0x45
	ErrorVendorDefined      ErrorCode = 0xFF
)

// ProtocolError represents a condition that the responder handles by
// emitting an SPDM ERROR response to the peer. It
// carries the wire error_code/error_data pair a handler should encode.
// ProtocolError is returned internally by handler logic and translated into
// a wire ERROR message by the dispatcher; it is never itself written to the
// output buffer by a handler.
type ProtocolError struct {
	Code ErrorCode
	Data uint8
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("spdm protocol error: code=0x%02x data=0x%02x", e.Code, e.Data)
}

// NewProtocolError constructs a ProtocolError with the given code and data.
func NewProtocolError(code ErrorCode, data uint8) *ProtocolError {
	return &ProtocolError{Code: code, Data: data}
}

// Status is the core return channel of Dispatch. A non-success Status indicates a contract violation by
// the caller of this package, not a protocol-level rejection of the peer's
// request: a short output buffer, an uninitialized Context, a nil
// collaborator. Status is never encoded onto the wire.
type Status int

const (
	StatusSuccess Status = iota
	StatusInvalidParameter
	StatusBufferTooSmall
	StatusInvalidState
	StatusUnsupported
	StatusInternalError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusInvalidParameter:
		return "InvalidParameter"
	case StatusBufferTooSmall:
		return "BufferTooSmall"
	case StatusInvalidState:
		return "InvalidState"
	case StatusUnsupported:
		return "Unsupported"
	case StatusInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// Sentinel core errors. Wrapped with fmt.Errorf and
// %w so callers can use errors.Is against them; StatusForError maps each to
// its Status for callers that need the enum form.
var (
	ErrInvalidParameter = errors.New("spdm: invalid parameter")
	ErrBufferTooSmall   = errors.New("spdm: output buffer too small")
	ErrInvalidState     = errors.New("spdm: operation invalid in current state")
	ErrUnsupported      = errors.New("spdm: unsupported capability or algorithm")
	ErrInternal         = errors.New("spdm: internal error")
)

// StatusForError maps a core sentinel error to its Status, defaulting to
// StatusInternalError for anything it does not recognize. err may be
// wrapped; errors.Is is used for the comparison.
func StatusForError(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrInvalidParameter):
		return StatusInvalidParameter
	case errors.Is(err, ErrBufferTooSmall):
		return StatusBufferTooSmall
	case errors.Is(err, ErrInvalidState):
		return StatusInvalidState
	case errors.Is(err, ErrUnsupported):
		return StatusUnsupported
	default:
		return StatusInternalError
	}
}
