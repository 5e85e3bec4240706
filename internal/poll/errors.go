package poll

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// FailureClass says how the relay should react to a failed poll.
type FailureClass int

const (
	// UnexpectedError covers malformed data and any fault the client did
	// not anticipate.
	UnexpectedError FailureClass = iota
	// TransientTimeout means every attempt hit the read timeout.
	TransientTimeout
	// ConnectionLost means the network path to the API is down.
	ConnectionLost
	// OtherTransportError means the server answered, but not usefully.
	OtherTransportError
)

func (c FailureClass) String() string {
	switch c {
	case TransientTimeout:
		return "transient_timeout"
	case ConnectionLost:
		return "connection_lost"
	case OtherTransportError:
		return "transport_error"
	default:
		return "unexpected_error"
	}
}

// Error is a classified poll failure.
type Error struct {
	Class    FailureClass
	Attempts int // requests issued before giving up
	Status   int // HTTP status, when the server answered
	Err      error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("%s (HTTP %d): %v", e.Class, e.Status, e.Err)
	case e.Attempts > 1:
		return fmt.Sprintf("%s after %d attempts: %v", e.Class, e.Attempts, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Class, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Classify returns the failure class carried by err. Errors that did not
// come from the client are UnexpectedError.
func Classify(err error) FailureClass {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Class
	}
	return UnexpectedError
}

// classifyTransport maps a raw http.Client error onto a failure class.
// Dial and DNS failures count as a lost connection even when they time
// out; only timeouts on an established request are transient.
func classifyTransport(err error) FailureClass {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return ConnectionLost
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ConnectionLost
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TransientTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TransientTimeout
	}
	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return ConnectionLost
	}
	if opErr != nil {
		return ConnectionLost
	}
	return OtherTransportError
}
