package netop

import (
	"errors"
	"fmt"
)

// ErrCanceled is reported by Wait when the operation (or task) was cancelled
// before it completed. Completion handlers never observe it.
var ErrCanceled = errors.New("netop: operation canceled")

// TransportError is the failure result of an exchange that the transport
// reported as failed (network error, non-2xx status, abort).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("netop: transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError is the failure result of an exchange whose payload arrived in
// full but could not be interpreted as a structured document.
type ParseError struct {
	Size int // bytes received
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("netop: malformed response (%d bytes): %v", e.Size, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
