// Package api is a small catalog of service methods. Each method type knows
// its command, whether it needs authentication, and how to decode its
// response, so the task Controller can dispatch it without knowing anything
// about the method itself.
package api

import (
	"errors"
	"fmt"

	"github.com/tonimelisma/pcloud-go/internal/netop"
)

// Sentinel errors for service result code classification.
// Use errors.Is(err, api.ErrNotFound) to check.
var (
	ErrAuth          = errors.New("api: authentication failed")
	ErrNotFound      = errors.New("api: not found")
	ErrAlreadyExists = errors.New("api: already exists")
	ErrAccessDenied  = errors.New("api: access denied")
	ErrRateLimited   = errors.New("api: rate limited")
	ErrService       = errors.New("api: service error")
)

// errMissing is wrapped in a ParseError when a response lacks a field its
// method always returns.
func errMissing(field string) error {
	return fmt.Errorf("response has no %s field", field)
}

// Error is a non-zero service result code with the message the service sent
// alongside it.
type Error struct {
	Code    int
	Message string
	Err     error // sentinel, for errors.Is()
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: result %d: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classifyResult maps a service result code to a sentinel error.
func classifyResult(code int) error {
	switch code {
	case 1000, 2000, 2094, 2095:
		return ErrAuth
	case 2005, 2009, 2055:
		return ErrNotFound
	case 2004:
		return ErrAlreadyExists
	case 2003:
		return ErrAccessDenied
	case 4000:
		return ErrRateLimited
	default:
		return ErrService
	}
}

// checkResult returns an *Error when doc reports a non-zero result.
func checkResult(doc netop.Document) error {
	if !doc.Has("result") {
		return &netop.ParseError{Size: len(doc.Raw()), Err: errMissing("result")}
	}

	var code int
	if err := doc.Field("result", &code); err != nil {
		return err
	}

	if code == 0 {
		return nil
	}

	var msg string
	if err := doc.Field("error", &msg); err != nil {
		return err
	}

	return &Error{Code: code, Message: msg, Err: classifyResult(code)}
}

// decode checks the result code, then decodes the whole document into v.
func decode(doc netop.Document, v any) error {
	if err := checkResult(doc); err != nil {
		return err
	}

	return doc.Decode(v)
}
