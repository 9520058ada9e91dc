package oauth

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is an RFC 6749 §4.2.2.1 error code reported in the redirect.
type ErrorCode int

// Error codes. CodeUnknown covers any value outside the RFC's list.
const (
	CodeUnknown ErrorCode = iota
	CodeInvalidRequest
	CodeUnauthorizedClient
	CodeAccessDenied
	CodeUnsupportedResponseType
	CodeInvalidScope
	CodeServerError
	CodeTemporarilyUnavailable
)

var codeNames = map[ErrorCode]string{
	CodeUnknown:                 "unknown",
	CodeInvalidRequest:          "invalid_request",
	CodeUnauthorizedClient:      "unauthorized_client",
	CodeAccessDenied:            "access_denied",
	CodeUnsupportedResponseType: "unsupported_response_type",
	CodeInvalidScope:            "invalid_scope",
	CodeServerError:             "server_error",
	CodeTemporarilyUnavailable:  "temporarily_unavailable",
}

// ParseErrorCode maps the wire value of an error parameter to its code.
// Unrecognized values map to CodeUnknown.
func ParseErrorCode(s string) ErrorCode {
	for code, name := range codeNames {
		if code != CodeUnknown && name == s {
			return code
		}
	}

	return CodeUnknown
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}

	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// ErrProtocolViolation is wrapped by every *ProtocolError.
var ErrProtocolViolation = errors.New("oauth: redirect protocol violation")

// ProtocolError describes a redirect that matched the registered address but
// carried neither an error code nor a complete token. The service guarantees
// one of the two, so a Flow panics with this value instead of reporting it as
// a result.
type ProtocolError struct {
	Reason string
	Keys   []string // fragment keys that were present; values are never kept
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("oauth: redirect protocol violation: %s (keys: %s)", e.Reason, strings.Join(e.Keys, ","))
}

func (e *ProtocolError) Unwrap() error {
	return ErrProtocolViolation
}
