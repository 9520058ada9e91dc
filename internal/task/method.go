// Package task pairs network operations with response parsers and exposes
// them to callers as tasks with a single completion contract. Controller is
// the composition root: it turns API methods into authenticated requests,
// hands them to pluggable dispatchers, and wires the resulting operations
// into tasks.
package task

import (
	"errors"

	"github.com/tonimelisma/pcloud-go/internal/netop"
)

// ErrUnauthenticated is the result of a task whose method requires
// authentication when the Controller has no Authenticator.
var ErrUnauthenticated = errors.New("task: method requires authentication")

// Method is anything the Controller can dispatch: it knows its command, its
// response parser, and whether it needs authentication parameters.
type Method[T any] interface {
	Command() netop.Command
	RequiresAuth() bool
	Parse(doc netop.Document) (T, error)
}

// Authenticator supplies the parameters appended to commands of methods that
// require authentication.
type Authenticator interface {
	AuthParams() []netop.Param
}

// TokenAuth authenticates with an OAuth access token.
type TokenAuth string

// AuthParams returns the access_token parameter.
func (t TokenAuth) AuthParams() []netop.Param {
	return []netop.Param{netop.String("access_token", string(t))}
}

// HostProvider supplies the API host used when a call names none.
type HostProvider interface {
	DefaultHost() string
}

// StaticHost is a HostProvider with a fixed host.
type StaticHost string

// DefaultHost returns h.
func (h StaticHost) DefaultHost() string {
	return string(h)
}

// Dispatchers build live, suspended operations for requests. Each is
// typically a method value of a transport.
type Dispatchers struct {
	Call     func(netop.CallRequest) *netop.CallOperation
	Upload   func(netop.UploadRequest) *netop.UploadOperation
	Download func(netop.DownloadRequest) *netop.DownloadOperation
}
