package netop

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
)

// ParamKind is the wire type of a command parameter.
type ParamKind int

// Parameter kinds.
const (
	KindString ParamKind = iota
	KindNumber
	KindBool
)

// Param is a single typed key/value pair of a Command.
type Param struct {
	Key   string
	Kind  ParamKind
	value string
}

// String returns a string parameter.
func String(key, value string) Param {
	return Param{Key: key, Kind: KindString, value: value}
}

// Number returns a signed numeric parameter.
func Number(key string, value int64) Param {
	return Param{Key: key, Kind: KindNumber, value: strconv.FormatInt(value, 10)}
}

// Uint returns an unsigned numeric parameter (file and folder ids).
func Uint(key string, value uint64) Param {
	return Param{Key: key, Kind: KindNumber, value: strconv.FormatUint(value, 10)}
}

// Bool returns a boolean parameter, encoded as "1" or "0".
func Bool(key string, value bool) Param {
	v := "0"
	if value {
		v = "1"
	}

	return Param{Key: key, Kind: KindBool, value: v}
}

// Value returns the wire encoding of the parameter value.
func (p Param) Value() string {
	return p.value
}

// Command is a method name plus its ordered parameter list.
type Command struct {
	Method string
	Params []Param
}

// NewCommand builds a Command for method with the given parameters.
func NewCommand(method string, params ...Param) Command {
	return Command{Method: method, Params: params}
}

// With returns a copy of c with params appended after the existing ones.
// The receiver's parameter slice is never shared with the result.
func (c Command) With(params ...Param) Command {
	out := make([]Param, 0, len(c.Params)+len(params))
	out = append(out, c.Params...)
	out = append(out, params...)

	return Command{Method: c.Method, Params: out}
}

// Get returns the value of the first parameter named key.
func (c Command) Get(key string) (string, bool) {
	for _, p := range c.Params {
		if p.Key == key {
			return p.value, true
		}
	}

	return "", false
}

// Query encodes the parameters as a URL query string, preserving order.
// url.Values is not used because it sorts keys on Encode.
func (c Command) Query() string {
	var b strings.Builder

	for i, p := range c.Params {
		if i > 0 {
			b.WriteByte('&')
		}

		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}

	return b.String()
}

// Body is the outbound payload of an upload. Open may be called more than
// once only if the source supports it; size is -1 when unknown.
type Body interface {
	Open() (rc io.ReadCloser, size int64, err error)
}

// ErrBodyConsumed is returned when a single-use stream body is opened twice.
var ErrBodyConsumed = errors.New("netop: stream body already consumed")

type bytesBody []byte

// BytesBody returns a Body backed by an in-memory buffer.
func BytesBody(b []byte) Body {
	return bytesBody(b)
}

func (b bytesBody) Open() (io.ReadCloser, int64, error) {
	return io.NopCloser(bytes.NewReader(b)), int64(len(b)), nil
}

type fileBody string

// FileBody returns a Body that streams the local file at path.
func FileBody(path string) Body {
	return fileBody(path)
}

func (p fileBody) Open() (io.ReadCloser, int64, error) {
	f, err := os.Open(string(p))
	if err != nil {
		return nil, 0, fmt.Errorf("netop: opening upload body: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("netop: stat upload body: %w", err)
	}

	return f, info.Size(), nil
}

type streamBody struct {
	mu     sync.Mutex
	r      io.Reader
	size   int64
	opened bool
}

// StreamBody returns a single-use Body reading from r. size may be -1.
func StreamBody(r io.Reader, size int64) Body {
	return &streamBody{r: r, size: size}
}

func (s *streamBody) Open() (io.ReadCloser, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opened {
		return nil, 0, ErrBodyConsumed
	}

	s.opened = true

	return io.NopCloser(s.r), s.size, nil
}

// CallRequest describes a request/response exchange.
type CallRequest struct {
	Command Command
	Host    string
}

// UploadRequest describes an exchange whose outbound body is Body.
type UploadRequest struct {
	Command Command
	Host    string
	Body    Body
}

// DestinationFunc maps the temporary file the payload was written to onto
// the final location. It must not move the file itself.
type DestinationFunc func(tempPath string) (string, error)

// DownloadRequest describes a download of Address into a local file.
type DownloadRequest struct {
	Address     *url.URL
	Destination DestinationFunc
	TempDir     string // empty = os.TempDir()
}
