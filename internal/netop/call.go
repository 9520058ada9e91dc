package netop

import (
	"bytes"
	"log/slog"
)

// CallOperation is a request/response exchange whose success result is the
// parsed response document.
type CallOperation = Operation[Document]

// UploadOperation has the same shape as CallOperation; its outbound body comes
// from the UploadRequest and its document describes the stored file.
type UploadOperation = Operation[Document]

// bufferPayload accumulates the full response in memory.
type bufferPayload struct {
	buf bytes.Buffer
}

func (b *bufferPayload) append(p []byte) error {
	_, err := b.buf.Write(p)
	return err
}

func (b *bufferPayload) build() (Document, error) {
	return ParseDocument(b.buf.Bytes())
}

func (b *bufferPayload) discard() {
	b.buf.Reset()
}

// NewCall creates a suspended CallOperation bound through bind.
func NewCall(req CallRequest, bind Binder, logger *slog.Logger) *CallOperation {
	return newOperation[Document]("call", req.Command.Method, &bufferPayload{}, bind, logger)
}

// NewUpload creates a suspended UploadOperation bound through bind.
func NewUpload(req UploadRequest, bind Binder, logger *slog.Logger) *UploadOperation {
	return newOperation[Document]("upload", req.Command.Method, &bufferPayload{}, bind, logger)
}
