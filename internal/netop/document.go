package netop

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// errNotObject is wrapped in a ParseError when the payload is valid JSON but
// not a JSON object.
var errNotObject = errors.New("top-level value is not an object")

// Document is a parsed structured response: a JSON object whose top-level
// fields are split out but whose values stay raw until decoded.
type Document struct {
	raw    []byte
	fields map[string]json.RawMessage
}

// ParseDocument parses b as a JSON object. Any failure is returned as a
// *ParseError.
func ParseDocument(b []byte) (Document, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return Document{}, &ParseError{Size: len(b), Err: err}
	}

	if fields == nil {
		return Document{}, &ParseError{Size: len(b), Err: errNotObject}
	}

	return Document{raw: b, fields: fields}, nil
}

// Raw returns the exact bytes the document was parsed from.
func (d Document) Raw() []byte {
	return d.raw
}

// Has reports whether the document has a top-level field named key.
func (d Document) Has(key string) bool {
	_, ok := d.fields[key]
	return ok
}

// Keys returns the top-level field names, sorted.
func (d Document) Keys() []string {
	keys := make([]string, 0, len(d.fields))
	for k := range d.fields {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Field decodes the top-level field key into v. A missing field leaves v
// untouched and returns nil.
func (d Document) Field(key string, v any) error {
	raw, ok := d.fields[key]
	if !ok {
		return nil
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return &ParseError{Size: len(raw), Err: fmt.Errorf("field %q: %w", key, err)}
	}

	return nil
}

// Decode decodes the whole document into v.
func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.raw, v); err != nil {
		return &ParseError{Size: len(d.raw), Err: err}
	}

	return nil
}
