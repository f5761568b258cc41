// Package filter extracts a whitelisted set of fields from a JSON request body.
package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	ErrPayloadTooLarge = errors.New("payload exceeds size limit")
	ErrMalformed       = errors.New("malformed JSON body")
	ErrInvalidType     = errors.New("field has the wrong type")
)

// MissingFieldError names a whitelisted key that the body did not contain.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("Missing '%s' field.", e.Field)
}

// Fields holds the raw JSON value of every whitelisted key, and nothing else.
type Fields map[string]json.RawMessage

// Extract reads at most maxSize bytes from r, parses them as a JSON object and
// copies every key in allowed into the result. Keys outside allowed are
// dropped. A key in allowed that the object lacks yields *MissingFieldError;
// keys are checked in the order given.
func Extract(r io.Reader, allowed []string, maxSize int64) (Fields, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > maxSize {
		return nil, ErrPayloadTooLarge
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}

	out := make(Fields, len(allowed))
	for _, key := range allowed {
		v, ok := doc[key]
		if !ok {
			return nil, &MissingFieldError{Field: key}
		}
		out[key] = v
	}
	return out, nil
}

// Decode unmarshals the filtered fields into v, a pointer to a struct whose
// json tags match the whitelist.
func (f Fields) Decode(v any) error {
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidType, err)
	}
	return nil
}

// Keys returns the whitelisted keys present in f.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	return keys
}
