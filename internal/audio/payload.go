// Package audio turns the text-safe payload returned by a TTS service into
// normalized per-channel sample buffers.
package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedPayload is wrapped by every DecodeError.
var ErrMalformedPayload = errors.New("malformed audio payload")

// DecodeError reports a payload that is not valid base64.
type DecodeError struct {
	// Offset is the byte offset of the first bad character, or -1 when unknown.
	Offset int64
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%v at offset %d", ErrMalformedPayload, e.Offset)
	}
	return fmt.Sprintf("%v: %v", ErrMalformedPayload, e.Err)
}

// Unwrap lets errors.Is match both ErrMalformedPayload and the cause.
func (e *DecodeError) Unwrap() []error {
	return []error{ErrMalformedPayload, e.Err}
}

// DecodePayload decodes a standard-alphabet base64 string.
// ASCII whitespace is skipped and missing trailing padding is tolerated.
func DecodePayload(s string) ([]byte, error) {
	s = stripSpace(s)

	enc := base64.StdEncoding
	if len(s)%4 != 0 && !strings.Contains(s, "=") {
		enc = base64.RawStdEncoding
	}

	out, err := enc.DecodeString(s)
	if err != nil {
		var corrupt base64.CorruptInputError
		if errors.As(err, &corrupt) {
			return nil, &DecodeError{Offset: int64(corrupt), Err: err}
		}
		return nil, &DecodeError{Offset: -1, Err: err}
	}
	return out, nil
}

// EncodePayload is the inverse of DecodePayload, used by engines that
// produce raw bytes locally.
func EncodePayload(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

func stripSpace(s string) string {
	if !strings.ContainsAny(s, " \t\r\n\f") {
		return s
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n', '\f':
			return -1
		}
		return r
	}, s)
}
