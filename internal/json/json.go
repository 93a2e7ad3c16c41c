// Package json wraps bytedance/sonic behind the subset of the encoding/json
// API that vortex needs for request bodies and response payloads.
package json

import (
	stdjson "encoding/json"

	"github.com/bytedance/sonic"
)

// api uses the std-compatible sonic config so map keys are sorted and HTML is
// escaped the same way encoding/json does it.
var api = sonic.ConfigStd

// Marshal returns the JSON encoding of v.
func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

// MarshalIndent is like Marshal but applies prefix and indent to each line.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return api.MarshalIndent(v, prefix, indent)
}

// Unmarshal parses data into v.
func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return api.Valid(data)
}

// Convert round-trips src through JSON into dst. Used to turn a decoded
// generic value into a caller supplied struct.
func Convert(src, dst any) error {
	raw, err := api.Marshal(src)
	if err != nil {
		return err
	}
	return api.Unmarshal(raw, dst)
}

// RawMessage is a raw encoded JSON value.
type RawMessage = stdjson.RawMessage

// SyntaxError is a description of a JSON syntax error.
type SyntaxError = stdjson.SyntaxError
