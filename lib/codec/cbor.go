// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	// encoding uses Core Deterministic Encoding so equal values encode
	// to equal bytes. Journal digests depend on it.
	encoding cbor.EncMode

	// decoding ignores unknown fields so older clients keep working
	// against newer authorities.
	decoding cbor.DecMode
)

func init() {
	var err error
	encoding, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: building CBOR encode mode: " + err.Error())
	}
	decoding, err = cbor.DecOptions{
		// Free-form values decode to map[string]any rather than CBOR's
		// default map[any]any.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: building CBOR decode mode: " + err.Error())
	}
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) { return encoding.Marshal(v) }

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any) error { return decoding.Unmarshal(data, v) }

type (
	// Encoder writes a sequence of CBOR items to a stream.
	Encoder = cbor.Encoder
	// Decoder reads a sequence of CBOR items from a stream.
	Decoder = cbor.Decoder
	// RawMessage holds an encoded item whose decoding is deferred.
	RawMessage = cbor.RawMessage
)

// NewEncoder returns a stream encoder on w.
func NewEncoder(w io.Writer) *Encoder { return encoding.NewEncoder(w) }

// NewDecoder returns a stream decoder on r.
func NewDecoder(r io.Reader) *Decoder { return decoding.NewDecoder(r) }
