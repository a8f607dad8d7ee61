// Package protocol contains the message types and wire codec for the Gantry
// registry. Every body that travels over the broker — catalog tokens and
// queries, transfer handshakes, file chunks — is one of the records in this
// package, encoded with Encode and decoded with Decode.
package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// CodecError reports a failed encode or decode of a wire record.
type CodecError struct {
	Op  string // "encode" or "decode"
	Err error
}

func (e *CodecError) Error() string { return fmt.Sprintf("codec %s failed: %v", e.Op, e.Err) }

func (e *CodecError) Unwrap() error { return e.Err }

// Encode serializes a wire record to MessagePack. Records encode as maps
// keyed by the snake_case field names so that decoders can skip fields they
// do not know about.
func Encode(v interface{}) ([]byte, error) {
	buf, err := msgpack.Marshal(v)
	if err != nil {
		return nil, &CodecError{Op: "encode", Err: err}
	}
	return buf, nil
}

// Decode deserializes a wire record produced by Encode. Unknown fields in the
// input are ignored; missing fields decode to their zero values. Truncated
// input or a wire-type mismatch returns a *CodecError.
func Decode(data []byte, v interface{}) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return &CodecError{Op: "decode", Err: err}
	}
	return nil
}
