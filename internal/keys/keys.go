// Package keys encodes and decodes the ed25519 key strings that identify
// Gantry principals: operators ("O…"), accounts ("A…"), and modules ("M…").
//
// The wire format is the NATS nkeys format (prefix byte, key bytes, CRC-16
// checksum, unpadded base32) so operator and account keys interoperate with
// the upstream github.com/nats-io/nkeys library. The upstream library has no
// module prefix and does not expose raw ed25519 private keys for JWT
// signing, which is why this package exists.
package keys

import (
	"crypto/ed25519"
	"encoding/base32"
	"encoding/binary"
	"errors"
)

// PrefixByte is the role prefix baked into an encoded key. The top five bits
// select the first base32 character of the encoded form.
type PrefixByte byte

const (
	// PrefixByteSeed marks seeds, "S…".
	PrefixByteSeed PrefixByte = 18 << 3
	// PrefixByteOperator marks operator public keys, "O…".
	PrefixByteOperator PrefixByte = 14 << 3
	// PrefixByteModule marks module (actor) public keys, "M…".
	PrefixByteModule PrefixByte = 12 << 3
	// PrefixByteAccount marks account public keys, "A…".
	PrefixByteAccount PrefixByte = 0
)

var (
	ErrInvalidPrefix    = errors.New("invalid key prefix")
	ErrInvalidEncoding  = errors.New("invalid key encoding")
	ErrInvalidChecksum  = errors.New("invalid key checksum")
	ErrInvalidKeyLength = errors.New("invalid key length")
	ErrInvalidSeed      = errors.New("invalid seed")
	ErrPublicKeyOnly    = errors.New("key pair holds no private key")
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

func validPublicPrefix(p PrefixByte) bool {
	switch p {
	case PrefixByteOperator, PrefixByteModule, PrefixByteAccount:
		return true
	}
	return false
}

// Encode wraps raw key bytes with the given prefix and a CRC-16 trailer and
// returns the base32 string form.
func Encode(prefix PrefixByte, src []byte) (string, error) {
	if !validPublicPrefix(prefix) {
		return "", ErrInvalidPrefix
	}
	if len(src) != ed25519.PublicKeySize {
		return "", ErrInvalidKeyLength
	}

	raw := make([]byte, 0, 1+len(src)+2)
	raw = append(raw, byte(prefix))
	raw = append(raw, src...)
	raw = binary.LittleEndian.AppendUint16(raw, crc16(raw))

	return b32.EncodeToString(raw), nil
}

// Decode validates the checksum and the expected prefix of an encoded key
// and returns the raw key bytes.
func Decode(expected PrefixByte, src string) ([]byte, error) {
	raw, err := decodeRaw(src)
	if err != nil {
		return nil, err
	}
	if PrefixByte(raw[0]) != expected {
		return nil, ErrInvalidPrefix
	}
	return raw[1:], nil
}

// DecodePublicKey decodes any operator, account, or module key string and
// returns its role prefix together with the ed25519 public key.
func DecodePublicKey(src string) (PrefixByte, ed25519.PublicKey, error) {
	raw, err := decodeRaw(src)
	if err != nil {
		return 0, nil, err
	}
	prefix := PrefixByte(raw[0])
	if !validPublicPrefix(prefix) {
		return 0, nil, ErrInvalidPrefix
	}
	if len(raw)-1 != ed25519.PublicKeySize {
		return 0, nil, ErrInvalidKeyLength
	}
	return prefix, ed25519.PublicKey(raw[1:]), nil
}

// EncodeSeed encodes a raw ed25519 seed for a key of the given public
// prefix. Seeds carry a two-byte prefix: the seed marker with the role
// prefix folded into the spare bits, which is why "SA…" is an account seed
// and "SM…" a module seed.
func EncodeSeed(public PrefixByte, src []byte) (string, error) {
	if !validPublicPrefix(public) {
		return "", ErrInvalidPrefix
	}
	if len(src) != ed25519.SeedSize {
		return "", ErrInvalidSeed
	}

	b1 := byte(PrefixByteSeed) | (byte(public) >> 5)
	b2 := (byte(public) & 31) << 3

	raw := make([]byte, 0, 2+len(src)+2)
	raw = append(raw, b1, b2)
	raw = append(raw, src...)
	raw = binary.LittleEndian.AppendUint16(raw, crc16(raw))

	return b32.EncodeToString(raw), nil
}

// DecodeSeed returns the role prefix and raw ed25519 seed from an encoded
// seed string.
func DecodeSeed(src string) (PrefixByte, []byte, error) {
	raw, err := decodeRaw(src)
	if err != nil {
		return 0, nil, err
	}
	if len(raw) < 2 {
		return 0, nil, ErrInvalidSeed
	}

	b1 := raw[0] & 0xf8
	b2 := (raw[0]&7)<<5 | (raw[1] >> 3)
	if PrefixByte(b1) != PrefixByteSeed {
		return 0, nil, ErrInvalidSeed
	}
	public := PrefixByte(b2)
	if !validPublicPrefix(public) {
		return 0, nil, ErrInvalidPrefix
	}
	if len(raw)-2 != ed25519.SeedSize {
		return 0, nil, ErrInvalidSeed
	}
	return public, raw[2:], nil
}

// decodeRaw base32-decodes src, verifies the CRC trailer, and returns the
// payload with the checksum stripped.
func decodeRaw(src string) ([]byte, error) {
	raw, err := b32.DecodeString(src)
	if err != nil {
		return nil, ErrInvalidEncoding
	}
	if len(raw) < 4 {
		return nil, ErrInvalidKeyLength
	}
	payload := raw[:len(raw)-2]
	sum := binary.LittleEndian.Uint16(raw[len(raw)-2:])
	if crc16(payload) != sum {
		return nil, ErrInvalidChecksum
	}
	return payload, nil
}

// crc16 is the CRC-16/XMODEM checksum used by the nkeys format: polynomial
// 0x1021, zero initial value, no reflection.
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
