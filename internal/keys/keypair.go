package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

// KeyPair holds an ed25519 key for one Gantry principal. Pairs built from a
// public key string can verify but not sign.
type KeyPair struct {
	prefix PrefixByte
	pub    ed25519.PublicKey
	priv   ed25519.PrivateKey
}

// CreatePair generates a fresh key pair for the given role prefix.
func CreatePair(prefix PrefixByte) (*KeyPair, error) {
	if !validPublicPrefix(prefix) {
		return nil, ErrInvalidPrefix
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return &KeyPair{prefix: prefix, pub: pub, priv: priv}, nil
}

// CreateModule generates a module ("M…") key pair.
func CreateModule() (*KeyPair, error) { return CreatePair(PrefixByteModule) }

// CreateAccount generates an account ("A…") key pair.
func CreateAccount() (*KeyPair, error) { return CreatePair(PrefixByteAccount) }

// CreateOperator generates an operator ("O…") key pair.
func CreateOperator() (*KeyPair, error) { return CreatePair(PrefixByteOperator) }

// FromSeed rebuilds a full key pair from an encoded seed string.
func FromSeed(seed string) (*KeyPair, error) {
	prefix, raw, err := DecodeSeed(seed)
	if err != nil {
		return nil, err
	}
	priv := ed25519.NewKeyFromSeed(raw)
	return &KeyPair{
		prefix: prefix,
		pub:    priv.Public().(ed25519.PublicKey),
		priv:   priv,
	}, nil
}

// FromPublicKey builds a verify-only pair from an encoded public key string.
func FromPublicKey(public string) (*KeyPair, error) {
	prefix, pub, err := DecodePublicKey(public)
	if err != nil {
		return nil, err
	}
	return &KeyPair{prefix: prefix, pub: pub}, nil
}

// Prefix returns the role prefix of the pair.
func (kp *KeyPair) Prefix() PrefixByte { return kp.prefix }

// PublicKey returns the encoded public key string ("O…", "A…", or "M…").
func (kp *KeyPair) PublicKey() (string, error) {
	return Encode(kp.prefix, kp.pub)
}

// Seed returns the encoded seed string. It fails for verify-only pairs.
func (kp *KeyPair) Seed() (string, error) {
	if kp.priv == nil {
		return "", ErrPublicKeyOnly
	}
	return EncodeSeed(kp.prefix, kp.priv.Seed())
}

// Private returns the raw ed25519 private key for signing JWTs. It fails for
// verify-only pairs.
func (kp *KeyPair) Private() (ed25519.PrivateKey, error) {
	if kp.priv == nil {
		return nil, ErrPublicKeyOnly
	}
	return kp.priv, nil
}

// Sign signs msg with the pair's private key.
func (kp *KeyPair) Sign(msg []byte) ([]byte, error) {
	if kp.priv == nil {
		return nil, ErrPublicKeyOnly
	}
	return ed25519.Sign(kp.priv, msg), nil
}

// Verify reports whether sig is a valid signature of msg by this key.
func (kp *KeyPair) Verify(msg, sig []byte) error {
	if !ed25519.Verify(kp.pub, msg, sig) {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}
