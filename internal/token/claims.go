// Package token cracks, validates, and mints the ed25519-signed JWTs that
// identify Gantry principals. A token's variant is selected by the first
// character of its subject key: 'O' operator, 'A' account, 'M' module
// (actor). Each variant carries its own metadata block under the "wascap"
// claim.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken marks a token that could not be decoded at all: malformed
// JWT, unknown subject prefix, or an issuer key that cannot be resolved. A
// token that decodes but fails signature or expiry checks is not an error;
// that outcome is reported through protocol.TokenValidation.
var ErrInvalidToken = errors.New("invalid token")

// Variant is the principal kind encoded in a subject's key prefix.
type Variant byte

const (
	VariantOperator Variant = 'O'
	VariantAccount  Variant = 'A'
	VariantActor    Variant = 'M'
)

// VariantOf selects the token variant from a subject public key. Unknown
// prefixes are rejected rather than treated as actors.
func VariantOf(subject string) (Variant, error) {
	if subject == "" {
		return 0, fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	switch subject[0] {
	case 'O':
		return VariantOperator, nil
	case 'A':
		return VariantAccount, nil
	case 'M':
		return VariantActor, nil
	}
	return 0, fmt.Errorf("%w: unknown subject prefix %q", ErrInvalidToken, subject[0])
}

// ClaimsHeader is the registered-claims portion shared by all token
// variants. Times are unix seconds, matching the signed wire form.
type ClaimsHeader struct {
	ID        string `json:"jti,omitempty"`
	IssuedAt  int64  `json:"iat"`
	Issuer    string `json:"iss"`
	Subject   string `json:"sub"`
	Expires   *int64 `json:"exp,omitempty"`
	NotBefore *int64 `json:"nbf,omitempty"`
}

func (h *ClaimsHeader) GetExpirationTime() (*jwt.NumericDate, error) {
	if h.Expires == nil {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(*h.Expires, 0)), nil
}

func (h *ClaimsHeader) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(h.IssuedAt, 0)), nil
}

func (h *ClaimsHeader) GetNotBefore() (*jwt.NumericDate, error) {
	if h.NotBefore == nil {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(*h.NotBefore, 0)), nil
}

func (h *ClaimsHeader) GetIssuer() (string, error) { return h.Issuer, nil }

func (h *ClaimsHeader) GetSubject() (string, error) { return h.Subject, nil }

func (h *ClaimsHeader) GetAudience() (jwt.ClaimStrings, error) { return nil, nil }

// Actor is the metadata block of a module token.
type Actor struct {
	Name     string   `json:"name,omitempty"`
	Caps     []string `json:"caps,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Version  string   `json:"ver,omitempty"`
	Revision int64    `json:"rev,omitempty"`
	Provider bool     `json:"prov,omitempty"`
}

// Account is the metadata block of an account token.
type Account struct {
	Name         string   `json:"name,omitempty"`
	ValidSigners []string `json:"valid_signers,omitempty"`
}

// Operator is the metadata block of an operator token.
type Operator struct {
	Name         string   `json:"name,omitempty"`
	ValidSigners []string `json:"valid_signers,omitempty"`
}

// ActorClaims is the claim set of a module token.
type ActorClaims struct {
	ClaimsHeader
	Metadata *Actor `json:"wascap,omitempty"`
}

// AccountClaims is the claim set of an account token.
type AccountClaims struct {
	ClaimsHeader
	Metadata *Account `json:"wascap,omitempty"`
}

// OperatorClaims is the claim set of an operator token.
type OperatorClaims struct {
	ClaimsHeader
	Metadata *Operator `json:"wascap,omitempty"`
}

// NewHeader builds a claims header with a fresh token id and the current
// issue time.
func NewHeader(issuer, subject string) ClaimsHeader {
	return ClaimsHeader{
		ID:       uuid.NewString(),
		IssuedAt: time.Now().Unix(),
		Issuer:   issuer,
		Subject:  subject,
	}
}
