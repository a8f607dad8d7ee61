package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gowebpki/jcs"

	"github.com/ewbankkit/gantry/internal/keys"
	"github.com/ewbankkit/gantry/protocol"
)

// Decoded is the outcome of cracking a raw signed token: the selected
// variant, the identity fields the catalog needs, the RFC 8785 canonical
// JSON of the claims, and the validation report that travels with the token.
type Decoded struct {
	Variant       Variant
	Subject       string
	Issuer        string
	Name          string
	Revision      int64
	CanonicalJSON string
	Validation    protocol.TokenValidation
}

// variantClaims lets Crack treat the three claim sets uniformly after the
// variant has been selected.
type variantClaims interface {
	jwt.Claims
	header() *ClaimsHeader
	metaName() string
	metaRevision() int64
}

func (c *ActorClaims) header() *ClaimsHeader { return &c.ClaimsHeader }

func (c *ActorClaims) metaName() string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata.Name
}

func (c *ActorClaims) metaRevision() int64 {
	if c.Metadata == nil {
		return 0
	}
	return c.Metadata.Revision
}

func (c *AccountClaims) header() *ClaimsHeader { return &c.ClaimsHeader }

func (c *AccountClaims) metaName() string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata.Name
}

func (c *AccountClaims) metaRevision() int64 { return 0 }

func (c *OperatorClaims) header() *ClaimsHeader { return &c.ClaimsHeader }

func (c *OperatorClaims) metaName() string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata.Name
}

func (c *OperatorClaims) metaRevision() int64 { return 0 }

// parser decodes without claims validation: expiry and not-before are
// reported through TokenValidation rather than raised, so an expired token
// still cracks cleanly.
var parser = jwt.NewParser(
	jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
	jwt.WithoutClaimsValidation(),
)

// issuerKeyfunc resolves the verification key from the token's own iss
// claim. Issuers are encoded public key strings, so no key registry is
// needed.
func issuerKeyfunc(t *jwt.Token) (interface{}, error) {
	iss, err := t.Claims.GetIssuer()
	if err != nil || iss == "" {
		return nil, fmt.Errorf("%w: missing issuer", ErrInvalidToken)
	}
	_, pub, err := keys.DecodePublicKey(iss)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable issuer key: %v", ErrInvalidToken, err)
	}
	return pub, nil
}

// Crack decodes a raw signed token. It peeks the unverified claims once to
// read the subject prefix, selects the variant schema, then decodes and
// verifies exactly once under it.
//
// A bad signature is not an error: it is reported through
// Validation.SignatureValid so the catalog can refuse the write itself. A
// token that cannot be decoded at all (malformed JWT, wrong algorithm,
// unknown subject prefix, unresolvable issuer) returns ErrInvalidToken.
func Crack(raw string) (*Decoded, error) {
	var peek ClaimsHeader
	if _, _, err := parser.ParseUnverified(raw, &peek); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	variant, err := VariantOf(peek.Subject)
	if err != nil {
		return nil, err
	}

	var claims variantClaims
	switch variant {
	case VariantOperator:
		claims = &OperatorClaims{}
	case VariantAccount:
		claims = &AccountClaims{}
	default:
		claims = &ActorClaims{}
	}

	sigValid := true
	if _, err := parser.ParseWithClaims(raw, claims, issuerKeyfunc); err != nil {
		if !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		sigValid = false
	}

	hdr := claims.header()
	canonical, err := canonicalJSON(claims)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &Decoded{
		Variant:       variant,
		Subject:       hdr.Subject,
		Issuer:        hdr.Issuer,
		Name:          claims.metaName(),
		Revision:      claims.metaRevision(),
		CanonicalJSON: canonical,
		Validation: protocol.TokenValidation{
			Expired:        hdr.Expires != nil && now.Unix() >= *hdr.Expires,
			ExpiresHuman:   expiresHuman(hdr.Expires),
			NotBeforeHuman: notBeforeHuman(hdr.NotBefore),
			CannotUseYet:   hdr.NotBefore != nil && now.Unix() < *hdr.NotBefore,
			SignatureValid: sigValid,
		},
	}, nil
}

// canonicalJSON renders claims as RFC 8785 canonical JSON. Canonicalization
// makes the decoded form deterministic, so cracking the same raw token twice
// yields byte-identical output.
func canonicalJSON(claims interface{}) (string, error) {
	buf, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	canonical, err := jcs.Transform(buf)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return string(canonical), nil
}

// Human time strings are absolute so that repeated validation of the same
// token produces the same report.

func expiresHuman(exp *int64) string {
	if exp == nil {
		return "never"
	}
	return time.Unix(*exp, 0).UTC().Format(time.RFC3339)
}

func notBeforeHuman(nbf *int64) string {
	if nbf == nil {
		return "immediately"
	}
	return time.Unix(*nbf, 0).UTC().Format(time.RFC3339)
}
