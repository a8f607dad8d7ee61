package token

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ewbankkit/gantry/internal/keys"
)

// Sign produces the raw signed string form of a claim set, ed25519-signed by
// the issuer's key pair. The issuer pair must match the iss claim or the
// token will fail verification when cracked.
func Sign(claims jwt.Claims, issuer *keys.KeyPair) (string, error) {
	priv, err := issuer.Private()
	if err != nil {
		return "", err
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(priv)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return raw, nil
}
