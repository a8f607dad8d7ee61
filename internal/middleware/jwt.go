// Package middleware holds the pre-invoke interceptors that run in front of
// hosted services. The only one today is the JWT decoder guarding the
// catalog's token put path.
package middleware

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ewbankkit/gantry/internal/host"
	"github.com/ewbankkit/gantry/internal/token"
	"github.com/ewbankkit/gantry/protocol"
)

// JWTDecoder cracks, verifies, and canonicalizes the token inside every
// catalog put before the catalog sees it. All other traffic passes through
// byte-identical. A token that fails signature verification is forwarded
// with SignatureValid=false for the catalog to refuse; a token that cannot
// be decoded at all aborts the invocation.
type JWTDecoder struct {
	host.PassThrough
	logger *zap.Logger
}

// NewJWTDecoder builds the decoder middleware.
func NewJWTDecoder(logger *zap.Logger) *JWTDecoder {
	return &JWTDecoder{logger: logger}
}

// InvocationPre implements host.Middleware.
func (m *JWTDecoder) InvocationPre(_ context.Context, inv host.Invocation) (host.Invocation, error) {
	if inv.Operation != protocol.OpDeliverMessage {
		return inv, nil
	}

	var dm protocol.DeliverMessage
	if err := protocol.Decode(inv.Payload, &dm); err != nil {
		return inv, err
	}
	if dm.Message.Subject != protocol.SubjectCatalogPutToken {
		return inv, nil
	}

	var tok protocol.Token
	if err := protocol.Decode(dm.Message.Body, &tok); err != nil {
		return inv, err
	}

	decoded, err := token.Crack(tok.RawToken)
	if err != nil {
		return inv, fmt.Errorf("crack token: %w", err)
	}
	if !decoded.Validation.SignatureValid {
		m.logger.Warn("token signature invalid, forwarding for refusal",
			zap.String("subject", decoded.Subject),
			zap.String("issuer", decoded.Issuer),
		)
	}

	validation := decoded.Validation
	body, err := protocol.Encode(protocol.Token{
		RawToken:         tok.RawToken,
		DecodedTokenJSON: decoded.CanonicalJSON,
		ValidationResult: &validation,
	})
	if err != nil {
		return inv, err
	}

	// Re-encode the envelope with the augmented token; subject and reply
	// inbox are untouched, as are the invocation's identity fields.
	dm.Message.Body = body
	payload, err := protocol.Encode(dm)
	if err != nil {
		return inv, err
	}
	inv.Payload = payload
	return inv, nil
}
