// Package catalog is the registry's token store: it persists augmented
// tokens into the key-value layout and answers set-membership queries over
// the three principal variants.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/ewbankkit/gantry/internal/host"
	"github.com/ewbankkit/gantry/internal/keyvalue"
	"github.com/ewbankkit/gantry/internal/token"
	"github.com/ewbankkit/gantry/protocol"
)

// Key layout. Everything the catalog persists lives under these shapes; the
// variant sets index into the per-subject token keys.
const (
	keyActors    = "gantry:actors"
	keyOperators = "gantry:operators"
	keyAccounts  = "gantry:accounts"
)

func keyToken(subject string, revision int64) string {
	return fmt.Sprintf("gantry:tokens:%s:%d", subject, revision)
}

func keyTokenRaw(subject string, revision int64) string {
	return keyToken(subject, revision) + ":raw"
}

func keyRevisions(subject string) string {
	return fmt.Sprintf("gantry:tokens:%s:revisions", subject)
}

// unknownField replaces issuer and name for rows whose stored token is
// missing or undecodable; queries never fail for one bad row.
const unknownField = "??"

// anonymousName is reported for tokens whose claims carry no name.
const anonymousName = "Anonymous"

// Service is the catalog message handler plus the typed directory surface
// other services consume in-process.
type Service struct {
	kv      keyvalue.Store
	pub     host.Publisher
	logger  *zap.Logger
	signers map[string]struct{}
}

// New builds the catalog. The signer set {operator} ∪ signers is fixed at
// construction and consulted, not enforced: puts for operator or account
// tokens issued outside it are logged and stored anyway.
func New(kv keyvalue.Store, pub host.Publisher, logger *zap.Logger, operator string, signers []string) *Service {
	set := make(map[string]struct{}, len(signers)+1)
	if operator != "" {
		set[operator] = struct{}{}
	}
	for _, s := range signers {
		if s != "" {
			set[s] = struct{}{}
		}
	}
	return &Service{kv: kv, pub: pub, logger: logger, signers: set}
}

// Name implements host.Service.
func (s *Service) Name() string { return "gantry-catalog" }

// Subscriptions implements host.Service.
func (s *Service) Subscriptions() []string { return []string{"gantry.catalog.tokens.*"} }

// HandleMessage implements host.Service.
func (s *Service) HandleMessage(ctx context.Context, msg protocol.BrokerMessage) error {
	switch msg.Subject {
	case protocol.SubjectCatalogPutToken:
		return s.putToken(ctx, msg)
	case protocol.SubjectCatalogQuery:
		return s.query(ctx, msg)
	case protocol.SubjectCatalogDeleteToken:
		// Reserved in the protocol; recognized but never removes storage.
		return fmt.Errorf("%s not implemented", protocol.SubjectCatalogDeleteToken)
	}
	return fmt.Errorf("%w: %s", host.ErrUnknownSubject, msg.Subject)
}

// storedClaims is the slice of the decoded token JSON the catalog reads
// back: identity plus the wascap metadata block.
type storedClaims struct {
	Subject string `json:"sub"`
	Issuer  string `json:"iss"`
	Wascap  struct {
		Name     string `json:"name"`
		Revision int64  `json:"rev"`
	} `json:"wascap"`
}

func (s *Service) putToken(ctx context.Context, msg protocol.BrokerMessage) error {
	var tok protocol.Token
	if err := protocol.Decode(msg.Body, &tok); err != nil {
		return err
	}

	v := tok.ValidationResult
	if v == nil || !v.SignatureValid || v.Expired {
		return fmt.Errorf("%w: refusing to store", token.ErrInvalidToken)
	}

	var claims storedClaims
	if err := json.Unmarshal([]byte(tok.DecodedTokenJSON), &claims); err != nil {
		return fmt.Errorf("%w: undecodable claims: %v", token.ErrInvalidToken, err)
	}
	variant, err := token.VariantOf(claims.Subject)
	if err != nil {
		return err
	}
	if variant != token.VariantActor {
		if _, ok := s.signers[claims.Issuer]; !ok {
			s.logger.Warn("token issuer outside operator signer set",
				zap.String("subject", claims.Subject),
				zap.String("issuer", claims.Issuer),
			)
		}
	}

	rev := claims.Wascap.Revision // zero when absent from the claims

	// Four idempotent writes, decoded body first so a re-put after partial
	// failure converges on the same state.
	if err := s.kv.Set(ctx, keyToken(claims.Subject, rev), []byte(tok.DecodedTokenJSON), 0); err != nil {
		return fmt.Errorf("%w: %v", host.ErrStorage, err)
	}
	if err := s.kv.Set(ctx, keyTokenRaw(claims.Subject, rev), []byte(tok.RawToken), 0); err != nil {
		return fmt.Errorf("%w: %v", host.ErrStorage, err)
	}
	if err := s.kv.SetAdd(ctx, keyRevisions(claims.Subject), strconv.FormatInt(rev, 10)); err != nil {
		return fmt.Errorf("%w: %v", host.ErrStorage, err)
	}
	if err := s.kv.SetAdd(ctx, variantKey(variant), claims.Subject); err != nil {
		return fmt.Errorf("%w: %v", host.ErrStorage, err)
	}

	s.logger.Info("token stored",
		zap.String("subject", claims.Subject),
		zap.String("issuer", claims.Issuer),
		zap.Int64("revision", rev),
	)

	if msg.ReplyTo == "" {
		return nil
	}
	name := claims.Wascap.Name
	if name == "" {
		name = anonymousName
	}
	reply, err := protocol.Encode(protocol.CatalogQueryResult{
		Subject: claims.Subject,
		Issuer:  claims.Issuer,
		Name:    name,
	})
	if err != nil {
		return err
	}
	if err := s.pub.Publish(msg.ReplyTo, reply); err != nil {
		return fmt.Errorf("%w: %v", host.ErrBroker, err)
	}
	return nil
}

func (s *Service) query(ctx context.Context, msg protocol.BrokerMessage) error {
	var q protocol.CatalogQuery
	if err := protocol.Decode(msg.Body, &q); err != nil {
		return err
	}

	var set string
	switch q.QueryType {
	case protocol.QueryTypeActor:
		set = keyActors
	case protocol.QueryTypeOperator:
		set = keyOperators
	case protocol.QueryTypeAccount:
		set = keyAccounts
	default:
		return fmt.Errorf("unknown query type %q", q.QueryType)
	}

	subjects, err := s.kv.SetMembers(ctx, set)
	if err != nil {
		return fmt.Errorf("%w: %v", host.ErrStorage, err)
	}

	results := protocol.CatalogQueryResults{Results: []protocol.CatalogQueryResult{}}
	for _, subject := range subjects {
		issuer, name := s.lookupFields(ctx, subject)
		if q.Issuer != "" && issuer != q.Issuer {
			continue
		}
		results.Results = append(results.Results, protocol.CatalogQueryResult{
			Subject: subject,
			Issuer:  issuer,
			Name:    name,
		})
	}

	if msg.ReplyTo == "" {
		return nil
	}
	reply, err := protocol.Encode(results)
	if err != nil {
		return err
	}
	if err := s.pub.Publish(msg.ReplyTo, reply); err != nil {
		return fmt.Errorf("%w: %v", host.ErrBroker, err)
	}
	return nil
}

// lookupFields reads the stored token at the subject's highest revision and
// extracts issuer and name, degrading to "??" when the row is missing or
// undecodable.
func (s *Service) lookupFields(ctx context.Context, subject string) (issuer, name string) {
	rev, ok := s.latestRevision(ctx, subject)
	if !ok {
		return unknownField, unknownField
	}
	raw, err := s.kv.Get(ctx, keyToken(subject, rev))
	if err != nil {
		return unknownField, unknownField
	}
	var claims storedClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return unknownField, unknownField
	}
	name = claims.Wascap.Name
	if name == "" {
		name = anonymousName
	}
	return claims.Issuer, name
}

func (s *Service) latestRevision(ctx context.Context, subject string) (int64, bool) {
	members, err := s.kv.SetMembers(ctx, keyRevisions(subject))
	if err != nil || len(members) == 0 {
		return 0, false
	}
	var max int64
	found := false
	for _, m := range members {
		rev, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		if !found || rev > max {
			max = rev
			found = true
		}
	}
	return max, found
}

// ActorSubjects returns the members of the actor variant set. This is the
// typed surface the stream service calls in-process to gate transfers.
func (s *Service) ActorSubjects(ctx context.Context) ([]string, error) {
	members, err := s.kv.SetMembers(ctx, keyActors)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", host.ErrStorage, err)
	}
	return members, nil
}

func variantKey(v token.Variant) string {
	switch v {
	case token.VariantOperator:
		return keyOperators
	case token.VariantAccount:
		return keyAccounts
	default:
		return keyActors
	}
}
