package catalog

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ewbankkit/gantry/internal/host"
	"github.com/ewbankkit/gantry/internal/keyvalue"
	"github.com/ewbankkit/gantry/internal/token"
	"github.com/ewbankkit/gantry/protocol"
)

type recordingPublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{messages: make(map[string][][]byte)}
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[subject] = append(p.messages[subject], data)
	return nil
}

func (p *recordingPublisher) on(subject string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.messages[subject]
}

// augmentedToken builds the Token the middleware would hand the catalog.
func augmentedToken(t *testing.T, subject, issuer, name string, revision int64, validation protocol.TokenValidation) []byte {
	t.Helper()
	decoded := fmt.Sprintf(
		`{"iat":1,"iss":%q,"jti":"id","sub":%q,"wascap":{"name":%q,"rev":%d}}`,
		issuer, subject, name, revision,
	)
	body, err := protocol.Encode(protocol.Token{
		RawToken:         "raw." + subject,
		DecodedTokenJSON: decoded,
		ValidationResult: &validation,
	})
	require.NoError(t, err)
	return body
}

func validSig() protocol.TokenValidation {
	return protocol.TokenValidation{
		ExpiresHuman:   "never",
		NotBeforeHuman: "immediately",
		SignatureValid: true,
	}
}

func newCatalog(t *testing.T) (*Service, keyvalue.Store, *recordingPublisher) {
	kv := keyvalue.NewMemory()
	pub := newRecordingPublisher()
	svc := New(kv, pub, zaptest.NewLogger(t), "OOPERATOR", []string{"OSIGNER"})
	return svc, kv, pub
}

func TestPutValidActorToken(t *testing.T) {
	svc, kv, pub := newCatalog(t)
	ctx := context.Background()

	err := svc.HandleMessage(ctx, protocol.BrokerMessage{
		Subject: protocol.SubjectCatalogPutToken,
		ReplyTo: "_INBOX.put",
		Body:    augmentedToken(t, "MABCD", "AXYZ", "demo", 3, validSig()),
	})
	require.NoError(t, err)

	// Reply carries the identity of the stored token.
	replies := pub.on("_INBOX.put")
	require.Len(t, replies, 1)
	var result protocol.CatalogQueryResult
	require.NoError(t, protocol.Decode(replies[0], &result))
	assert.Equal(t, "MABCD", result.Subject)
	assert.Equal(t, "AXYZ", result.Issuer)
	assert.Equal(t, "demo", result.Name)

	// KV layout: decoded body, raw body, revision set, variant set.
	actors, err := kv.SetMembers(ctx, "gantry:actors")
	require.NoError(t, err)
	assert.Contains(t, actors, "MABCD")

	revs, err := kv.SetMembers(ctx, "gantry:tokens:MABCD:revisions")
	require.NoError(t, err)
	assert.Contains(t, revs, "3")

	decoded, err := kv.Get(ctx, "gantry:tokens:MABCD:3")
	require.NoError(t, err)
	assert.Contains(t, string(decoded), `"sub":"MABCD"`)

	raw, err := kv.Get(ctx, "gantry:tokens:MABCD:3:raw")
	require.NoError(t, err)
	assert.Equal(t, "raw.MABCD", string(raw))
}

func TestPutRejectsInvalidTokens(t *testing.T) {
	tests := []struct {
		name string
		body func(t *testing.T) []byte
	}{
		{
			name: "expired",
			body: func(t *testing.T) []byte {
				v := validSig()
				v.Expired = true
				v.ExpiresHuman = "2020-01-01T00:00:00Z"
				return augmentedToken(t, "MABCD", "AXYZ", "demo", 0, v)
			},
		},
		{
			name: "bad signature",
			body: func(t *testing.T) []byte {
				v := validSig()
				v.SignatureValid = false
				return augmentedToken(t, "MABCD", "AXYZ", "demo", 0, v)
			},
		},
		{
			name: "no validation result",
			body: func(t *testing.T) []byte {
				body, err := protocol.Encode(protocol.Token{RawToken: "raw"})
				require.NoError(t, err)
				return body
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, kv, pub := newCatalog(t)
			ctx := context.Background()

			err := svc.HandleMessage(ctx, protocol.BrokerMessage{
				Subject: protocol.SubjectCatalogPutToken,
				ReplyTo: "_INBOX.put",
				Body:    tt.body(t),
			})
			assert.ErrorIs(t, err, token.ErrInvalidToken)

			actors, kvErr := kv.SetMembers(ctx, "gantry:actors")
			require.NoError(t, kvErr)
			assert.Empty(t, actors, "rejected puts must not write")
			assert.Empty(t, pub.on("_INBOX.put"), "rejected puts must not reply")
		})
	}
}

func TestPutWithoutReplyInbox(t *testing.T) {
	svc, _, pub := newCatalog(t)

	err := svc.HandleMessage(context.Background(), protocol.BrokerMessage{
		Subject: protocol.SubjectCatalogPutToken,
		Body:    augmentedToken(t, "MABCD", "AXYZ", "demo", 0, validSig()),
	})
	require.NoError(t, err)
	assert.Empty(t, pub.messages)
}

func TestPutAnonymousName(t *testing.T) {
	svc, _, pub := newCatalog(t)

	err := svc.HandleMessage(context.Background(), protocol.BrokerMessage{
		Subject: protocol.SubjectCatalogPutToken,
		ReplyTo: "_INBOX.anon",
		Body:    augmentedToken(t, "MABCD", "AXYZ", "", 0, validSig()),
	})
	require.NoError(t, err)

	var result protocol.CatalogQueryResult
	require.NoError(t, protocol.Decode(pub.on("_INBOX.anon")[0], &result))
	assert.Equal(t, "Anonymous", result.Name)
}

func put(t *testing.T, svc *Service, subject, issuer, name string, revision int64) {
	t.Helper()
	err := svc.HandleMessage(context.Background(), protocol.BrokerMessage{
		Subject: protocol.SubjectCatalogPutToken,
		Body:    augmentedToken(t, subject, issuer, name, revision, validSig()),
	})
	require.NoError(t, err)
}

func runQuery(t *testing.T, svc *Service, pub *recordingPublisher, q protocol.CatalogQuery) protocol.CatalogQueryResults {
	t.Helper()
	body, err := protocol.Encode(q)
	require.NoError(t, err)
	err = svc.HandleMessage(context.Background(), protocol.BrokerMessage{
		Subject: protocol.SubjectCatalogQuery,
		ReplyTo: "_INBOX.query",
		Body:    body,
	})
	require.NoError(t, err)

	replies := pub.on("_INBOX.query")
	require.NotEmpty(t, replies)
	var results protocol.CatalogQueryResults
	require.NoError(t, protocol.Decode(replies[len(replies)-1], &results))
	return results
}

func TestQueryActorsReadsLatestRevision(t *testing.T) {
	svc, _, pub := newCatalog(t)
	put(t, svc, "MABCD", "AXYZ", "demo", 3)

	results := runQuery(t, svc, pub, protocol.CatalogQuery{QueryType: protocol.QueryTypeActor})
	require.Len(t, results.Results, 1)
	assert.Equal(t, protocol.CatalogQueryResult{
		Subject: "MABCD",
		Issuer:  "AXYZ",
		Name:    "demo",
	}, results.Results[0])
}

func TestQueryPicksHighestRevision(t *testing.T) {
	svc, _, pub := newCatalog(t)
	put(t, svc, "MABCD", "AXYZ", "old", 1)
	put(t, svc, "MABCD", "AXYZ", "new", 7)
	put(t, svc, "MABCD", "AXYZ", "middle", 4)

	results := runQuery(t, svc, pub, protocol.CatalogQuery{QueryType: protocol.QueryTypeActor})
	require.Len(t, results.Results, 1)
	assert.Equal(t, "new", results.Results[0].Name)
}

func TestQueryUnknownFieldsForMissingToken(t *testing.T) {
	svc, kv, pub := newCatalog(t)

	// Subject registered but with no stored token rows at all.
	require.NoError(t, kv.SetAdd(context.Background(), "gantry:actors", "MGHOST"))

	results := runQuery(t, svc, pub, protocol.CatalogQuery{QueryType: protocol.QueryTypeActor})
	require.Len(t, results.Results, 1)
	assert.Equal(t, "??", results.Results[0].Issuer)
	assert.Equal(t, "??", results.Results[0].Name)
}

func TestQueryIssuerFilter(t *testing.T) {
	svc, _, pub := newCatalog(t)
	put(t, svc, "MAAA", "AONE", "one", 0)
	put(t, svc, "MBBB", "ATWO", "two", 0)

	results := runQuery(t, svc, pub, protocol.CatalogQuery{
		QueryType: protocol.QueryTypeActor,
		Issuer:    "AONE",
	})
	require.Len(t, results.Results, 1)
	assert.Equal(t, "MAAA", results.Results[0].Subject)
}

func TestVariantSetExclusivity(t *testing.T) {
	svc, kv, _ := newCatalog(t)
	ctx := context.Background()

	put(t, svc, "MABCD", "AXYZ", "demo", 0)
	put(t, svc, "AXYZ", "OOPERATOR", "tenant", 0)
	put(t, svc, "OOPERATOR", "OOPERATOR", "root", 0)

	variantSets := []string{"gantry:actors", "gantry:accounts", "gantry:operators"}
	for _, subject := range []string{"MABCD", "AXYZ", "OOPERATOR"} {
		found := 0
		for _, set := range variantSets {
			members, err := kv.SetMembers(ctx, set)
			require.NoError(t, err)
			for _, m := range members {
				if m == subject {
					found++
				}
			}
		}
		assert.Equal(t, 1, found, "subject %s must live in exactly one variant set", subject)
	}
}

func TestActorSubjects(t *testing.T) {
	svc, _, _ := newCatalog(t)
	put(t, svc, "MABCD", "AXYZ", "demo", 0)

	subjects, err := svc.ActorSubjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"MABCD"}, subjects)
}

func TestUnknownSubjectRejected(t *testing.T) {
	svc, _, _ := newCatalog(t)
	err := svc.HandleMessage(context.Background(), protocol.BrokerMessage{
		Subject: "gantry.catalog.tokens.bogus",
	})
	assert.ErrorIs(t, err, host.ErrUnknownSubject)
}

func TestDeleteReservedNotImplemented(t *testing.T) {
	svc, kv, pub := newCatalog(t)
	put(t, svc, "MABCD", "AXYZ", "demo", 0)

	err := svc.HandleMessage(context.Background(), protocol.BrokerMessage{
		Subject: protocol.SubjectCatalogDeleteToken,
		ReplyTo: "_INBOX.del",
	})
	require.Error(t, err)
	assert.Empty(t, pub.on("_INBOX.del"))

	// Storage is untouched.
	actors, kvErr := kv.SetMembers(context.Background(), "gantry:actors")
	require.NoError(t, kvErr)
	assert.Contains(t, actors, "MABCD")
}
