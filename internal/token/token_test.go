package token

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewbankkit/gantry/internal/keys"
)

func mustPair(t *testing.T, create func() (*keys.KeyPair, error)) (*keys.KeyPair, string) {
	t.Helper()
	kp, err := create()
	require.NoError(t, err)
	pub, err := kp.PublicKey()
	require.NoError(t, err)
	return kp, pub
}

func signedActorToken(t *testing.T, mutate func(*ActorClaims)) (raw, subject, issuer string) {
	t.Helper()
	account, accountPub := mustPair(t, keys.CreateAccount)
	_, modulePub := mustPair(t, keys.CreateModule)

	claims := &ActorClaims{
		ClaimsHeader: NewHeader(accountPub, modulePub),
		Metadata:     &Actor{Name: "demo", Revision: 3, Caps: []string{"wascc:messaging"}},
	}
	if mutate != nil {
		mutate(claims)
	}
	raw, err := Sign(claims, account)
	require.NoError(t, err)
	return raw, modulePub, accountPub
}

func TestCrackVariantDispatch(t *testing.T) {
	operator, operatorPub := mustPair(t, keys.CreateOperator)
	account, accountPub := mustPair(t, keys.CreateAccount)
	_, modulePub := mustPair(t, keys.CreateModule)

	tests := []struct {
		name        string
		raw         func(t *testing.T) string
		wantVariant Variant
		wantSubject string
		wantName    string
		wantRev     int64
	}{
		{
			name: "operator",
			raw: func(t *testing.T) string {
				raw, err := Sign(&OperatorClaims{
					ClaimsHeader: NewHeader(operatorPub, operatorPub),
					Metadata:     &Operator{Name: "root", ValidSigners: []string{operatorPub}},
				}, operator)
				require.NoError(t, err)
				return raw
			},
			wantVariant: VariantOperator,
			wantSubject: operatorPub,
			wantName:    "root",
		},
		{
			name: "account",
			raw: func(t *testing.T) string {
				raw, err := Sign(&AccountClaims{
					ClaimsHeader: NewHeader(operatorPub, accountPub),
					Metadata:     &Account{Name: "tenant"},
				}, operator)
				require.NoError(t, err)
				return raw
			},
			wantVariant: VariantAccount,
			wantSubject: accountPub,
			wantName:    "tenant",
		},
		{
			name: "actor",
			raw: func(t *testing.T) string {
				raw, err := Sign(&ActorClaims{
					ClaimsHeader: NewHeader(accountPub, modulePub),
					Metadata:     &Actor{Name: "demo", Revision: 3},
				}, account)
				require.NoError(t, err)
				return raw
			},
			wantVariant: VariantActor,
			wantSubject: modulePub,
			wantName:    "demo",
			wantRev:     3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, err := Crack(tt.raw(t))
			require.NoError(t, err)
			assert.Equal(t, tt.wantVariant, dec.Variant)
			assert.Equal(t, tt.wantSubject, dec.Subject)
			assert.Equal(t, tt.wantName, dec.Name)
			assert.Equal(t, tt.wantRev, dec.Revision)
			assert.True(t, dec.Validation.SignatureValid)
			assert.False(t, dec.Validation.Expired)
			assert.Equal(t, "never", dec.Validation.ExpiresHuman)
			assert.Equal(t, "immediately", dec.Validation.NotBeforeHuman)
		})
	}
}

func TestVariantOfRejectsUnknownPrefix(t *testing.T) {
	_, err := VariantOf("XABCDEF")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = VariantOf("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCrackRejectsUnknownSubjectPrefix(t *testing.T) {
	account, accountPub := mustPair(t, keys.CreateAccount)
	raw, err := Sign(&ActorClaims{
		ClaimsHeader: NewHeader(accountPub, "XNOTAREALSUBJECT"),
	}, account)
	require.NoError(t, err)

	_, err = Crack(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCrackReportsExpiry(t *testing.T) {
	past := time.Now().Add(-time.Hour).Unix()
	raw, _, _ := signedActorToken(t, func(c *ActorClaims) { c.Expires = &past })

	dec, err := Crack(raw)
	require.NoError(t, err)
	assert.True(t, dec.Validation.Expired)
	assert.True(t, dec.Validation.SignatureValid)
	assert.Equal(t, time.Unix(past, 0).UTC().Format(time.RFC3339), dec.Validation.ExpiresHuman)
}

func TestCrackReportsNotBefore(t *testing.T) {
	future := time.Now().Add(time.Hour).Unix()
	raw, _, _ := signedActorToken(t, func(c *ActorClaims) { c.NotBefore = &future })

	dec, err := Crack(raw)
	require.NoError(t, err)
	assert.True(t, dec.Validation.CannotUseYet)
	assert.False(t, dec.Validation.Expired)
	assert.Equal(t, time.Unix(future, 0).UTC().Format(time.RFC3339), dec.Validation.NotBeforeHuman)
}

func TestCrackFlagsBadSignature(t *testing.T) {
	raw, subject, issuer := signedActorToken(t, nil)

	// Corrupt the signature segment only; header and claims stay intact.
	dot := strings.LastIndex(raw, ".")
	tampered := raw[:dot+1] + "AAAA" + raw[dot+5:]

	dec, err := Crack(tampered)
	require.NoError(t, err)
	assert.False(t, dec.Validation.SignatureValid)
	assert.Equal(t, subject, dec.Subject)
	assert.Equal(t, issuer, dec.Issuer)
}

func TestCrackRejectsMalformedToken(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not a jwt", "definitely not a token"},
		{"empty", ""},
		{"garbage segments", "a.b.c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Crack(tt.raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestCrackRejectsUnresolvableIssuer(t *testing.T) {
	account, _ := mustPair(t, keys.CreateAccount)
	_, modulePub := mustPair(t, keys.CreateModule)

	raw, err := Sign(&ActorClaims{
		ClaimsHeader: NewHeader("not-a-key", modulePub),
	}, account)
	require.NoError(t, err)

	_, err = Crack(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCrackCanonicalJSONDeterministic(t *testing.T) {
	raw, _, _ := signedActorToken(t, nil)

	first, err := Crack(raw)
	require.NoError(t, err)
	second, err := Crack(raw)
	require.NoError(t, err)

	assert.Equal(t, first.CanonicalJSON, second.CanonicalJSON)
	assert.Contains(t, first.CanonicalJSON, `"wascap"`)
	assert.Contains(t, first.CanonicalJSON, `"rev":3`)
}
