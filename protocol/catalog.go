package protocol

// Catalog subjects. The delete subject is reserved: a delete marks an actor
// as removed but never erases the underlying storage, and the current server
// fails such requests without replying.
const (
	SubjectCatalogPutToken    = "gantry.catalog.tokens.put"
	SubjectCatalogQuery       = "gantry.catalog.tokens.query"
	SubjectCatalogDeleteToken = "gantry.catalog.tokens.delete"
)

// Token is a signed identity artifact. Actors, accounts, and operators are
// all identified by tokens: an ed25519-signed JWT in RawToken, the canonical
// decoded claims in DecodedTokenJSON (populated by the server's middleware),
// and the middleware's validation report.
type Token struct {
	RawToken         string           `msgpack:"raw_token"`
	DecodedTokenJSON string           `msgpack:"decoded_token_json"`
	ValidationResult *TokenValidation `msgpack:"validation_result"`
}

// TokenValidation is the middleware's report on a token. A failed signature
// check travels here rather than as an error so the catalog can refuse the
// write itself.
type TokenValidation struct {
	Expired        bool   `msgpack:"expired"`
	ExpiresHuman   string `msgpack:"expires_human"`
	NotBeforeHuman string `msgpack:"not_before_human"`
	CannotUseYet   bool   `msgpack:"cannot_use_yet"`
	SignatureValid bool   `msgpack:"signature_valid"`
}

// QueryType selects which variant set a catalog query enumerates.
type QueryType string

const (
	QueryTypeActor    QueryType = "actor"
	QueryTypeAccount  QueryType = "account"
	QueryTypeOperator QueryType = "operator"
)

// CatalogQuery asks the catalog for the members of one variant set,
// optionally filtered by issuer.
type CatalogQuery struct {
	QueryType QueryType `msgpack:"query_type"`
	Issuer    string    `msgpack:"issuer,omitempty"`
}

// CatalogQueryResults is the reply to a CatalogQuery.
type CatalogQueryResults struct {
	Results []CatalogQueryResult `msgpack:"results"`
}

// CatalogQueryResult describes one registered subject. Actor is reserved in
// the protocol and is not populated by the current server.
type CatalogQueryResult struct {
	Subject string        `msgpack:"subject"`
	Issuer  string        `msgpack:"issuer"`
	Name    string        `msgpack:"name"`
	Actor   *ActorSummary `msgpack:"actor"`
}

// ActorSummary is the metadata on file for an actor, roughly the information
// carried in its embedded signed JWT and not the module's raw bytes.
type ActorSummary struct {
	PublicKey    string   `msgpack:"public_key"`
	Capabilities []string `msgpack:"capabilities"`
	Provider     bool     `msgpack:"provider"`
	Tags         []string `msgpack:"tags"`
	Version      string   `msgpack:"version"`
	Revision     uint64   `msgpack:"revision"`
	Account      string   `msgpack:"account"`
	Name         string   `msgpack:"name"`
}
