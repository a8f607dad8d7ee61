// Package client is the Go client for a Gantry registry: catalog puts and
// queries plus chunked module upload and download over NATS.
package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ewbankkit/gantry/protocol"
)

// Contractual client-side timeouts. A compliant server responds well within
// these; expiry means the request is abandoned even if the server later
// completes the work.
const (
	QueryTimeout      = 700 * time.Millisecond
	PutTimeout        = 100 * time.Millisecond
	StreamInitTimeout = 100 * time.Millisecond
	ChunkTimeout      = 2000 * time.Millisecond
)

// ErrRequestFailed marks a request the server did not acknowledge in time.
var ErrRequestFailed = errors.New("registry request failed")

// transport is the slice of the NATS connection the client uses, so tests
// can fake the wire.
type transport interface {
	Request(subject string, data []byte, timeout time.Duration) (*nats.Msg, error)
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
	Flush() error
	Close()
}

// Client talks to a Gantry registry.
type Client struct {
	nc transport
}

// Option configures the NATS connection.
type Option func(*[]nats.Option)

// WithCredsFile authenticates with a NATS creds file.
func WithCredsFile(path string) Option {
	return func(opts *[]nats.Option) {
		*opts = append(*opts, nats.UserCredentials(path))
	}
}

// WithUserJWTAndSeed authenticates with a user JWT plus its nkey seed.
func WithUserJWTAndSeed(jwt, seed string) Option {
	return func(opts *[]nats.Option) {
		*opts = append(*opts, nats.UserJWTAndSeed(jwt, seed))
	}
}

// New connects to the registry's broker.
func New(url string, options ...Option) (*Client, error) {
	var opts []nats.Option
	for _, o := range options {
		o(&opts)
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to registry: %w", err)
	}
	return &Client{nc: nc}, nil
}

// newWithTransport is the test seam.
func newWithTransport(nc transport) *Client { return &Client{nc: nc} }

// Close closes the underlying connection.
func (c *Client) Close() { c.nc.Close() }

// PutToken submits a raw signed token to the catalog and returns the
// identity the catalog stored.
func (c *Client) PutToken(raw string) (protocol.CatalogQueryResult, error) {
	body, err := protocol.Encode(protocol.Token{RawToken: raw})
	if err != nil {
		return protocol.CatalogQueryResult{}, err
	}
	msg, err := c.nc.Request(protocol.SubjectCatalogPutToken, body, PutTimeout)
	if err != nil {
		return protocol.CatalogQueryResult{}, fmt.Errorf("%w: put token: %v", ErrRequestFailed, err)
	}
	var result protocol.CatalogQueryResult
	if err := protocol.Decode(msg.Data, &result); err != nil {
		return protocol.CatalogQueryResult{}, err
	}
	return result, nil
}

// Query enumerates one variant set, optionally filtered by issuer.
func (c *Client) Query(queryType protocol.QueryType, issuer string) (protocol.CatalogQueryResults, error) {
	body, err := protocol.Encode(protocol.CatalogQuery{QueryType: queryType, Issuer: issuer})
	if err != nil {
		return protocol.CatalogQueryResults{}, err
	}
	msg, err := c.nc.Request(protocol.SubjectCatalogQuery, body, QueryTimeout)
	if err != nil {
		return protocol.CatalogQueryResults{}, fmt.Errorf("%w: query: %v", ErrRequestFailed, err)
	}
	var results protocol.CatalogQueryResults
	if err := protocol.Decode(msg.Data, &results); err != nil {
		return protocol.CatalogQueryResults{}, err
	}
	return results, nil
}
