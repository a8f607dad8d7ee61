// Package natsclient owns the NATS connection lifecycle and adapts it to
// the host.Broker surface.
package natsclient

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Client wraps a NATS connection.
type Client struct {
	Conn *nats.Conn
	Log  *zap.Logger
}

// Option adds connection options to NewClient.
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

// NewClient connects to NATS with unlimited reconnects and lifecycle
// logging.
func NewClient(url string, logger *zap.Logger, options ...Option) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	for _, o := range options {
		o(&opts)
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("NATS connected", zap.String("url", url))
	return &Client{Conn: nc, Log: logger}, nil
}

// Close drains and closes the underlying NATS connection. Drain flushes
// outstanding subscription deliveries and pending publishes before closing;
// fall back to Close if Drain itself errors (e.g. already disconnected).
func (c *Client) Close() {
	if c.Conn != nil {
		if err := c.Conn.Drain(); err != nil {
			c.Conn.Close()
		}
	}
}

// Broker is the host.Broker adapter over a NATS connection.
type Broker struct {
	conn *nats.Conn
}

// NewBroker wraps the client's connection for the host.
func NewBroker(c *Client) *Broker { return &Broker{conn: c.Conn} }

// Publish implements host.Publisher.
func (b *Broker) Publish(subject string, data []byte) error {
	return b.conn.Publish(subject, data)
}

// Subscribe implements host.Broker. The handler runs on the NATS delivery
// goroutine; the host's per-service channel provides the single-threading.
func (b *Broker) Subscribe(pattern string, handler func(subject, replyTo string, data []byte)) error {
	_, err := b.conn.Subscribe(pattern, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Reply, msg.Data)
	})
	return err
}
