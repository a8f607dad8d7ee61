// Package host runs Gantry services against the message broker. It owns
// the subscription fan-in, wraps each inbound message in the invocation
// envelope, runs the middleware chain, and dispatches to exactly one
// single-threaded handler goroutine per service, so responses on a reply
// inbox come back in request order.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ewbankkit/gantry/protocol"
)

var (
	// ErrUnknownSubject marks a message whose subject no handler claims.
	ErrUnknownSubject = errors.New("unknown subject")
	// ErrStorage wraps failures of the KV or blob backends.
	ErrStorage = errors.New("storage error")
	// ErrBroker wraps publish or subscribe failures.
	ErrBroker = errors.New("broker error")
)

// Publisher is the reply surface handed to services.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Broker is the transport the host subscribes through. The NATS adapter
// implements it; tests use an in-process fake.
type Broker interface {
	Publisher
	Subscribe(pattern string, handler func(subject, replyTo string, data []byte)) error
}

// Service is one hosted message handler. HandleMessage is never called
// concurrently for the same service instance.
type Service interface {
	Name() string
	Subscriptions() []string
	HandleMessage(ctx context.Context, msg protocol.BrokerMessage) error
}

// delivery is one raw broker message queued for a service.
type delivery struct {
	subject string
	replyTo string
	data    []byte
}

type registration struct {
	service     Service
	middlewares []Middleware
	inbox       chan delivery
}

// Host wires services, middleware, and the broker together.
type Host struct {
	broker Broker
	logger *zap.Logger
	tracer trace.Tracer

	invocations metric.Int64Counter
	failures    metric.Int64Counter

	mu       sync.Mutex
	services []*registration
	running  bool
}

// inboxDepth bounds how far a slow service can fall behind the broker
// before intake blocks.
const inboxDepth = 256

// New builds a Host on the given broker.
func New(broker Broker, logger *zap.Logger) *Host {
	meter := otel.Meter("gantry-host")
	invocations, _ := meter.Int64Counter("gantry.host.invocations",
		metric.WithDescription("Messages dispatched to hosted services"))
	failures, _ := meter.Int64Counter("gantry.host.failures",
		metric.WithDescription("Invocations that ended in an error"))

	return &Host{
		broker:      broker,
		logger:      logger,
		tracer:      otel.Tracer("gantry-host"),
		invocations: invocations,
		failures:    failures,
	}
}

// Register subscribes a service's subjects and attaches its middleware
// chain. Must be called before Run.
func (h *Host) Register(svc Service, middlewares ...Middleware) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return errors.New("host already running")
	}

	reg := &registration{
		service:     svc,
		middlewares: middlewares,
		inbox:       make(chan delivery, inboxDepth),
	}
	for _, pattern := range svc.Subscriptions() {
		err := h.broker.Subscribe(pattern, func(subject, replyTo string, data []byte) {
			reg.inbox <- delivery{subject: subject, replyTo: replyTo, data: data}
		})
		if err != nil {
			return fmt.Errorf("%w: subscribe %s: %v", ErrBroker, pattern, err)
		}
	}
	h.services = append(h.services, reg)
	h.logger.Info("service registered",
		zap.String("service", svc.Name()),
		zap.Strings("subscriptions", svc.Subscriptions()),
	)
	return nil
}

// Run dispatches until ctx is cancelled, then waits for in-flight handlers
// to finish.
func (h *Host) Run(ctx context.Context) error {
	h.mu.Lock()
	h.running = true
	regs := h.services
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, reg := range regs {
		wg.Add(1)
		go func(reg *registration) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d := <-reg.inbox:
					h.dispatch(ctx, reg, d)
				}
			}
		}(reg)
	}
	wg.Wait()
	return ctx.Err()
}

// dispatch runs one delivery through the middleware chain and into the
// service. A failed invocation is logged and never produces a reply;
// clients detect it by timeout.
func (h *Host) dispatch(ctx context.Context, reg *registration, d delivery) {
	name := reg.service.Name()
	ctx, span := h.tracer.Start(ctx, "host.dispatch",
		trace.WithAttributes(
			attribute.String("service", name),
			attribute.String("subject", d.subject),
		))
	defer span.End()

	attrs := metric.WithAttributes(attribute.String("service", name))
	h.invocations.Add(ctx, 1, attrs)

	payload, err := protocol.Encode(protocol.DeliverMessage{Message: protocol.BrokerMessage{
		Subject: d.subject,
		ReplyTo: d.replyTo,
		Body:    d.data,
	}})
	if err != nil {
		h.fail(ctx, span, name, d.subject, err)
		return
	}

	inv := Invocation{
		ID:        uuid.NewString(),
		Origin:    "system",
		Operation: protocol.OpDeliverMessage,
		Payload:   payload,
	}
	for _, mw := range reg.middlewares {
		inv, err = mw.InvocationPre(ctx, inv)
		if err != nil {
			h.fail(ctx, span, name, d.subject, err)
			return
		}
	}

	var dm protocol.DeliverMessage
	if err := protocol.Decode(inv.Payload, &dm); err != nil {
		h.fail(ctx, span, name, d.subject, err)
		return
	}

	err = reg.service.HandleMessage(ctx, dm.Message)
	for _, mw := range reg.middlewares {
		if postErr := mw.InvocationPost(ctx, inv, err); postErr != nil {
			h.logger.Warn("post-invoke middleware failed",
				zap.String("service", name), zap.Error(postErr))
		}
	}
	if err != nil {
		h.fail(ctx, span, name, d.subject, err)
	}
}

func (h *Host) fail(ctx context.Context, span trace.Span, service, subject string, err error) {
	span.RecordError(err)
	h.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("service", service)))
	h.logger.Error("invocation failed",
		zap.String("service", service),
		zap.String("subject", subject),
		zap.Error(err),
	)
}
