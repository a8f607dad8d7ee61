package host

import "context"

// Invocation is one unit of work headed into a service: the encoded
// DeliverMessage plus its identity. Middleware may replace the payload but
// must preserve ID, Origin, and Operation.
type Invocation struct {
	ID        string
	Origin    string
	Operation string
	Payload   []byte
}

// Middleware intercepts invocations around service dispatch. An error from
// InvocationPre aborts the invocation before the service runs. Capability
// hooks mirror the invocation hooks for traffic headed to capability
// providers rather than services; Gantry's middleware leaves them as
// pass-throughs.
type Middleware interface {
	InvocationPre(ctx context.Context, inv Invocation) (Invocation, error)
	InvocationPost(ctx context.Context, inv Invocation, handlerErr error) error
	CapabilityPre(ctx context.Context, inv Invocation) (Invocation, error)
	CapabilityPost(ctx context.Context, inv Invocation, handlerErr error) error
}

// PassThrough is a Middleware base with no-op hooks; embed it and override
// the hooks that matter.
type PassThrough struct{}

func (PassThrough) InvocationPre(_ context.Context, inv Invocation) (Invocation, error) {
	return inv, nil
}

func (PassThrough) InvocationPost(context.Context, Invocation, error) error { return nil }

func (PassThrough) CapabilityPre(_ context.Context, inv Invocation) (Invocation, error) {
	return inv, nil
}

func (PassThrough) CapabilityPost(context.Context, Invocation, error) error { return nil }
