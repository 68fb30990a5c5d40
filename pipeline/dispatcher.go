package pipeline

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"time"

	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/forestrie/go-dwn/did"
	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/dwnerr"
	"github.com/forestrie/go-dwn/jws"
	"github.com/forestrie/go-dwn/messageops"
	"github.com/forestrie/go-dwn/permissions"
	"github.com/forestrie/go-dwn/protocols"
	"github.com/forestrie/go-dwn/records"
	"github.com/forestrie/go-dwn/validator"
)

// Options carries a Dispatcher's optional collaborators, set via Option
// functions: implementations type-assert to the target they recognize and
// silently ignore an Option meant for someone else.
type Options struct {
	Log     logger.Logger
	Metrics *Metrics
}

// Option configures a Dispatcher's optional fields.
type Option func(any)

// WithLogger attaches a structured logger.
func WithLogger(log logger.Logger) Option {
	return func(v any) {
		if o, ok := v.(*Options); ok {
			o.Log = log
		}
	}
}

// WithMetrics attaches a Prometheus metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(v any) {
		if o, ok := v.(*Options); ok {
			o.Metrics = m
		}
	}
}

// Dispatcher is the pipeline's single entry point, composing validation,
// authentication, routing and reply shaping for every supported
// (Interface, Method) pair.
type Dispatcher struct {
	validator *validator.Validator
	verifier  *jws.Verifier
	resolver  did.Resolver

	records     *records.Handler
	protocols   *protocols.Handler
	permissions *permissions.Handler
	messageops  *messageops.Handler

	log     logger.Logger
	metrics *Metrics
	locks   *stripedLocks
}

// NewDispatcher builds a Dispatcher over its required collaborators.
// resolver is consulted by the verifier to resolve a signer's DID document.
// A Request with a nil Message skips authentication and is treated as
// req.RequesterDID (anonymous when that is empty), which is only accepted
// for read-type operations; a Message whose Authorization is nil is
// rejected as unauthenticated.
func NewDispatcher(
	v *validator.Validator,
	verifier *jws.Verifier,
	resolver did.Resolver,
	recordsHandler *records.Handler,
	protocolsHandler *protocols.Handler,
	permissionsHandler *permissions.Handler,
	messageopsHandler *messageops.Handler,
	opts ...Option,
) *Dispatcher {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return &Dispatcher{
		validator:   v,
		verifier:    verifier,
		resolver:    resolver,
		records:     recordsHandler,
		protocols:   protocolsHandler,
		permissions: permissionsHandler,
		messageops:  messageopsHandler,
		log:         o.Log,
		metrics:     o.Metrics,
		locks:       newStripedLocks(),
	}
}

// Handle routes req to its handler and shapes the result into a dwn.Reply:
// validate, authenticate, route, authorize (delegated to the handler
// package), storage write, event append, reply.
func (d *Dispatcher) Handle(ctx context.Context, req Request) dwn.Reply {
	start := time.Now()
	reply := d.dispatch(ctx, req)
	if d.metrics != nil {
		d.metrics.observe(string(req.Interface), string(req.Method), strconv.Itoa(reply.Status.Code), time.Since(start).Seconds())
	}
	if d.log != nil {
		d.log.Infof("%s.%s tenant=%s status=%d", req.Interface, req.Method, req.Tenant, reply.Status.Code)
	}
	return reply
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) dwn.Reply {
	switch req.Interface {
	case dwn.InterfaceRecords:
		return d.dispatchRecords(ctx, req)
	case dwn.InterfaceProtocols:
		return d.dispatchProtocols(ctx, req)
	case dwn.InterfacePermissions:
		return d.dispatchPermissions(ctx, req)
	case dwn.InterfaceMessages:
		return d.dispatchMessages(ctx, req)
	case dwn.InterfaceEvents:
		return d.dispatchEvents(ctx, req)
	default:
		return errorReply(dwnerr.Wrapf(dwnerr.KindInvalid, "UnknownInterface", "pipeline: unknown interface %q", req.Interface))
	}
}

// authenticate runs structural validation and envelope verification for a
// request carrying a signed envelope, returning the requester's DID. A
// request with no envelope authenticates as req.RequesterDID (possibly ""),
// which is only legal for the read-type operations that accept it.
func (d *Dispatcher) authenticate(ctx context.Context, req Request) (string, error) {
	if req.Message == nil {
		return req.RequesterDID, nil
	}
	if err := d.validator.Validate(ctx, *req.Message); err != nil {
		return "", err
	}
	if req.Message.Authorization == nil {
		return "", dwnerr.New(dwnerr.KindUnauthenticated, "MissingAuthorization", jws.ErrMissingAuthorization)
	}
	authorDID, err := d.verifier.VerifyMessage(ctx, d.resolver, *req.Message)
	if err != nil {
		return "", dwnerr.New(dwnerr.KindUnauthenticated, "AuthorizationVerificationFailed", err)
	}
	return authorDID, nil
}

// requireAuth runs authenticate but rejects an anonymous result: write-type
// operations (RecordsWrite/Delete, ProtocolsConfigure, every Permissions
// method) always require a signed envelope.
func (d *Dispatcher) requireAuth(ctx context.Context, req Request) (string, error) {
	if req.Message == nil {
		return "", dwnerr.New(dwnerr.KindUnauthenticated, "MissingMessage", jws.ErrMissingAuthorization)
	}
	return d.authenticate(ctx, req)
}

func bufferData(r io.Reader) (*bytes.Reader, error) {
	if r == nil {
		return nil, nil
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, dwnerr.New(dwnerr.KindInvalid, "ReadRequestData", err)
	}
	return bytes.NewReader(b), nil
}

func errorReply(err error) dwn.Reply {
	return dwn.Reply{Status: dwn.Status{Code: dwnerr.CodeOf(err), Detail: dwnerr.DetailOf(err)}}
}
