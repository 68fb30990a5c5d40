// Package messageops implements MessagesGet/MessagesQuery/
// MessagesSubscribe and EventsGet/EventsSubscribe: tenant-wide read access over the event log
// and message store, gated for non-owner requesters by an active
// permission grant whose scope matches the request's interface/method
// and, when the request is protocol-scoped, its protocol.
package messageops

import (
	"context"

	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/eventlog"
	"github.com/forestrie/go-dwn/mstore"
	"github.com/forestrie/go-dwn/permissions"
)

// Handler implements the Messages/Events interfaces.
type Handler struct {
	store  *mstore.Store
	log    *eventlog.Store
	grants *permissions.Index
}

// NewHandler builds a Handler over store, log and grants. grants may be
// nil only for a deployment that never admits non-owner requesters.
func NewHandler(store *mstore.Store, log *eventlog.Store, grants *permissions.Index) *Handler {
	return &Handler{store: store, log: log, grants: grants}
}

func (h *Handler) authorizeScope(ctx context.Context, tenant, requesterDID string, iface dwn.Interface, method dwn.Method, protocol string) error {
	if h.grants == nil {
		return classify(ErrGrantRequired)
	}
	cand := permissions.Candidate{
		Interface: iface,
		Method:    method,
		Protocol:  protocol,
		AuthorDID: requesterDID,
	}
	if _, err := h.grants.Resolve(ctx, tenant, cand); err != nil {
		// The resolve error already carries the specific grant failure code
		// (GrantInterfaceMismatch, GrantExpired, ...) the reply must surface.
		return err
	}
	return nil
}

// MessagesGet returns the message stored for messageCid, gated by a grant
// matching the message's own interface/method/protocol when requesterDID
// is not the tenant owner.
func (h *Handler) MessagesGet(ctx context.Context, tenant, requesterDID, messageCID string) (*dwn.Message, error) {
	msg, ok, err := h.store.Get(ctx, tenant, messageCID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, classify(ErrMessageNotFound)
	}
	if requesterDID != tenant {
		d := msg.Descriptor
		if err := h.authorizeScope(ctx, tenant, requesterDID, d.Interface(), d.Method(), d.Protocol()); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// MessagesQuery and EventsGet both page the event log; EventsGet is kept
// as a distinct method even though its current behavior is MessagesQuery's
// (messageCid entries, not fuller event records). A richer EventsGet
// returning watermark+attributes is a natural follow-up once a caller
// actually needs watermarks rather than just the messageCids they order.
func (h *Handler) MessagesQuery(ctx context.Context, tenant, requesterDID string, filters []mstore.Filter, cursor string, limit int) (eventlog.QueryResult, error) {
	if requesterDID != tenant {
		iface, method, protocol := scopeFromFilters(filters)
		if err := h.authorizeScope(ctx, tenant, requesterDID, iface, method, protocol); err != nil {
			return eventlog.QueryResult{}, err
		}
	}
	return h.log.Query(ctx, tenant, filters, cursor, limit)
}

func (h *Handler) EventsGet(ctx context.Context, tenant, requesterDID string, filters []mstore.Filter, cursor string, limit int) (eventlog.QueryResult, error) {
	if requesterDID != tenant {
		iface, method, protocol := scopeFromFilters(filters)
		if err := h.authorizeScope(ctx, tenant, requesterDID, iface, method, protocol); err != nil {
			return eventlog.QueryResult{}, err
		}
	}
	return h.log.Query(ctx, tenant, filters, cursor, limit)
}

// MessagesSubscribe and EventsSubscribe both return the tenant's raw event
// feed; InterfaceMessages/InterfaceEvents differ only in which grant scope
// a non-owner requester must present.
func (h *Handler) MessagesSubscribe(ctx context.Context, tenant, requesterDID string) (*dwn.Subscription, error) {
	if requesterDID != tenant {
		if err := h.authorizeScope(ctx, tenant, requesterDID, dwn.InterfaceMessages, dwn.MethodSubscribe, ""); err != nil {
			return nil, err
		}
	}
	return h.log.Subscribe(tenant), nil
}

func (h *Handler) EventsSubscribe(ctx context.Context, tenant, requesterDID string) (*dwn.Subscription, error) {
	if requesterDID != tenant {
		if err := h.authorizeScope(ctx, tenant, requesterDID, dwn.InterfaceEvents, dwn.MethodSubscribe, ""); err != nil {
			return nil, err
		}
	}
	return h.log.Subscribe(tenant), nil
}

// scopeFromFilters recovers the (interface, method, protocol) a request's
// first filter names, for the grant-scope check; a query that does not
// constrain interface/method cannot be scoped at all and authorizeScope
// will correctly fail it for a non-owner.
func scopeFromFilters(filters []mstore.Filter) (dwn.Interface, dwn.Method, string) {
	if len(filters) == 0 {
		return "", "", ""
	}
	f := filters[0]
	iface := dwn.Interface(f[dwn.FieldInterface].Equals)
	method := dwn.Method(f[dwn.FieldMethod].Equals)
	protocol := f[dwn.FieldProtocol].Equals
	return iface, method, protocol
}
