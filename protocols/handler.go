package protocols

import (
	"context"

	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/dwnerr"
	"github.com/forestrie/go-dwn/eventlog"
	"github.com/forestrie/go-dwn/mstore"
	"github.com/forestrie/go-dwn/protocolauth"
)

const (
	attrInterface = "interface"
	attrMethod    = "method"
	attrIsCurrent = "isCurrent"
)

// Handler implements ProtocolsConfigure/Query.
type Handler struct {
	store *mstore.Store
	log   *eventlog.Store
}

// NewHandler builds a Handler over store and log.
func NewHandler(store *mstore.Store, log *eventlog.Store) *Handler {
	return &Handler{store: store, log: log}
}

func boolAttr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func (h *Handler) currentFor(ctx context.Context, tenant, protocol string) (string, bool, error) {
	res, err := h.store.Query(ctx, tenant, mstore.QuerySpec{
		Filters: []mstore.Filter{{
			attrInterface:     {Equals: "Protocols"},
			attrMethod:        {Equals: string(dwn.MethodConfigure)},
			dwn.FieldProtocol: {Equals: protocol},
			attrIsCurrent:     {Equals: "true"},
		}},
		Limit: 1,
	})
	if err != nil {
		return "", false, err
	}
	if len(res.MessageCIDs) == 0 {
		return "", false, nil
	}
	return res.MessageCIDs[0], true, nil
}

func (h *Handler) index(msg dwn.Message, isCurrent bool) map[string]string {
	d := msg.Descriptor
	return map[string]string{
		dwn.FieldMessageTimestamp: d.MessageTimestamp(),
		dwn.FieldProtocol:         d.Protocol(),
		dwn.FieldPublished:        boolAttr(d.Published()),
		attrInterface:             "Protocols",
		attrMethod:                string(dwn.MethodConfigure),
		attrIsCurrent:             boolAttr(isCurrent),
	}
}

// Configure implements ProtocolsConfigure: the configuration with the
// lexicographically larger messageCid wins a collision for the same
// protocol. An incoming configuration that loses is never persisted; one
// that wins is stored and the configuration it replaces is deleted.
func (h *Handler) Configure(ctx context.Context, tenant, messageCID string, msg dwn.Message) error {
	protocol := msg.Descriptor.Protocol()
	if protocol == "" {
		return dwnerr.Wrapf(dwnerr.KindInvalid, "MissingProtocol", "protocols: descriptor is missing protocol")
	}

	currentCID, ok, err := h.currentFor(ctx, tenant, protocol)
	if err != nil {
		return err
	}
	if ok && currentCID >= messageCID {
		return nil
	}

	if err := h.store.Put(ctx, tenant, messageCID, msg, h.index(msg, true)); err != nil {
		return err
	}

	if ok {
		if err := h.store.Delete(ctx, tenant, currentCID); err != nil {
			return err
		}
	}

	if _, err := h.log.Append(ctx, tenant, messageCID, h.index(msg, true)); err != nil {
		return dwnerr.New(dwnerr.KindInternal, "AppendProtocolsEvent", err)
	}
	return nil
}

// Query implements ProtocolsQuery. anonymous requests only ever see
// configurations whose definition is marked published=true.
func (h *Handler) Query(ctx context.Context, tenant, protocol string, anonymous bool) (mstore.QueryResult, error) {
	f := mstore.Filter{
		attrInterface: {Equals: "Protocols"},
		attrMethod:    {Equals: string(dwn.MethodConfigure)},
		attrIsCurrent: {Equals: "true"},
	}
	if protocol != "" {
		f[dwn.FieldProtocol] = mstore.Predicate{Equals: protocol}
	}
	if anonymous {
		f[dwn.FieldPublished] = mstore.Predicate{Equals: "true"}
	}
	return h.store.Query(ctx, tenant, mstore.QuerySpec{
		Filters: []mstore.Filter{f},
		Limit:   1000,
	})
}

// Current returns the messageCid presently winning protocol's configuration
// collision, for callers (the pipeline dispatcher) that need to know
// whether a just-submitted Configure won or lost the
// largest-messageCid rule in order to shape a 202 vs 409 reply.
func (h *Handler) Current(ctx context.Context, tenant, protocol string) (string, bool, error) {
	return h.currentFor(ctx, tenant, protocol)
}

// Lookup resolves the current protocolauth.Definition for protocol,
// matching records.ProtocolLookup's signature so records.Handler can run
// protocolauth.Evaluate without importing this package's wire format.
func (h *Handler) Lookup(ctx context.Context, tenant, protocol string) (*protocolauth.Definition, bool, error) {
	cid, ok, err := h.currentFor(ctx, tenant, protocol)
	if err != nil || !ok {
		return nil, false, err
	}
	msg, found, err := h.store.Get(ctx, tenant, cid)
	if err != nil || !found {
		return nil, false, err
	}
	return decodeDefinition(msg.Descriptor), true, nil
}
