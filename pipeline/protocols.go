package pipeline

import (
	"context"

	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/dwnerr"
)

func (d *Dispatcher) dispatchProtocols(ctx context.Context, req Request) dwn.Reply {
	switch req.Method {
	case dwn.MethodConfigure:
		return d.protocolsConfigure(ctx, req)
	case dwn.MethodQuery:
		return d.protocolsQuery(ctx, req)
	default:
		return errorReply(dwnerr.Wrapf(dwnerr.KindUnimplemented, "UnknownProtocolsMethod", "pipeline: unknown Protocols method %q", req.Method))
	}
}

// protocolsConfigure implements ProtocolsConfigure's reply shaping: 202
// when the submitted configuration becomes current, 409 when it loses the
// largest-messageCid collision, the same way records.Handler's ErrNotNewer
// maps to a 409 Conflict reply for a losing RecordsWrite.
func (d *Dispatcher) protocolsConfigure(ctx context.Context, req Request) dwn.Reply {
	authorDID, err := d.requireAuth(ctx, req)
	if err != nil {
		return errorReply(err)
	}
	if authorDID != req.Tenant {
		return errorReply(dwnerr.New(dwnerr.KindUnauthorized, "NotTenantOwner", errProtocolsConfigureNotOwner))
	}
	messageCID, err := dwn.MessageCID(*req.Message)
	if err != nil {
		return errorReply(dwnerr.New(dwnerr.KindInternal, "ComputeMessageCid", err))
	}
	protocol := req.Message.Descriptor.Protocol()

	unlock := d.locks.Lock(req.Tenant, protocol)
	defer unlock()

	if err := d.protocols.Configure(ctx, req.Tenant, messageCID.String(), *req.Message); err != nil {
		return errorReply(err)
	}

	currentCID, ok, err := d.protocols.Current(ctx, req.Tenant, protocol)
	if err != nil {
		return errorReply(dwnerr.New(dwnerr.KindInternal, "ProtocolsCurrentLookup", err))
	}
	if !ok || currentCID != messageCID.String() {
		return errorReply(dwnerr.New(dwnerr.KindConflict, "Conflict", errProtocolsConfigureSuperseded))
	}
	return dwn.Reply{Status: dwn.Status{Code: 202}, Entries: []any{messageCID.String()}}
}

func (d *Dispatcher) protocolsQuery(ctx context.Context, req Request) dwn.Reply {
	requesterDID, err := d.authenticate(ctx, req)
	if err != nil {
		return errorReply(err)
	}
	anonymous := requesterDID != req.Tenant
	res, err := d.protocols.Query(ctx, req.Tenant, req.Protocol, anonymous)
	if err != nil {
		return errorReply(err)
	}
	entries := make([]any, len(res.MessageCIDs))
	for i, cid := range res.MessageCIDs {
		entries[i] = cid
	}
	return dwn.Reply{Status: dwn.Status{Code: 200}, Entries: entries, Cursor: res.NextCursor}
}
