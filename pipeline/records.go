package pipeline

import (
	"context"

	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/dwnerr"
)

func (d *Dispatcher) dispatchRecords(ctx context.Context, req Request) dwn.Reply {
	switch req.Method {
	case dwn.MethodWrite:
		return d.recordsWrite(ctx, req)
	case dwn.MethodDelete:
		return d.recordsDelete(ctx, req)
	case dwn.MethodQuery:
		return d.recordsQuery(ctx, req)
	case dwn.MethodRead:
		return d.recordsRead(ctx, req)
	case dwn.MethodSubscribe:
		return d.recordsSubscribe(req)
	default:
		return errorReply(dwnerr.Wrapf(dwnerr.KindUnimplemented, "UnknownRecordsMethod", "pipeline: unknown Records method %q", req.Method))
	}
}

func (d *Dispatcher) recordsWrite(ctx context.Context, req Request) dwn.Reply {
	authorDID, err := d.requireAuth(ctx, req)
	if err != nil {
		return errorReply(err)
	}
	messageCID, err := dwn.MessageCID(*req.Message)
	if err != nil {
		return errorReply(dwnerr.New(dwnerr.KindInternal, "ComputeMessageCid", err))
	}
	data, err := bufferData(req.Data)
	if err != nil {
		return errorReply(err)
	}

	recordID := req.Message.Descriptor.RecordID()
	unlock := d.locks.Lock(req.Tenant, recordID)
	defer unlock()

	if err := d.records.Write(ctx, req.Tenant, messageCID.String(), *req.Message, authorDID, data); err != nil {
		return errorReply(err)
	}
	return dwn.Reply{Status: dwn.Status{Code: 202}, Entries: []any{messageCID.String()}}
}

func (d *Dispatcher) recordsDelete(ctx context.Context, req Request) dwn.Reply {
	authorDID, err := d.requireAuth(ctx, req)
	if err != nil {
		return errorReply(err)
	}
	messageCID, err := dwn.MessageCID(*req.Message)
	if err != nil {
		return errorReply(dwnerr.New(dwnerr.KindInternal, "ComputeMessageCid", err))
	}

	recordID := req.Message.Descriptor.RecordID()
	unlock := d.locks.Lock(req.Tenant, recordID)
	defer unlock()

	if err := d.records.Delete(ctx, req.Tenant, messageCID.String(), *req.Message, authorDID); err != nil {
		return errorReply(err)
	}
	return dwn.Reply{Status: dwn.Status{Code: 202}, Entries: []any{messageCID.String()}}
}

func (d *Dispatcher) recordsQuery(ctx context.Context, req Request) dwn.Reply {
	requesterDID, err := d.authenticate(ctx, req)
	if err != nil {
		return errorReply(err)
	}
	res, err := d.records.Query(ctx, req.Tenant, requesterDID, recordsQueryRequest(req))
	if err != nil {
		return errorReply(err)
	}
	entries := make([]any, len(res.MessageCIDs))
	for i, cid := range res.MessageCIDs {
		entries[i] = cid
	}
	return dwn.Reply{Status: dwn.Status{Code: 200}, Entries: entries, Cursor: res.NextCursor}
}

func (d *Dispatcher) recordsRead(ctx context.Context, req Request) dwn.Reply {
	requesterDID, err := d.authenticate(ctx, req)
	if err != nil {
		return errorReply(err)
	}
	msg, data, err := d.records.Read(ctx, req.Tenant, requesterDID, req.RecordID, req.ProtocolRole)
	if err != nil {
		return errorReply(err)
	}
	return dwn.Reply{Status: dwn.Status{Code: 200}, Entries: []any{*msg}, Data: data}
}

func (d *Dispatcher) recordsSubscribe(req Request) dwn.Reply {
	sub := d.records.Subscribe(req.Tenant)
	return dwn.Reply{Status: dwn.Status{Code: 200}, Subscription: sub}
}
