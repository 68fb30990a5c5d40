package pipeline

import (
	"context"

	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/dwnerr"
	"github.com/forestrie/go-dwn/eventlog"
)

func (d *Dispatcher) dispatchMessages(ctx context.Context, req Request) dwn.Reply {
	switch req.Method {
	case dwn.MethodGet:
		return d.messagesGet(ctx, req)
	case dwn.MethodQuery:
		return d.messagesQuery(ctx, req)
	case dwn.MethodSubscribe:
		return d.messagesSubscribe(ctx, req)
	default:
		return errorReply(dwnerr.Wrapf(dwnerr.KindUnimplemented, "UnknownMessagesMethod", "pipeline: unknown Messages method %q", req.Method))
	}
}

func (d *Dispatcher) dispatchEvents(ctx context.Context, req Request) dwn.Reply {
	switch req.Method {
	case dwn.MethodGet:
		return d.eventsGet(ctx, req)
	case dwn.MethodSubscribe:
		return d.eventsSubscribe(ctx, req)
	default:
		return errorReply(dwnerr.Wrapf(dwnerr.KindUnimplemented, "UnknownEventsMethod", "pipeline: unknown Events method %q", req.Method))
	}
}

func (d *Dispatcher) messagesGet(ctx context.Context, req Request) dwn.Reply {
	requesterDID, err := d.authenticate(ctx, req)
	if err != nil {
		return errorReply(err)
	}
	msg, err := d.messageops.MessagesGet(ctx, req.Tenant, requesterDID, req.MessageCID)
	if err != nil {
		return errorReply(err)
	}
	return dwn.Reply{Status: dwn.Status{Code: 200}, Entries: []any{*msg}}
}

func (d *Dispatcher) messagesQuery(ctx context.Context, req Request) dwn.Reply {
	requesterDID, err := d.authenticate(ctx, req)
	if err != nil {
		return errorReply(err)
	}
	res, err := d.messageops.MessagesQuery(ctx, req.Tenant, requesterDID, req.Filters, req.Cursor, req.Limit)
	if err != nil {
		return errorReply(err)
	}
	return queryReply(res)
}

func (d *Dispatcher) messagesSubscribe(ctx context.Context, req Request) dwn.Reply {
	requesterDID, err := d.authenticate(ctx, req)
	if err != nil {
		return errorReply(err)
	}
	sub, err := d.messageops.MessagesSubscribe(ctx, req.Tenant, requesterDID)
	if err != nil {
		return errorReply(err)
	}
	return dwn.Reply{Status: dwn.Status{Code: 200}, Subscription: sub}
}

func (d *Dispatcher) eventsGet(ctx context.Context, req Request) dwn.Reply {
	requesterDID, err := d.authenticate(ctx, req)
	if err != nil {
		return errorReply(err)
	}
	res, err := d.messageops.EventsGet(ctx, req.Tenant, requesterDID, req.Filters, req.Cursor, req.Limit)
	if err != nil {
		return errorReply(err)
	}
	return queryReply(res)
}

func (d *Dispatcher) eventsSubscribe(ctx context.Context, req Request) dwn.Reply {
	requesterDID, err := d.authenticate(ctx, req)
	if err != nil {
		return errorReply(err)
	}
	sub, err := d.messageops.EventsSubscribe(ctx, req.Tenant, requesterDID)
	if err != nil {
		return errorReply(err)
	}
	return dwn.Reply{Status: dwn.Status{Code: 200}, Subscription: sub}
}

func queryReply(res eventlog.QueryResult) dwn.Reply {
	entries := make([]any, len(res.MessageCIDs))
	for i, cid := range res.MessageCIDs {
		entries[i] = cid
	}
	return dwn.Reply{Status: dwn.Status{Code: 200}, Entries: entries, Cursor: res.NextCursor}
}
