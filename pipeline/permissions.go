package pipeline

import (
	"context"

	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/dwnerr"
)

func (d *Dispatcher) dispatchPermissions(ctx context.Context, req Request) dwn.Reply {
	switch req.Method {
	case dwn.MethodGrant:
		return d.permissionsAccept(ctx, req, d.permissions.Grant)
	case dwn.MethodRequest:
		return d.permissionsAccept(ctx, req, d.permissions.Request)
	case dwn.MethodRevoke:
		return d.permissionsAccept(ctx, req, d.permissions.Revoke)
	default:
		return errorReply(dwnerr.Wrapf(dwnerr.KindUnimplemented, "UnknownPermissionsMethod", "pipeline: unknown Permissions method %q", req.Method))
	}
}

type permissionsAccepter func(ctx context.Context, tenant, messageCID string, msg dwn.Message) error

// permissionsAccept runs the common authenticate-compute-cid-store sequence
// shared by Grant/Request/Revoke, which differ only in which permissions.Handler
// method stores the message and how it is indexed.
func (d *Dispatcher) permissionsAccept(ctx context.Context, req Request, accept permissionsAccepter) dwn.Reply {
	_, err := d.requireAuth(ctx, req)
	if err != nil {
		return errorReply(err)
	}
	messageCID, err := dwn.MessageCID(*req.Message)
	if err != nil {
		return errorReply(dwnerr.New(dwnerr.KindInternal, "ComputeMessageCid", err))
	}
	if err := accept(ctx, req.Tenant, messageCID.String(), *req.Message); err != nil {
		return errorReply(err)
	}
	return dwn.Reply{Status: dwn.Status{Code: 202}, Entries: []any{messageCID.String()}}
}
