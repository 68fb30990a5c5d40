package records

import (
	"context"

	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/dwnerr"
	"github.com/forestrie/go-dwn/permissions"
	"github.com/forestrie/go-dwn/protocolauth"
)

// authorize gates a non-owner operation: either an active permission grant
// or the protocol's action rules must authorize authorDID for method
// against msg. The owner is always authorized and never reaches this
// function.
func (h *Handler) authorize(ctx context.Context, tenant string, msg dwn.Message, authorDID string, method dwn.Method) error {
	cand := permissions.Candidate{
		Interface:        dwn.InterfaceRecords,
		Method:           method,
		Protocol:         msg.Descriptor.Protocol(),
		ContextID:        msg.Descriptor.ContextID(),
		RecordID:         msg.Descriptor.RecordID(),
		AuthorDID:        authorDID,
		MessageTimestamp: msg.Descriptor.MessageTimestamp(),
		Published:        msg.Descriptor.Published(),
	}
	if h.grants != nil {
		if _, err := h.grants.Resolve(ctx, tenant, cand); err == nil {
			return nil
		}
	}

	protocol := msg.Descriptor.Protocol()
	if protocol == "" || h.protocols == nil {
		return classify(ErrUnauthorized)
	}
	def, ok, err := h.protocols(ctx, tenant, protocol)
	if err != nil {
		return err
	}
	if !ok {
		return dwnerr.New(dwnerr.KindUnauthorized, "ProtocolNotConfigured", ErrUnauthorized)
	}

	var invokedRole string
	if msg.Authorization != nil {
		invokedRole = msg.Authorization.Payload.ProtocolRole
	}
	err = protocolauth.Evaluate(ctx, tenant, def, h.ancestry, protocolauth.Request{
		Descriptor:   msg.Descriptor,
		AuthorDID:    authorDID,
		Method:       method,
		ProtocolRole: invokedRole,
	})
	if err != nil {
		return err
	}
	return nil
}
