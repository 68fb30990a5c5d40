package permissions

import (
	"context"

	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/dwnerr"
	"github.com/forestrie/go-dwn/eventlog"
	"github.com/forestrie/go-dwn/mstore"
)

// Handler implements the PermissionsGrant/Request/Revoke operations:
// each is accepted unconditionally (subject
// to authentication, performed upstream by the pipeline dispatcher) and
// stored so Index.Resolve and future queries can find it.
type Handler struct {
	store *mstore.Store
	log   *eventlog.Store
}

// NewHandler builds a Handler over store and log.
func NewHandler(store *mstore.Store, log *eventlog.Store) *Handler {
	return &Handler{store: store, log: log}
}

// Grant accepts a PermissionsGrant message, indexing it by interface,
// method and grantee so Index.grantsFor can find it later.
func (h *Handler) Grant(ctx context.Context, tenant, messageCID string, msg dwn.Message) error {
	return h.accept(ctx, tenant, messageCID, msg, map[string]string{
		"interface": string(dwn.InterfacePermissions),
		"method":    string(dwn.MethodGrant),
		"grantee":   grantee(msg.Descriptor),
	})
}

// Request accepts a PermissionsRequest message (a candidate grant proposed
// by the grantee, awaiting a grantor's corresponding Grant).
func (h *Handler) Request(ctx context.Context, tenant, messageCID string, msg dwn.Message) error {
	return h.accept(ctx, tenant, messageCID, msg, map[string]string{
		"interface": string(dwn.InterfacePermissions),
		"method":    string(dwn.MethodRequest),
		"grantee":   grantee(msg.Descriptor),
	})
}

// Revoke accepts a PermissionsRevoke message referencing the grant it
// revokes by FieldGrantID.
func (h *Handler) Revoke(ctx context.Context, tenant, messageCID string, msg dwn.Message) error {
	grantID, _ := msg.Descriptor[FieldGrantID].(string)
	return h.accept(ctx, tenant, messageCID, msg, map[string]string{
		"interface": string(dwn.InterfacePermissions),
		"method":    string(dwn.MethodRevoke),
		"grantId":   grantID,
	})
}

func grantee(d dwn.Descriptor) string {
	g, _ := d[FieldGrantee].(string)
	return g
}

func (h *Handler) accept(ctx context.Context, tenant, messageCID string, msg dwn.Message, indexed map[string]string) error {
	indexed[dwn.FieldMessageTimestamp] = msg.Descriptor.MessageTimestamp()
	if err := h.store.Put(ctx, tenant, messageCID, msg, indexed); err != nil {
		return err
	}
	if _, err := h.log.Append(ctx, tenant, messageCID, indexed); err != nil {
		return dwnerr.New(dwnerr.KindInternal, "AppendPermissionsEvent", err)
	}
	return nil
}
