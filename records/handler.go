package records

import (
	"context"

	"github.com/forestrie/go-dwn/dstore"
	"github.com/forestrie/go-dwn/eventlog"
	"github.com/forestrie/go-dwn/mstore"
	"github.com/forestrie/go-dwn/permissions"
	"github.com/forestrie/go-dwn/protocolauth"
)

// ProtocolLookup resolves a tenant's current configuration for protocol.
// Records depends on it only to run
// protocolauth.Evaluate for non-owner writes, deletes and read visibility;
// it never configures protocols itself.
type ProtocolLookup func(ctx context.Context, tenant, protocol string) (*protocolauth.Definition, bool, error)

// Handler implements the RecordsWrite/Query/Read/Delete/Subscribe
// operations.
type Handler struct {
	store     *mstore.Store
	data      *dstore.Store
	log       *eventlog.Store
	grants    *permissions.Index
	protocols ProtocolLookup
	ancestry  protocolauth.AncestryResolver
}

// NewHandler builds a Handler over its component dependencies. ancestry is
// typically protocolauth.NewAncestryResolver(store).
func NewHandler(store *mstore.Store, data *dstore.Store, log *eventlog.Store, grants *permissions.Index, protocols ProtocolLookup, ancestry protocolauth.AncestryResolver) *Handler {
	return &Handler{
		store:     store,
		data:      data,
		log:       log,
		grants:    grants,
		protocols: protocols,
		ancestry:  ancestry,
	}
}

// reindex rewrites messageCid's index rows to indexed, first deleting the
// stale rows a prior Put left behind. mstore.Store.Put never removes an
// index row whose value has changed since the last Put for the same
// messageCid, so demoting a record version's isLatestBaseState (or any
// other attribute) requires the Delete+Put pair. The message block itself
// is content-addressed and deterministic, so re-Put after Delete never
// rewrites different bytes.
func (h *Handler) reindex(ctx context.Context, tenant, messageCID string, state RecordState, indexed map[string]string) error {
	if err := h.store.Delete(ctx, tenant, messageCID); err != nil {
		return err
	}
	return h.store.Put(ctx, tenant, messageCID, state.Message, indexed)
}

func (h *Handler) latest(ctx context.Context, tenant, recordID string) (*RecordState, error) {
	res, err := h.store.Query(ctx, tenant, mstore.QuerySpec{
		Filters: []mstore.Filter{{
			AttrInterface:         {Equals: "Records"},
			"recordId":            {Equals: recordID},
			AttrIsLatestBaseState: {Equals: trueValue},
		}},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(res.MessageCIDs) == 0 {
		return nil, nil
	}
	return h.stateOf(ctx, tenant, res.MessageCIDs[0])
}

func (h *Handler) stateOf(ctx context.Context, tenant, messageCID string) (*RecordState, error) {
	msg, ok, err := h.store.Get(ctx, tenant, messageCID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	author, _, err := h.store.Attr(ctx, tenant, messageCID, AttrAuthor)
	if err != nil {
		return nil, err
	}
	isLatest, _, err := h.store.Attr(ctx, tenant, messageCID, AttrIsLatestBaseState)
	if err != nil {
		return nil, err
	}
	initialCID, _, err := h.store.Attr(ctx, tenant, messageCID, AttrInitialMessageCID)
	if err != nil {
		return nil, err
	}
	if initialCID == "" {
		initialCID = messageCID
	}
	return &RecordState{
		MessageCID:        messageCID,
		Message:           *msg,
		Author:            author,
		IsLatestBaseState: isLatest == trueValue,
		InitialMessageCID: initialCID,
	}, nil
}
