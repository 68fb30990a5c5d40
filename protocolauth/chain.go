package protocolauth

import (
	"context"

	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/mstore"
)

// Ancestor is one link in a record's parentId chain: enough of a stored
// message to validate schema/dataFormat at its rule node and to answer
// "who is the author/recipient of this ancestor" for ActionRule matching.
type Ancestor struct {
	MessageCID   string
	RecordID     string
	ProtocolPath string
	Schema       string
	DataFormat   string
	Author       string
	Recipient    string
	ParentID     string
}

// AncestryResolver looks up a record by the recordId its descendants name in
// FieldParentID. Implemented over mstore rather than kept as an in-memory
// pointer graph.
type AncestryResolver interface {
	ResolveRecord(ctx context.Context, tenant, recordID string) (Ancestor, error)
	// HasRole reports whether did is the recipient of a non-revoked role
	// record published at protocolPath rolePath. A non-empty contextID
	// restricts the lookup to context-scoped role records whose contextId
	// matches.
	HasRole(ctx context.Context, tenant, rolePath, contextID, did string) (bool, error)
}

// storeResolver is the mstore-backed AncestryResolver used in production;
// records.Handler indexes every write under FieldRecordID,
// isLatestBaseState and "author", so ResolveRecord can find a record's
// current state by recordId and recover its author.
type storeResolver struct {
	store *mstore.Store
}

// NewAncestryResolver builds an AncestryResolver over store.
func NewAncestryResolver(store *mstore.Store) AncestryResolver {
	return &storeResolver{store: store}
}

// attrIsLatestBaseState mirrors records.AttrIsLatestBaseState's string
// value. protocolauth cannot import records to share the constant directly:
// records imports protocolauth to run protocol rule evaluation for
// non-owner writes, so the reverse import would cycle. The same duplication
// already exists in ResolveRecord below for the "author" attribute.
const attrIsLatestBaseState = "isLatestBaseState"

func (r *storeResolver) ResolveRecord(ctx context.Context, tenant, recordID string) (Ancestor, error) {
	res, err := r.store.Query(ctx, tenant, mstore.QuerySpec{
		Filters: []mstore.Filter{{
			dwn.FieldRecordID:     {Equals: recordID},
			attrIsLatestBaseState: {Equals: "true"},
		}},
		Limit: 2,
	})
	if err != nil {
		return Ancestor{}, err
	}
	if len(res.MessageCIDs) == 0 {
		return Ancestor{}, ErrParentNotFound
	}
	if len(res.MessageCIDs) > 1 {
		return Ancestor{}, ErrParentNotUnique
	}
	messageCID := res.MessageCIDs[0]

	msg, ok, err := r.store.Get(ctx, tenant, messageCID)
	if err != nil {
		return Ancestor{}, err
	}
	if !ok {
		return Ancestor{}, ErrParentNotFound
	}

	author, _, err := r.store.Attr(ctx, tenant, messageCID, "author")
	if err != nil {
		return Ancestor{}, err
	}

	parentID, _ := msg.Descriptor.ParentID()
	return Ancestor{
		MessageCID:   messageCID,
		RecordID:     recordID,
		ProtocolPath: msg.Descriptor.ProtocolPath(),
		Schema:       msg.Descriptor.Schema(),
		DataFormat:   msg.Descriptor.DataFormat(),
		Author:       author,
		Recipient:    msg.Descriptor.Recipient(),
		ParentID:     parentID,
	}, nil
}

func (r *storeResolver) HasRole(ctx context.Context, tenant, rolePath, contextID, did string) (bool, error) {
	f := mstore.Filter{
		dwn.FieldProtocolPath: {Equals: rolePath},
		dwn.FieldRecipient:    {Equals: did},
		attrIsLatestBaseState: {Equals: "true"},
	}
	if contextID != "" {
		f[dwn.FieldContextID] = mstore.Predicate{Equals: contextID}
	}
	res, err := r.store.Query(ctx, tenant, mstore.QuerySpec{
		Filters: []mstore.Filter{f},
		Limit:   1,
	})
	if err != nil {
		return false, err
	}
	return len(res.MessageCIDs) > 0, nil
}

// BuildChain walks d's parentId chain from resolver, returning ancestors
// ordered root-first (chain[0] is the protocol's top-level record, and
// chain[len-1] is d's immediate parent). A record with no parentId has an
// empty chain.
func BuildChain(ctx context.Context, tenant string, resolver AncestryResolver, d dwn.Descriptor) ([]Ancestor, error) {
	var reversed []Ancestor

	parentID, ok := d.ParentID()
	for ok && parentID != "" {
		anc, err := resolver.ResolveRecord(ctx, tenant, parentID)
		if err != nil {
			return nil, classify(err)
		}
		reversed = append(reversed, anc)
		parentID = anc.ParentID
		ok = parentID != ""
	}

	chain := make([]Ancestor, len(reversed))
	for i, anc := range reversed {
		chain[len(reversed)-1-i] = anc
	}
	return chain, nil
}
