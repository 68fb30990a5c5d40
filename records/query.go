package records

import (
	"context"

	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/mstore"
	"github.com/forestrie/go-dwn/permissions"
	"github.com/forestrie/go-dwn/protocolauth"
)

// DateSort selects RecordsQuery's result ordering.
type DateSort int

const (
	SortMessageTimestamp DateSort = iota
	SortCreatedAscending
	SortCreatedDescending
	SortPublishedAscending
	SortPublishedDescending
)

func (s DateSort) mstoreSort() (string, mstore.SortDirection) {
	switch s {
	case SortCreatedAscending:
		return dwn.FieldDateCreated, mstore.Ascending
	case SortCreatedDescending:
		return dwn.FieldDateCreated, mstore.Descending
	case SortPublishedAscending:
		return dwn.FieldDatePublished, mstore.Ascending
	case SortPublishedDescending:
		return dwn.FieldDatePublished, mstore.Descending
	default:
		return dwn.FieldMessageTimestamp, mstore.Descending
	}
}

func (s DateSort) requiresPublished() bool {
	return s == SortPublishedAscending || s == SortPublishedDescending
}

// QueryRequest is a RecordsQuery/RecordsRead request. Filters is the
// caller's disjunction-of-conjunctions (already validated by
// validator.ValidateFilter upstream), intersected here with the mandatory
// isLatestBaseState/interface/method constraint.
type QueryRequest struct {
	Filters []mstore.Filter
	Sort    DateSort
	Cursor  string
	Limit   int
	// ProtocolRole is the role the requester invoked for this query, used
	// when protocol action rules decide a candidate's visibility.
	ProtocolRole string
}

func allVersionsSpec(recordID string) mstore.QuerySpec {
	return mstore.QuerySpec{
		Filters: []mstore.Filter{{
			dwn.FieldRecordID: {Equals: recordID},
		}},
		Limit: 10000,
	}
}

func mandatoryFilter(f mstore.Filter, requirePublished bool) mstore.Filter {
	out := make(mstore.Filter, len(f)+4)
	for k, v := range f {
		out[k] = v
	}
	out[AttrInterface] = mstore.Predicate{Equals: "Records"}
	out[AttrMethod] = mstore.Predicate{Equals: string(dwn.MethodWrite)}
	out[AttrIsLatestBaseState] = mstore.Predicate{Equals: trueValue}
	if requirePublished {
		out[dwn.FieldPublished] = mstore.Predicate{Equals: trueValue}
	}
	return out
}

// Query implements RecordsQuery. requesterDID is "" for an unauthenticated
// request.
func (h *Handler) Query(ctx context.Context, tenant, requesterDID string, req QueryRequest) (mstore.QueryResult, error) {
	filters := req.Filters
	if len(filters) == 0 {
		filters = []mstore.Filter{{}}
	}
	requirePublished := req.Sort.requiresPublished()
	mandated := make([]mstore.Filter, len(filters))
	for i, f := range filters {
		mandated[i] = mandatoryFilter(f, requirePublished)
	}

	sortAttr, direction := req.Sort.mstoreSort()
	res, err := h.store.Query(ctx, tenant, mstore.QuerySpec{
		Filters:   mandated,
		Sort:      sortAttr,
		Direction: direction,
		Cursor:    req.Cursor,
		Limit:     req.Limit,
	})
	if err != nil {
		return mstore.QueryResult{}, err
	}

	if requesterDID == tenant {
		return res, nil
	}

	visible := make([]string, 0, len(res.MessageCIDs))
	for _, cid := range res.MessageCIDs {
		ok, err := h.visibleToNonOwner(ctx, tenant, cid, requesterDID, req.ProtocolRole)
		if err != nil {
			return mstore.QueryResult{}, err
		}
		if ok {
			visible = append(visible, cid)
		}
	}
	res.MessageCIDs = visible
	return res, nil
}

// visibleToNonOwner implements the non-owner visibility union:
// published, or addressed to the requester, or authored by the requester,
// or permitted by an active grant, or permitted by the record's protocol
// role/action rules — each evaluated against this one candidate, not
// expressed as an index-level predicate.
func (h *Handler) visibleToNonOwner(ctx context.Context, tenant, messageCID, requesterDID, protocolRole string) (bool, error) {
	msg, ok, err := h.store.Get(ctx, tenant, messageCID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	d := msg.Descriptor
	if d.Published() {
		return true, nil
	}
	if requesterDID == "" {
		return false, nil
	}
	if d.Recipient() == requesterDID {
		return true, nil
	}
	author, _, err := h.store.Attr(ctx, tenant, messageCID, AttrAuthor)
	if err != nil {
		return false, err
	}
	if author == requesterDID {
		return true, nil
	}

	if h.grants != nil {
		cand := permissions.Candidate{
			Interface:        dwn.InterfaceRecords,
			Method:           dwn.MethodRead,
			Protocol:         d.Protocol(),
			ContextID:        d.ContextID(),
			RecordID:         d.RecordID(),
			AuthorDID:        requesterDID,
			MessageTimestamp: d.MessageTimestamp(),
			Published:        d.Published(),
		}
		if _, err := h.grants.Resolve(ctx, tenant, cand); err == nil {
			return true, nil
		}
	}

	protocol := d.Protocol()
	if protocol != "" && h.protocols != nil {
		def, ok, err := h.protocols(ctx, tenant, protocol)
		if err != nil {
			return false, err
		}
		if ok {
			err := protocolauth.Evaluate(ctx, tenant, def, h.ancestry, protocolauth.Request{
				Descriptor:   d,
				AuthorDID:    requesterDID,
				Method:       dwn.MethodRead,
				ProtocolRole: protocolRole,
			})
			if err == nil {
				return true, nil
			}
		}
	}
	return false, nil
}
