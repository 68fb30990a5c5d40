package permissions

import (
	"context"

	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/mstore"
)

// Index resolves grants stored in an mstore.Store.
type Index struct {
	store *mstore.Store
}

// NewIndex builds an Index over store.
func NewIndex(store *mstore.Store) *Index {
	return &Index{store: store}
}

// Resolve returns the latest non-revoked, non-expired grant authorizing
// cand, or the named error that best explains why none matched.
func (idx *Index) Resolve(ctx context.Context, tenant string, cand Candidate) (*Grant, error) {
	grants, err := idx.grantsFor(ctx, tenant, cand.AuthorDID)
	if err != nil {
		return nil, err
	}
	if len(grants) == 0 {
		return nil, classify(ErrGrantMissing)
	}

	var sawRevoked, sawExpired bool
	var lastScopeErr error

	for _, g := range grants {
		revoked, err := idx.isRevoked(ctx, tenant, g.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			sawRevoked = true
			continue
		}
		if g.DateExpires != "" && g.DateExpires <= cand.MessageTimestamp {
			sawExpired = true
			continue
		}

		if g.Scope.Interface != cand.Interface {
			lastScopeErr = ErrGrantInterfaceMismatch
			continue
		}
		if g.Scope.Method != cand.Method {
			lastScopeErr = ErrGrantMethodMismatch
			continue
		}
		if g.Scope.Protocol != "" && g.Scope.Protocol != cand.Protocol {
			lastScopeErr = ErrGrantProtocolMismatch
			continue
		}
		if g.Scope.ContextID != "" && g.Scope.ContextID != cand.ContextID {
			lastScopeErr = ErrGrantMissing
			continue
		}
		if g.Scope.RecordID != "" && g.Scope.RecordID != cand.RecordID {
			lastScopeErr = ErrGrantMissing
			continue
		}
		if g.Conditions.Published && !cand.Published {
			lastScopeErr = ErrGrantConditionUnsatisfied
			continue
		}

		grant := g
		return &grant, nil
	}

	switch {
	case lastScopeErr != nil:
		return nil, classify(lastScopeErr)
	case sawRevoked && !sawExpired:
		return nil, classify(ErrGrantRevoked)
	case sawExpired:
		return nil, classify(ErrGrantExpired)
	default:
		return nil, classify(ErrGrantMissing)
	}
}

// grantsFor returns every PermissionsGrant message addressed to grantee,
// newest messageTimestamp first.
func (idx *Index) grantsFor(ctx context.Context, tenant, grantee string) ([]Grant, error) {
	res, err := idx.store.Query(ctx, tenant, mstore.QuerySpec{
		Filters: []mstore.Filter{{
			"interface": {Equals: string(dwn.InterfacePermissions)},
			"method":    {Equals: string(dwn.MethodGrant)},
			"grantee":   {Equals: grantee},
		}},
		Sort:      dwn.FieldMessageTimestamp,
		Direction: mstore.Descending,
		Limit:     1000,
	})
	if err != nil {
		return nil, classify(err)
	}

	grants := make([]Grant, 0, len(res.MessageCIDs))
	for _, cid := range res.MessageCIDs {
		msg, ok, err := idx.store.Get(ctx, tenant, cid)
		if err != nil {
			return nil, classify(err)
		}
		if !ok {
			continue
		}
		grants = append(grants, grantFromMessage(cid, *msg))
	}
	return grants, nil
}

func (idx *Index) isRevoked(ctx context.Context, tenant, grantID string) (bool, error) {
	res, err := idx.store.Query(ctx, tenant, mstore.QuerySpec{
		Filters: []mstore.Filter{{
			"interface": {Equals: string(dwn.InterfacePermissions)},
			"method":    {Equals: string(dwn.MethodRevoke)},
			"grantId":   {Equals: grantID},
		}},
		Limit: 1,
	})
	if err != nil {
		return false, classify(err)
	}
	return len(res.MessageCIDs) > 0, nil
}
