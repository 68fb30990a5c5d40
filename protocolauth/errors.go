package protocolauth

import (
	"errors"

	"github.com/forestrie/go-dwn/dwnerr"
)

// Sentinel rule-evaluation failure modes, classified by classify into the
// dwnerr.Kind the pipeline dispatcher shapes a reply from.
var (
	ErrProtocolNotFound   = errors.New("protocol definition not found")
	ErrRuleNotFound       = errors.New("no rule node matches protocolPath")
	ErrParentNotFound     = errors.New("parentId does not reference a stored record")
	ErrParentNotUnique    = errors.New("record must have exactly one parent reference")
	ErrSchemaMismatch     = errors.New("schema does not match the rule node")
	ErrDataFormatMismatch = errors.New("dataFormat does not match the rule node")
	ErrRoleRequired       = errors.New("author does not hold the required role")
	ErrActionNotAllowed   = errors.New("no action rule grants this method to this actor")
)

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrProtocolNotFound):
		return dwnerr.New(dwnerr.KindNotFound, "ProtocolNotFound", err)
	case errors.Is(err, ErrRuleNotFound):
		return dwnerr.New(dwnerr.KindInvalid, "RuleNotFound", err)
	case errors.Is(err, ErrParentNotFound):
		return dwnerr.New(dwnerr.KindInvalid, "ParentNotFound", err)
	case errors.Is(err, ErrParentNotUnique):
		return dwnerr.New(dwnerr.KindInvalid, "ParentNotUnique", err)
	case errors.Is(err, ErrSchemaMismatch):
		return dwnerr.New(dwnerr.KindInvalid, "SchemaMismatch", err)
	case errors.Is(err, ErrDataFormatMismatch):
		return dwnerr.New(dwnerr.KindInvalid, "DataFormatMismatch", err)
	case errors.Is(err, ErrRoleRequired):
		return dwnerr.New(dwnerr.KindUnauthorized, "RoleRequired", err)
	case errors.Is(err, ErrActionNotAllowed):
		return dwnerr.New(dwnerr.KindUnauthorized, "ActionNotAllowed", err)
	default:
		if _, ok := dwnerr.As(err); ok {
			return err
		}
		return dwnerr.New(dwnerr.KindInternal, "ProtocolAuthInternal", err)
	}
}
