package messageops

import (
	"errors"

	"github.com/forestrie/go-dwn/dwnerr"
)

var (
	ErrMessageNotFound = errors.New("no message exists for this messageCid")
	ErrGrantRequired   = errors.New("non-owner requester has no grant covering this scope")
)

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrMessageNotFound):
		return dwnerr.New(dwnerr.KindNotFound, "MessageNotFound", err)
	case errors.Is(err, ErrGrantRequired):
		return dwnerr.New(dwnerr.KindUnauthorized, "GrantRequired", err)
	default:
		if _, ok := dwnerr.As(err); ok {
			return err
		}
		return dwnerr.New(dwnerr.KindInternal, "MessageOpsInternal", err)
	}
}
