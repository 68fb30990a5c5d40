package records

import (
	"errors"

	"github.com/forestrie/go-dwn/dwnerr"
)

var (
	ErrMissingRecordID    = errors.New("descriptor is missing recordId")
	ErrNotInitialWrite    = errors.New("no prior write exists and recordId does not equal entryId(descriptor, author)")
	ErrParentNotFound     = errors.New("parentId does not reference an existing record in this tenant")
	ErrImmutableMismatch  = errors.New("write changes an immutable property of the record")
	ErrNotNewer           = errors.New("write is not newer than the current latest write")
	ErrRecordNotFound     = errors.New("no record exists for this recordId")
	ErrDataCIDMismatch    = errors.New("streamed data does not hash to the descriptor's dataCid")
	ErrDataMissing        = errors.New("descriptor names a dataCid but no data was provided or previously stored")
	ErrUnauthorized       = errors.New("author is not authorized for this operation")
)

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrMissingRecordID), errors.Is(err, ErrNotInitialWrite),
		errors.Is(err, ErrParentNotFound), errors.Is(err, ErrImmutableMismatch),
		errors.Is(err, ErrDataCIDMismatch), errors.Is(err, ErrDataMissing):
		return dwnerr.New(dwnerr.KindInvalid, errCode(err), err)
	case errors.Is(err, ErrNotNewer):
		return dwnerr.New(dwnerr.KindConflict, "Conflict", err)
	case errors.Is(err, ErrRecordNotFound):
		return dwnerr.New(dwnerr.KindNotFound, "RecordNotFound", err)
	case errors.Is(err, ErrUnauthorized):
		return dwnerr.New(dwnerr.KindUnauthorized, "Unauthorized", err)
	default:
		if _, ok := dwnerr.As(err); ok {
			return err
		}
		return dwnerr.New(dwnerr.KindInternal, "RecordsInternal", err)
	}
}

func errCode(err error) string {
	switch {
	case errors.Is(err, ErrMissingRecordID):
		return "MissingRecordId"
	case errors.Is(err, ErrNotInitialWrite):
		return "NotInitialWrite"
	case errors.Is(err, ErrParentNotFound):
		return "ParentNotFound"
	case errors.Is(err, ErrImmutableMismatch):
		return "ImmutableMismatch"
	case errors.Is(err, ErrDataCIDMismatch):
		return "DataCidMismatch"
	case errors.Is(err, ErrDataMissing):
		return "DataMissing"
	default:
		return "Invalid"
	}
}
