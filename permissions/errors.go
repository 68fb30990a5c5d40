package permissions

import (
	"fmt"

	"github.com/forestrie/go-dwn/dwnerr"
)

// Named grant-resolution failure modes.
var (
	ErrGrantMissing              = fmt.Errorf("permissions: no active grant covers this scope")
	ErrGrantExpired              = fmt.Errorf("permissions: grant has expired")
	ErrGrantRevoked              = fmt.Errorf("permissions: grant has been revoked")
	ErrGrantInterfaceMismatch    = fmt.Errorf("permissions: grant interface does not match candidate")
	ErrGrantMethodMismatch       = fmt.Errorf("permissions: grant method does not match candidate")
	ErrGrantProtocolMismatch     = fmt.Errorf("permissions: grant protocol does not match candidate")
	ErrGrantConditionUnsatisfied = fmt.Errorf("permissions: candidate does not satisfy grant conditions")
)

func classify(err error) error {
	switch err {
	case ErrGrantMissing:
		return dwnerr.New(dwnerr.KindUnauthorized, "GrantMissing", err)
	case ErrGrantExpired:
		return dwnerr.New(dwnerr.KindUnauthorized, "GrantExpired", err)
	case ErrGrantRevoked:
		return dwnerr.New(dwnerr.KindUnauthorized, "GrantRevoked", err)
	case ErrGrantInterfaceMismatch:
		return dwnerr.New(dwnerr.KindUnauthorized, "GrantInterfaceMismatch", err)
	case ErrGrantMethodMismatch:
		return dwnerr.New(dwnerr.KindUnauthorized, "GrantMethodMismatch", err)
	case ErrGrantProtocolMismatch:
		return dwnerr.New(dwnerr.KindUnauthorized, "GrantProtocolMismatch", err)
	case ErrGrantConditionUnsatisfied:
		return dwnerr.New(dwnerr.KindUnauthorized, "GrantConditionUnsatisfied", err)
	default:
		return dwnerr.New(dwnerr.KindInternal, "PermissionsInternal", err)
	}
}
