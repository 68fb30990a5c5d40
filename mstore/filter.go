package mstore

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/forestrie/go-dwn/dwnerr"
)

// Predicate is one attribute's test within a Filter. Exactly one of Equals,
// OneOf or Range should be set.
type Predicate struct {
	Equals string
	OneOf  []string
	Range  *RangePredicate
}

// RangePredicate bounds an attribute value; From is inclusive, To is
// exclusive. Either bound may be empty to mean unbounded
// in that direction.
type RangePredicate struct {
	From string
	To   string
}

// Filter is one conjunction: every attribute's predicate must match
// (logical AND). An empty Filter is invalid.
type Filter map[string]Predicate

// SortDirection orders a Query's results.
type SortDirection int

const (
	Ascending SortDirection = iota
	Descending
)

// QuerySpec describes one query(tenant, filters, sort, pagination) call.
// Filters is a disjunction: a candidate message matches if it satisfies any
// one Filter in the slice (logical OR across filters, AND within one).
type QuerySpec struct {
	Filters   []Filter
	Sort      string // one of dwn.FieldMessageTimestamp/FieldDateCreated/FieldDatePublished
	Direction SortDirection
	Cursor    string
	Limit     int
}

// Cursor is the opaque (sortValue, messageCid) pagination tuple,
// serialized as a base64url JSON blob so callers need not understand
// its internal shape.
type Cursor struct {
	SortValue  string `json:"v"`
	MessageCID string `json:"c"`
}

// EncodeCursor renders c as its opaque wire string.
func EncodeCursor(c Cursor) string {
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses a cursor string produced by EncodeCursor.
func DecodeCursor(s string) (Cursor, error) {
	var c Cursor
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, dwnerr.Wrapf(dwnerr.KindInvalid, "InvalidCursor", "mstore: decoding cursor: %v", err)
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, dwnerr.Wrapf(dwnerr.KindInvalid, "InvalidCursor", "mstore: unmarshaling cursor: %v", err)
	}
	return c, nil
}

// validateFilters rejects empty filter objects, which would otherwise
// match everything.
func validateFilters(filters []Filter) error {
	for _, f := range filters {
		if len(f) == 0 {
			return dwnerr.New(dwnerr.KindInvalid, "EmptyFilter", fmt.Errorf("mstore: filter objects must not be empty"))
		}
	}
	return nil
}
