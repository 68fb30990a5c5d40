// Package mstore implements the content-addressed message block store and
// its tenant-scoped multi-attribute secondary index. It is built on the
// kv.Store embedded key-value collaborator, with tenant-prefixed keys and
// a Bloom-filter existence prefilter (see prefilter.go) in front of block
// lookups.
package mstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/forestrie/go-dwn/cidcbor"
	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/dwnerr"
	"github.com/forestrie/go-dwn/kv"
)

// DefaultQueryLimit bounds a Query call when QuerySpec.Limit is unset.
const DefaultQueryLimit = 50

// NormalizeAttrValue renders an indexable attribute value in its ordered
// string form: booleans become the literal strings
// "true"/"false", everything else uses its natural string form. Callers use
// this for both the indexed map passed to Put and any equality/range
// predicate built for Query, so the two paths never drift apart.
func NormalizeAttrValue(v any) string {
	switch t := v.(type) {
	case bool:
		if t {
			return "true"
		}
		return "false"
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case uint64:
		return strconv.FormatUint(t, 10)
	default:
		return fmt.Sprintf("%v", t)
	}
}

type storedMessage struct {
	Descriptor    dwn.Descriptor
	Authorization *dwn.Authorization
	EncodedData   []byte
}

// Store is the block store and secondary index for one backing kv.Store,
// shared across all tenants (tenancy lives in the key prefix).
type Store struct {
	kv kv.Store

	mu         sync.Mutex
	prefilters map[string]*prefilter
}

// New wraps store as an mstore.Store.
func New(store kv.Store) *Store {
	return &Store{kv: store, prefilters: make(map[string]*prefilter)}
}

func (s *Store) prefilterFor(tenant string) *prefilter {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prefilters[tenant]
	if !ok {
		p = newPrefilter(1024)
		s.prefilters[tenant] = p
	}
	return p
}

type indexEntry struct {
	Attr  string `json:"a"`
	Value string `json:"v"`
}

// Put writes message's block if absent, then writes all index rows for
// indexed. indexed[dwn.FieldMessageTimestamp] is required. Idempotent for
// the same (tenant, messageCid): a second Put for a CID already present
// leaves the block and the prefilter as they are and only rewrites the
// index rows.
func (s *Store) Put(ctx context.Context, tenant, messageCID string, msg dwn.Message, indexed map[string]string) error {
	if _, ok := indexed[dwn.FieldMessageTimestamp]; !ok {
		return dwnerr.New(dwnerr.KindInvalid, "MissingMessageTimestampIndex",
			fmt.Errorf("mstore: indexed attributes must include %s", dwn.FieldMessageTimestamp))
	}

	bKey := blockKey(tenant, messageCID)

	present, err := s.exists(ctx, tenant, messageCID, bKey)
	if err != nil {
		return err
	}

	if !present {
		rec := storedMessage{Descriptor: msg.Descriptor, Authorization: msg.Authorization, EncodedData: msg.EncodedData}
		encoded, err := cidcbor.Encode(rec)
		if err != nil {
			return dwnerr.New(dwnerr.KindInternal, "EncodeMessage", err)
		}
		if err := s.kv.Put(ctx, bKey, encoded); err != nil {
			return dwnerr.New(dwnerr.KindInternal, "PutBlock", err)
		}
		s.prefilterFor(tenant).Add(messageCID)
	}

	entries := make([]indexEntry, 0, len(indexed))
	for attr, value := range indexed {
		if err := s.kv.Put(ctx, indexValueKey(tenant, attr, value, messageCID), []byte{}); err != nil {
			return dwnerr.New(dwnerr.KindInternal, "PutIndexRow", err)
		}
		entries = append(entries, indexEntry{Attr: attr, Value: value})
	}

	encodedEntries, err := cidcbor.Encode(entries)
	if err != nil {
		return dwnerr.New(dwnerr.KindInternal, "EncodeIndexEntries", err)
	}
	if err := s.kv.Put(ctx, reverseIndexKey(tenant, messageCID), encodedEntries); err != nil {
		return dwnerr.New(dwnerr.KindInternal, "PutReverseIndex", err)
	}

	return nil
}

func (s *Store) exists(ctx context.Context, tenant, messageCID string, bKey []byte) (bool, error) {
	if !s.prefilterFor(tenant).MaybeContains(messageCID) {
		return false, nil
	}
	_, err := s.kv.Get(ctx, bKey)
	if err == nil {
		return true, nil
	}
	if err == kv.ErrNotFound {
		return false, nil
	}
	return false, dwnerr.New(dwnerr.KindInternal, "CheckBlockExists", err)
}

// Get returns the decoded message for messageCid, or (nil, false, nil) if
// absent.
func (s *Store) Get(ctx context.Context, tenant, messageCID string) (*dwn.Message, bool, error) {
	if !s.prefilterFor(tenant).MaybeContains(messageCID) {
		return nil, false, nil
	}
	data, err := s.kv.Get(ctx, blockKey(tenant, messageCID))
	if err == kv.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, dwnerr.New(dwnerr.KindInternal, "GetBlock", err)
	}
	var rec storedMessage
	if err := cidcbor.Decode(data, &rec); err != nil {
		return nil, false, dwnerr.New(dwnerr.KindInternal, "DecodeMessage", err)
	}
	return &dwn.Message{Descriptor: rec.Descriptor, Authorization: rec.Authorization, EncodedData: rec.EncodedData}, true, nil
}

// Attr returns the value messageCid was indexed under for attr, by
// consulting its reverse-index row, without a full Query. protocolauth uses
// this to recover an ancestor's stored author/recipient attribute when
// walking a record chain.
func (s *Store) Attr(ctx context.Context, tenant, messageCID, attr string) (string, bool, error) {
	data, err := s.kv.Get(ctx, reverseIndexKey(tenant, messageCID))
	if err == kv.ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, dwnerr.New(dwnerr.KindInternal, "GetReverseIndex", err)
	}
	var entries []indexEntry
	if err := cidcbor.Decode(data, &entries); err != nil {
		return "", false, dwnerr.New(dwnerr.KindInternal, "DecodeIndexEntries", err)
	}
	for _, e := range entries {
		if e.Attr == attr {
			return e.Value, true, nil
		}
	}
	return "", false, nil
}

// Delete removes messageCid's index rows and its block.
func (s *Store) Delete(ctx context.Context, tenant, messageCID string) error {
	revKey := reverseIndexKey(tenant, messageCID)
	data, err := s.kv.Get(ctx, revKey)
	if err != nil && err != kv.ErrNotFound {
		return dwnerr.New(dwnerr.KindInternal, "GetReverseIndex", err)
	}
	if err == nil {
		var entries []indexEntry
		if err := cidcbor.Decode(data, &entries); err != nil {
			return dwnerr.New(dwnerr.KindInternal, "DecodeIndexEntries", err)
		}
		for _, e := range entries {
			if err := s.kv.Delete(ctx, indexValueKey(tenant, e.Attr, e.Value, messageCID)); err != nil {
				return dwnerr.New(dwnerr.KindInternal, "DeleteIndexRow", err)
			}
		}
		if err := s.kv.Delete(ctx, revKey); err != nil {
			return dwnerr.New(dwnerr.KindInternal, "DeleteReverseIndex", err)
		}
	}
	if err := s.kv.Delete(ctx, blockKey(tenant, messageCID)); err != nil {
		return dwnerr.New(dwnerr.KindInternal, "DeleteBlock", err)
	}
	return nil
}

// QueryResult is the output of Query: an ordered page of messageCids plus
// pagination state.
type QueryResult struct {
	MessageCIDs []string
	HasMore     bool
	NextCursor  string
}

type sortedEntry struct {
	value string
	cid   string
}

// Query evaluates spec against tenant's index: a disjunction of conjunctive
// filters, sorted by spec.Sort (messageTimestamp/dateCreated/datePublished),
// paginated via an opaque cursor.
func (s *Store) Query(ctx context.Context, tenant string, spec QuerySpec) (QueryResult, error) {
	if err := validateFilters(spec.Filters); err != nil {
		return QueryResult{}, err
	}

	sortAttr := spec.Sort
	if sortAttr == "" {
		sortAttr = dwn.FieldMessageTimestamp
	}
	limit := spec.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	candidates, err := s.matchingMessageCIDs(ctx, tenant, spec.Filters)
	if err != nil {
		return QueryResult{}, err
	}

	ordered, err := s.scanSorted(ctx, tenant, sortAttr, candidates)
	if err != nil {
		return QueryResult{}, err
	}
	if spec.Direction == Descending {
		reverseEntries(ordered)
	}

	start := 0
	if spec.Cursor != "" {
		cur, err := DecodeCursor(spec.Cursor)
		if err != nil {
			return QueryResult{}, err
		}
		start = len(ordered)
		for i, e := range ordered {
			if afterCursor(e, cur, spec.Direction) {
				start = i
				break
			}
		}
	}

	end := start + limit + 1
	if end > len(ordered) {
		end = len(ordered)
	}
	if start > end {
		start = end
	}
	page := ordered[start:end]
	hasMore := len(page) > limit
	if hasMore {
		page = page[:limit]
	}

	result := QueryResult{HasMore: hasMore}
	for _, e := range page {
		result.MessageCIDs = append(result.MessageCIDs, e.cid)
	}
	if hasMore {
		last := page[len(page)-1]
		result.NextCursor = EncodeCursor(Cursor{SortValue: last.value, MessageCID: last.cid})
	}
	return result, nil
}

// afterCursor reports whether e sorts strictly after cur in the query's
// chosen direction; ties are broken by messageCid.
func afterCursor(e sortedEntry, cur Cursor, dir SortDirection) bool {
	if e.value != cur.SortValue {
		if dir == Descending {
			return e.value < cur.SortValue
		}
		return e.value > cur.SortValue
	}
	if dir == Descending {
		return e.cid < cur.MessageCID
	}
	return e.cid > cur.MessageCID
}

func reverseEntries(e []sortedEntry) {
	for i, j := 0, len(e)-1; i < j; i, j = i+1, j-1 {
		e[i], e[j] = e[j], e[i]
	}
}

// scanSorted walks the sort attribute's index in ascending (value, cid)
// order, filtering to candidates when non-nil (a nil set means "no filters,
// include everything").
func (s *Store) scanSorted(ctx context.Context, tenant, sortAttr string, candidates map[string]bool) ([]sortedEntry, error) {
	prefix := indexAttrPrefix(tenant, sortAttr)
	it, err := s.kv.Scan(ctx, prefix)
	if err != nil {
		return nil, dwnerr.New(dwnerr.KindInternal, "ScanSortIndex", err)
	}
	defer it.Close()

	var out []sortedEntry
	for it.Next() {
		value, cid := parseIndexKey(prefix, it.Key())
		if candidates != nil && !candidates[cid] {
			continue
		}
		out = append(out, sortedEntry{value: value, cid: cid})
	}
	if it.Err() != nil {
		return nil, dwnerr.New(dwnerr.KindInternal, "ScanSortIndex", it.Err())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].value != out[j].value {
			return out[i].value < out[j].value
		}
		return out[i].cid < out[j].cid
	})
	return out, nil
}

// matchingMessageCIDs returns nil if filters is empty (meaning "no
// filtering"), else the union over each conjunction's intersection.
func (s *Store) matchingMessageCIDs(ctx context.Context, tenant string, filters []Filter) (map[string]bool, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	union := make(map[string]bool)
	for _, f := range filters {
		conj, err := s.matchFilter(ctx, tenant, f)
		if err != nil {
			return nil, err
		}
		for cid := range conj {
			union[cid] = true
		}
	}
	return union, nil
}

func (s *Store) matchFilter(ctx context.Context, tenant string, f Filter) (map[string]bool, error) {
	var sets []map[string]bool
	for attr, pred := range f {
		set, err := s.matchPredicate(ctx, tenant, attr, pred)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return intersectSets(sets), nil
}

func (s *Store) matchPredicate(ctx context.Context, tenant, attr string, pred Predicate) (map[string]bool, error) {
	switch {
	case pred.Range != nil:
		return s.scanRange(ctx, tenant, attr, *pred.Range)
	case len(pred.OneOf) > 0:
		union := make(map[string]bool)
		for _, v := range pred.OneOf {
			set, err := s.scanValue(ctx, tenant, attr, v)
			if err != nil {
				return nil, err
			}
			for cid := range set {
				union[cid] = true
			}
		}
		return union, nil
	default:
		return s.scanValue(ctx, tenant, attr, pred.Equals)
	}
}

func (s *Store) scanValue(ctx context.Context, tenant, attr, value string) (map[string]bool, error) {
	prefix := indexValuePrefix(tenant, attr, value)
	it, err := s.kv.Scan(ctx, prefix)
	if err != nil {
		return nil, dwnerr.New(dwnerr.KindInternal, "ScanValueIndex", err)
	}
	defer it.Close()

	set := make(map[string]bool)
	for it.Next() {
		// The full escaped value is part of the prefix, so the remainder of
		// the key is exactly the messageCid.
		set[string(it.Key()[len(prefix):])] = true
	}
	if it.Err() != nil {
		return nil, dwnerr.New(dwnerr.KindInternal, "ScanValueIndex", it.Err())
	}
	return set, nil
}

func (s *Store) scanRange(ctx context.Context, tenant, attr string, r RangePredicate) (map[string]bool, error) {
	prefix := indexAttrPrefix(tenant, attr)
	it, err := s.kv.Scan(ctx, prefix)
	if err != nil {
		return nil, dwnerr.New(dwnerr.KindInternal, "ScanRangeIndex", err)
	}
	defer it.Close()

	set := make(map[string]bool)
	for it.Next() {
		value, cid := parseIndexKey(prefix, it.Key())
		if r.From != "" && value < r.From {
			continue
		}
		if r.To != "" && value >= r.To {
			continue
		}
		set[cid] = true
	}
	if it.Err() != nil {
		return nil, dwnerr.New(dwnerr.KindInternal, "ScanRangeIndex", it.Err())
	}
	return set, nil
}

func intersectSets(sets []map[string]bool) map[string]bool {
	if len(sets) == 0 {
		return map[string]bool{}
	}
	smallest := sets[0]
	for _, s := range sets[1:] {
		if len(s) < len(smallest) {
			smallest = s
		}
	}
	out := make(map[string]bool, len(smallest))
	for cid := range smallest {
		inAll := true
		for _, s := range sets {
			if !s[cid] {
				inAll = false
				break
			}
		}
		if inAll {
			out[cid] = true
		}
	}
	return out
}
