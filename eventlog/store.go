// Package eventlog implements the per-tenant, append-only,
// monotonically-watermarked notification log. Watermarks are minted by
// eventlog/watermark; rows are written to the same kv.Store embedded
// collaborator mstore and dstore use, with an attribute-indexed mirror so
// Query can filter without a full scan, mirroring mstore's secondary
// index layout.
package eventlog

import (
	"context"
	"sync"

	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/dwnerr"
	"github.com/forestrie/go-dwn/kv"
	"github.com/forestrie/go-dwn/mstore"
)

// DefaultQueryLimit bounds a Query call when no limit is given.
const DefaultQueryLimit = 100

// SubscriptionBuffer sizes the channel backing each Subscribe call.
const SubscriptionBuffer = 64

// Store is the event log for one backing kv.Store, shared across tenants.
type Store struct {
	kv kv.Store

	mu          sync.Mutex
	generators  map[string]*generator
	subscribers map[string][]*subscriber
}

// New wraps store as an eventlog.Store.
func New(store kv.Store) *Store {
	return &Store{
		kv:          store,
		generators:  make(map[string]*generator),
		subscribers: make(map[string][]*subscriber),
	}
}

// Append writes a new row for messageCid with the given indexed attributes
// (already normalized per mstore.NormalizeAttrValue) and returns its
// watermark. Watermarks are monotonic and totally ordered within a tenant;
// subscribers are notified after the row is durably written.
func (s *Store) Append(ctx context.Context, tenant, messageCID string, indexed map[string]string) (uint64, error) {
	w, err := s.generatorFor(tenant).Next()
	if err != nil {
		return 0, dwnerr.New(dwnerr.KindInternal, "MintWatermark", err)
	}

	if err := s.kv.Put(ctx, eventKey(tenant, w), []byte(messageCID)); err != nil {
		return 0, dwnerr.New(dwnerr.KindInternal, "PutEventRow", err)
	}
	for attr, value := range indexed {
		if err := s.kv.Put(ctx, indexValueKey(tenant, attr, value, w), []byte(messageCID)); err != nil {
			return 0, dwnerr.New(dwnerr.KindInternal, "PutEventIndexRow", err)
		}
	}

	s.notify(tenant, dwn.Event{Tenant: tenant, MessageCID: messageCID, Watermark: w, IndexedAttributes: indexed})
	return w, nil
}

// QueryResult is the output of Query.
type QueryResult struct {
	MessageCIDs []string
	NextCursor  string
}

// Query returns messageCids appended after cursor (or from the start of the
// log, if cursor is ""), optionally restricted to rows matching any
// filter in the disjunction, in ascending watermark order. A non-empty
// NextCursor is returned whenever the page
// was truncated at limit. Event filters support equality and OneOf
// predicates only; range predicates belong to the message store's sort
// keys, which the event log does not index.
func (s *Store) Query(ctx context.Context, tenant string, filters []mstore.Filter, cursor string, limit int) (QueryResult, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	after := uint64(0)
	if cursor != "" {
		var err error
		after, err = decodeCursor(cursor)
		if err != nil {
			return QueryResult{}, err
		}
	}

	var candidates map[uint64]string
	if len(filters) > 0 {
		var err error
		candidates, err = s.matchingWatermarks(ctx, tenant, filters)
		if err != nil {
			return QueryResult{}, err
		}
	}

	it, err := s.kv.Scan(ctx, eventsPrefix(tenant))
	if err != nil {
		return QueryResult{}, dwnerr.New(dwnerr.KindInternal, "ScanEvents", err)
	}
	defer it.Close()

	var out []string
	var last uint64
	for it.Next() {
		w := parseWatermarkKey(eventsPrefix(tenant), it.Key())
		if w <= after {
			continue
		}
		if candidates != nil {
			if _, ok := candidates[w]; !ok {
				continue
			}
		}
		out = append(out, string(it.Value()))
		last = w
		if len(out) == limit {
			break
		}
	}
	if it.Err() != nil {
		return QueryResult{}, dwnerr.New(dwnerr.KindInternal, "ScanEvents", it.Err())
	}

	result := QueryResult{MessageCIDs: out}
	if len(out) == limit {
		result.NextCursor = encodeCursor(last)
	}
	return result, nil
}

func (s *Store) matchingWatermarks(ctx context.Context, tenant string, filters []mstore.Filter) (map[uint64]string, error) {
	union := make(map[uint64]string)
	for _, f := range filters {
		conj, err := s.matchFilter(ctx, tenant, f)
		if err != nil {
			return nil, err
		}
		for w, cid := range conj {
			union[w] = cid
		}
	}
	return union, nil
}

func (s *Store) matchFilter(ctx context.Context, tenant string, f mstore.Filter) (map[uint64]string, error) {
	var sets []map[uint64]string
	for attr, pred := range f {
		set, err := s.matchPredicate(ctx, tenant, attr, pred)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	if len(sets) == 0 {
		return map[uint64]string{}, nil
	}
	out := sets[0]
	for _, s2 := range sets[1:] {
		next := make(map[uint64]string)
		for w, cid := range out {
			if _, ok := s2[w]; ok {
				next[w] = cid
			}
		}
		out = next
	}
	return out, nil
}

func (s *Store) matchPredicate(ctx context.Context, tenant, attr string, pred mstore.Predicate) (map[uint64]string, error) {
	values := pred.OneOf
	if len(values) == 0 {
		values = []string{pred.Equals}
	}
	out := make(map[uint64]string)
	for _, v := range values {
		it, err := s.kv.Scan(ctx, indexValuePrefix(tenant, attr, v))
		if err != nil {
			return nil, dwnerr.New(dwnerr.KindInternal, "ScanEventIndex", err)
		}
		for it.Next() {
			w := parseWatermarkKey(indexValuePrefix(tenant, attr, v), it.Key())
			out[w] = string(it.Value())
		}
		err = it.Err()
		it.Close()
		if err != nil {
			return nil, dwnerr.New(dwnerr.KindInternal, "ScanEventIndex", err)
		}
	}
	return out, nil
}
