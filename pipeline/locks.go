package pipeline

import (
	"hash/fnv"
	"sync"
)

// stripedLocks serializes concurrent writers to the same (tenant, key) pair
// -- a recordId for Records operations, a protocol for Protocols operations
// -- without serializing unrelated keys behind one global mutex. Same
// striping technique as dstore's per-(tenant, dataCid) locks, hoisted to
// the dispatcher since it is the one place that needs locks spanning both
// interfaces.
type stripedLocks struct {
	mus [stripeCount]sync.Mutex
}

const stripeCount = 64

func newStripedLocks() *stripedLocks {
	return &stripedLocks{}
}

func (s *stripedLocks) stripe(tenant, key string) *sync.Mutex {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tenant))
	_, _ = h.Write([]byte(":"))
	_, _ = h.Write([]byte(key))
	return &s.mus[h.Sum64()%stripeCount]
}

// Lock acquires the stripe for (tenant, key) and returns the unlock func.
func (s *stripedLocks) Lock(tenant, key string) func() {
	mu := s.stripe(tenant, key)
	mu.Lock()
	return mu.Unlock
}
