package dstore

import (
	"hash/fnv"
	"sync"
)

// stripeCount bounds the number of mutexes backing the
// per-(tenant,dataCid) serialization of associate/put/delete. A fixed
// stripe count trades a vanishingly small amount of false contention for
// never growing an unbounded lock map.
const stripeCount = 256

type stripedLocks struct {
	stripes [stripeCount]sync.Mutex
}

func (s *stripedLocks) lock(tenant, dataCID string) func() {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tenant))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(dataCID))
	idx := h.Sum64() % stripeCount
	s.stripes[idx].Lock()
	return s.stripes[idx].Unlock
}
