package eventlog

import (
	"github.com/forestrie/go-dwn/eventlog/watermark"
)

// generator is watermark.Generator, named locally so callers read
// "eventlog.generator" rather than reaching across packages; instances are
// handed out lazily, one per tenant, since watermarks only have to be
// ordered within a tenant, never across tenants.
type generator = watermark.Generator

func (s *Store) generatorFor(tenant string) *generator {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.generators[tenant]
	if !ok {
		g = watermark.NewGenerator()
		s.generators[tenant] = g
	}
	return g
}
