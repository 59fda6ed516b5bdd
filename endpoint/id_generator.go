package endpoint

import "sync/atomic"

// idGenerator hands out strictly increasing non-negative request IDs,
// starting at 0. A 64-bit counter never wraps in practice; no reuse
// policy exists.
type idGenerator struct {
	counter atomic.Int64
}

func (g *idGenerator) next() int64 {
	return g.counter.Add(1) - 1
}
