package node

import (
	"sync"

	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/liquidity"
)

// UnitMethodKey is the (method, unit) pair every per-backend lookup in
// the node keys off: settings bounds, liquidity sources, withdraw
// processors.
type UnitMethodKey struct {
	Method cashu.Method
	Unit   cashu.Unit
}

// LiquidityRegistry keys available liquidity sources by (method, unit),
// grounded on original_source's bins/node/src/liquidity_sources.rs — the
// node supports more than one backend without a hardcoded single source.
type LiquidityRegistry struct {
	mu      sync.RWMutex
	sources map[UnitMethodKey]liquidity.LiquiditySource
}

func NewLiquidityRegistry() *LiquidityRegistry {
	return &LiquidityRegistry{sources: make(map[UnitMethodKey]liquidity.LiquiditySource)}
}

func (r *LiquidityRegistry) Register(src liquidity.LiquiditySource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[UnitMethodKey{Method: src.Method(), Unit: src.Unit()}] = src
}

func (r *LiquidityRegistry) Lookup(method cashu.Method, unit cashu.Unit) (liquidity.LiquiditySource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[UnitMethodKey{Method: method, Unit: unit}]
	return src, ok
}

func (r *LiquidityRegistry) All() []liquidity.LiquiditySource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]liquidity.LiquiditySource, 0, len(r.sources))
	for _, src := range r.sources {
		out = append(out, src)
	}
	return out
}
