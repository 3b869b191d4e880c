package resilience

import "sync"

// BreakerSet holds one circuit breaker per node, created on first use from a
// shared template.
type BreakerSet struct {
	template CircuitBreakerConfig

	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

func NewBreakerSet(template CircuitBreakerConfig) *BreakerSet {
	return &BreakerSet{
		template: template,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for node, creating it if needed.
func (s *BreakerSet) Get(node string) *CircuitBreaker {
	s.mu.RLock()
	cb, ok := s.breakers[node]
	s.mu.RUnlock()
	if ok {
		return cb
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, ok = s.breakers[node]; ok {
		return cb
	}
	cfg := s.template
	cfg.Node = node
	cb = NewCircuitBreaker(cfg)
	s.breakers[node] = cb
	return cb
}

// Forget drops the breaker of node. A later Get starts closed.
func (s *BreakerSet) Forget(node string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.breakers, node)
}

// States reports the state of every tracked breaker.
func (s *BreakerSet) States() map[string]CircuitBreakerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]CircuitBreakerState, len(s.breakers))
	for node, cb := range s.breakers {
		out[node] = cb.State()
	}
	return out
}
