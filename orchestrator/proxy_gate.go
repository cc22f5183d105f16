package orchestrator

import (
	"context"
	"sync"

	"github.com/contestra/ai-ranker-v2-sub003/core"
)

// proxyGate serializes dispatches to providers whose proxy routing is a
// process-wide setting. One request's proxy configuration must never leak
// into a concurrently dispatched request for a different locale, so proxied
// calls go through the gate one at a time. Everything else runs in parallel.
type proxyGate struct {
	ch chan struct{}
}

func newProxyGate() *proxyGate {
	return &proxyGate{ch: make(chan struct{}, 1)}
}

// acquire blocks until the gate is free or the caller's context ends.
func (g *proxyGate) acquire(ctx context.Context) error {
	select {
	case g.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return core.WrapError(ctx.Err(), core.ErrCanceled)
	}
}

// release frees the gate. Safe to call when not held.
func (g *proxyGate) release() {
	select {
	case <-g.ch:
	default:
	}
}

// gateSet hands out one gate per provider.
type gateSet struct {
	mu    sync.Mutex
	gates map[string]*proxyGate
}

func newGateSet() *gateSet {
	return &gateSet{gates: make(map[string]*proxyGate)}
}

func (s *gateSet) gateFor(provider string) *proxyGate {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate, ok := s.gates[provider]
	if !ok {
		gate = newProxyGate()
		s.gates[provider] = gate
	}
	return gate
}
