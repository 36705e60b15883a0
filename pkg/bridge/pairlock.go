// Copyright 2024-2026 Aiku AI

package bridge

import "sync"

// pairLocks serializes sync passes per linked pair. A startup reconciliation
// and a live trigger racing on the same pair would otherwise interleave
// their collaborator calls and diff against stale state, duplicating
// counterparts or pushes.
//
// Locks are keyed by the pair identity: the thread ID once a pair is linked,
// the discussion ID while it is not. Keys are never evicted; the set is
// bounded by the number of pairs in the category.
type pairLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// acquire locks the mutex for key and returns its release func.
func (p *pairLocks) acquire(key string) func() {
	p.mu.Lock()
	if p.locks == nil {
		p.locks = make(map[string]*sync.Mutex)
	}
	l, ok := p.locks[key]
	if !ok {
		l = &sync.Mutex{}
		p.locks[key] = l
	}
	p.mu.Unlock()

	l.Lock()
	return l.Unlock
}
