package mmdeploy

import (
	"sort"
	"sync"
)

// tier orders teardown: results go before the states they came from,
// states before the contexts that own them, contexts before the engine
// contexts they were assembled with, and those before the models and
// schedulers added to them.
type tier uint8

const (
	tierResult tier = iota
	tierState
	tierContext
	tierEngineContext
	tierResource
)

type regEntry struct {
	close func() error
	name  string
	raw   Raw
	id    uint64
	tier  tier
}

type rawKey struct {
	raw  Raw
	tier tier
}

// registry tracks everything a Session handed out that still needs a
// release or destroy, so Close can tear it down in order.
type registry struct {
	entries map[uint64]regEntry
	byRaw   map[rawKey]uint64
	next    uint64
	mu      sync.Mutex
	closed  bool
}

func newRegistry() *registry {
	return &registry{
		entries: make(map[uint64]regEntry),
		byRaw:   make(map[rawKey]uint64),
		next:    1,
	}
}

// add records a live resource. Handles (states and contexts) must be
// unique among live handles of the same tier.
func (r *registry) add(t tier, name string, raw Raw, closeFn func() error) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, &Error{Op: name, Kind: KindClosed}
	}
	key := rawKey{raw: raw, tier: t}
	if t != tierResult {
		if _, dup := r.byRaw[key]; dup {
			return 0, &Error{Op: name, Kind: KindCreate, Handle: raw, Detail: "engine returned the identity of a live handle"}
		}
	}

	id := r.next
	r.next++
	r.entries[id] = regEntry{close: closeFn, name: name, raw: raw, id: id, tier: t}
	if t != tierResult {
		r.byRaw[key] = id
	}
	return id, nil
}

func (r *registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return
	}
	delete(r.entries, id)
	if e.tier != tierResult {
		delete(r.byRaw, rawKey{raw: e.raw, tier: e.tier})
	}
}

func (r *registry) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// count returns the number of live entries in tier t.
func (r *registry) count(t tier) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.entries {
		if e.tier == t {
			n++
		}
	}
	return n
}

// drain marks the registry closed and returns the live entries in teardown
// order: by tier, newest first within a tier.
func (r *registry) drain() []regEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	out := make([]regEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].tier != out[j].tier {
			return out[i].tier < out[j].tier
		}
		return out[i].id > out[j].id
	})
	return out
}
