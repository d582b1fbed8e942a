package cart

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"printstore/internal/domain"
)

// SlotProvider returns the persistence slot for a shopper session.
type SlotProvider interface {
	Slot(sessionID string) Persister
}

// SlotProviderFunc adapts a function to SlotProvider.
type SlotProviderFunc func(sessionID string) Persister

func (f SlotProviderFunc) Slot(sessionID string) Persister { return f(sessionID) }

// Registry keeps one Store per session. Concurrent first requests for a
// session share a single hydration. Stores are saved on every mutation, so an
// evicted store is simply rehydrated from its slot on next use.
type Registry struct {
	slots SlotProvider
	deps  Deps

	mu     sync.RWMutex
	stores map[string]*registryEntry
	group  singleflight.Group
}

type registryEntry struct {
	store    *Store
	lastUsed atomic.Int64 // unix nanos
}

func NewRegistry(slots SlotProvider, deps Deps) *Registry {
	return &Registry{
		slots:  slots,
		deps:   deps.withDefaults(),
		stores: make(map[string]*registryEntry),
	}
}

func (r *Registry) touch(e *registryEntry) *Store {
	e.lastUsed.Store(r.deps.Now().UnixNano())
	return e.store
}

// Get returns the store for sessionID, loading it from its slot on first use.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Store, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.NewError(domain.CodeValidation, "session required")
	}

	r.mu.RLock()
	e, ok := r.stores[sessionID]
	r.mu.RUnlock()
	if ok {
		return r.touch(e), nil
	}

	v, _, _ := r.group.Do(sessionID, func() (interface{}, error) {
		r.mu.RLock()
		existing, ok := r.stores[sessionID]
		r.mu.RUnlock()
		if ok {
			return existing, nil
		}
		var slot Persister
		if r.slots != nil {
			slot = r.slots.Slot(sessionID)
		}
		entry := &registryEntry{store: Open(r.deps.Logger.WithSessionID(ctx, sessionID), slot, r.deps)}
		r.mu.Lock()
		r.stores[sessionID] = entry
		r.mu.Unlock()
		return entry, nil
	})
	return r.touch(v.(*registryEntry)), nil
}

// Forget drops the in-memory stores for the given sessions. Saved slots are kept.
func (r *Registry) Forget(sessionIDs ...string) {
	r.mu.Lock()
	for _, id := range sessionIDs {
		delete(r.stores, id)
	}
	r.mu.Unlock()
}

// SweepIdle forgets stores not used for longer than idle and returns how many
// were dropped. idle must exceed the longest request that holds a store.
func (r *Registry) SweepIdle(idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	cutoff := r.deps.Now().Add(-idle).UnixNano()
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.stores {
		if e.lastUsed.Load() < cutoff {
			delete(r.stores, id)
			n++
		}
	}
	return n
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stores)
}
