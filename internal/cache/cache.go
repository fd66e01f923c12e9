// Package cache implements the in-memory mirror of known ClusterSecrets
// that lets Namespace and Secret events be resolved in O(1) without paging
// the API server (§4.4). It is never the source of truth -- every
// reconciliation decision is ultimately validated against live API reads.
package cache

import (
	"sync"

	"k8s.io/apimachinery/pkg/types"

	clustersecretv1alpha1 "github.com/giantswarm/clustersecret-operator/api/v1alpha1"
)

// Entry mirrors original_source/src/cache.py's per-ClusterSecret record:
// identity, the last-known body, and the namespaces currently synced.
type Entry struct {
	UID              types.UID
	Name             string
	Body             *clustersecretv1alpha1.ClusterSecret
	SyncedNamespaces []string
}

// clone returns a deep-enough copy so callers can't mutate cache state
// through a returned Entry without going through Put.
func (e Entry) clone() Entry {
	out := e
	out.Body = e.Body.DeepCopy()
	if e.SyncedNamespaces != nil {
		out.SyncedNamespaces = append([]string(nil), e.SyncedNamespaces...)
	}
	return out
}

// Cache is the small, total duck-typed contract described in §9: get, put,
// delete, iterate, has. Specified as an interface so an alternative
// implementation (e.g. a persistent index) can stand in without touching
// callers.
type Cache interface {
	Get(uid types.UID) (Entry, bool)
	Put(entry Entry)
	Delete(uid types.UID)
	Has(uid types.UID) bool
	IterateAll() []Entry
}

// memCache is a map[uid]Entry guarded by a lock, never held across I/O (§5).
type memCache struct {
	mu      sync.RWMutex
	entries map[types.UID]Entry
}

// New constructs an empty in-memory Cache.
func New() Cache {
	return &memCache{entries: make(map[types.UID]Entry)}
}

func (c *memCache) Get(uid types.UID) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[uid]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

func (c *memCache) Put(entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.UID] = entry.clone()
}

func (c *memCache) Delete(uid types.UID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, uid)
}

func (c *memCache) Has(uid types.UID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[uid]
	return ok
}

// IterateAll returns a consistent snapshot, safe to range over while other
// goroutines mutate the cache concurrently.
func (c *memCache) IterateAll() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.clone())
	}
	return out
}
