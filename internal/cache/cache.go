package cache

import (
	"sync"
	"time"
)

// Tags shared by writers and readers of cached views.
const (
	TagActivities = "activities"
	TagPickups    = "pickups"
)

func PickupTag(id string) string { return "pickup:" + id }
func UserTag(id string) string   { return "user:" + id }
func MapTag(cell string) string  { return "map:" + cell }

// Stamp orders a read against invalidations. Take it before loading the
// value that will be passed to Put.
type Stamp uint64

// Cache is a read-through view cache whose entries are evicted by tag.
// Invalidate must be safe to call concurrently with Get and Put. Put drops the
// value when any of its tags was invalidated after stamp was taken, so a slow
// read cannot restore a view that a writer has already invalidated.
type Cache interface {
	Get(key string) (any, bool)
	Stamp() Stamp
	Put(key string, val any, stamp Stamp, tags ...string)
	Invalidate(tags ...string)
}

// maxTrackedTags bounds the per-tag invalidation index. Past it the index is
// reset and every stamp taken before the reset is treated as stale.
const maxTrackedTags = 10000

type entry struct {
	val     any
	tags    []string
	expires time.Time
}

// Memory is an in-process Cache with a fixed TTL and a tag to key index.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
	byTag   map[string]map[string]struct{}
	now     func() time.Time

	seq         Stamp
	invalidated map[string]Stamp
	floor       Stamp
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		entries: make(map[string]entry),
		byTag:   make(map[string]map[string]struct{}),
		now:     time.Now,

		invalidated: make(map[string]Stamp),
	}
}

func (m *Memory) Get(key string) (any, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if m.ttl > 0 && m.now().After(e.expires) {
		m.mu.Lock()
		if cur, ok := m.entries[key]; ok && cur.expires.Equal(e.expires) {
			m.removeLocked(key, cur)
		}
		m.mu.Unlock()
		return nil, false
	}
	return e.val, true
}

func (m *Memory) Stamp() Stamp {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.seq
}

func (m *Memory) Put(key string, val any, stamp Stamp, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.staleLocked(stamp, tags) {
		return
	}
	if old, ok := m.entries[key]; ok {
		m.removeLocked(key, old)
	}
	e := entry{val: val, tags: append([]string(nil), tags...), expires: m.now().Add(m.ttl)}
	m.entries[key] = e
	for _, tag := range e.tags {
		keys, ok := m.byTag[tag]
		if !ok {
			keys = make(map[string]struct{})
			m.byTag[tag] = keys
		}
		keys[key] = struct{}{}
	}
}

func (m *Memory) Invalidate(tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	if len(m.invalidated)+len(tags) > maxTrackedTags {
		m.invalidated = make(map[string]Stamp)
		m.floor = m.seq
	}
	for _, tag := range tags {
		m.invalidated[tag] = m.seq
		for key := range m.byTag[tag] {
			if e, ok := m.entries[key]; ok {
				m.removeLocked(key, e)
			}
		}
		delete(m.byTag, tag)
	}
}

// Len reports the number of live entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) staleLocked(stamp Stamp, tags []string) bool {
	if stamp < m.floor {
		return true
	}
	for _, tag := range tags {
		if m.invalidated[tag] > stamp {
			return true
		}
	}
	return false
}

func (m *Memory) removeLocked(key string, e entry) {
	delete(m.entries, key)
	for _, tag := range e.tags {
		if keys, ok := m.byTag[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(m.byTag, tag)
			}
		}
	}
}

// Nop never stores anything; every read misses.
type Nop struct{}

func (Nop) Get(string) (any, bool)             { return nil, false }
func (Nop) Stamp() Stamp                       { return 0 }
func (Nop) Put(string, any, Stamp, ...string) {}
func (Nop) Invalidate(...string)               {}
