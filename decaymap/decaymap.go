// Package decaymap implements a lazily evaluated decaying hashmap.
// Values are stored with a deadline and are treated as absent once the
// deadline passes, even before they are physically removed by Cleanup.
package decaymap

import (
	"sync"
	"time"
)

func zilch[T any]() T {
	var zero T
	return zero
}

type entry[V any] struct {
	Value  V
	expiry time.Time
}

// Impl is a map of K to V with expiry deadlines per entry. Logical expiry
// always precedes physical removal: readers compute liveness from the
// deadline, never from key presence alone.
type Impl[K comparable, V any] struct {
	data map[K]entry[V]
	now  func() time.Time
	lock sync.RWMutex
}

// New creates a new DecayMap of key type K and value type V.
func New[K comparable, V any]() *Impl[K, V] {
	return &Impl[K, V]{
		data: make(map[K]entry[V]),
		now:  time.Now,
	}
}

// NewWithClock creates a DecayMap that reads time from clock instead of
// time.Now. Tests use this to simulate TTL expiry without sleeping.
func NewWithClock[K comparable, V any](clock func() time.Time) *Impl[K, V] {
	return &Impl[K, V]{
		data: make(map[K]entry[V]),
		now:  clock,
	}
}

// expire forcibly expires a key by setting its deadline in the past.
func (m *Impl[K, V]) expire(key K) bool {
	m.lock.RLock()
	val, ok := m.data[key]
	m.lock.RUnlock()

	if !ok {
		return false
	}

	m.lock.Lock()
	val.expiry = m.now().Add(-1 * time.Hour)
	m.data[key] = val
	m.lock.Unlock()

	return true
}

// Get returns the value for key if it exists and has not expired.
func (m *Impl[K, V]) Get(key K) (V, bool) {
	m.lock.RLock()
	value, ok := m.data[key]
	m.lock.RUnlock()

	if !ok {
		return zilch[V](), false
	}

	if m.now().After(value.expiry) {
		m.lock.Lock()
		// Since previously reading m.data[key], the value may have been
		// rewritten with a fresh expiry. Only delete if still expired.
		value, ok = m.data[key]
		if ok && m.now().After(value.expiry) {
			delete(m.data, key)
			ok = false
		}
		m.lock.Unlock()

		if !ok {
			return zilch[V](), false
		}
	}

	return value.Value, true
}

// Peek returns the value for key if it exists and has not expired, without
// mutating the map. Use this on read paths that must stay side-effect free.
func (m *Impl[K, V]) Peek(key K) (V, bool) {
	m.lock.RLock()
	value, ok := m.data[key]
	m.lock.RUnlock()

	if !ok || m.now().After(value.expiry) {
		return zilch[V](), false
	}

	return value.Value, true
}

// Pop atomically removes and returns the value for key. A live entry is
// observed by exactly one caller; concurrent Pops of the same key yield
// the value once and absence everywhere else.
func (m *Impl[K, V]) Pop(key K) (V, bool) {
	m.lock.Lock()
	value, ok := m.data[key]
	if ok {
		delete(m.data, key)
	}
	m.lock.Unlock()

	if !ok || m.now().After(value.expiry) {
		return zilch[V](), false
	}

	return value.Value, true
}

// Set sets key to value with a deadline of now+expiry.
func (m *Impl[K, V]) Set(key K, value V, expiry time.Duration) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.data[key] = entry[V]{
		Value:  value,
		expiry: m.now().Add(expiry),
	}
}

// Delete removes a key, reporting whether a live entry was present.
func (m *Impl[K, V]) Delete(key K) bool {
	m.lock.Lock()
	value, ok := m.data[key]
	if ok {
		delete(m.data, key)
	}
	m.lock.Unlock()

	if ok && m.now().After(value.expiry) {
		ok = false
	}

	return ok
}

// Range calls f for every live entry. Entries are copied under the read
// lock first so f runs without holding it; f returning false stops the
// iteration.
func (m *Impl[K, V]) Range(f func(key K, value V) bool) {
	type pair struct {
		key   K
		value V
	}

	m.lock.RLock()
	now := m.now()
	live := make([]pair, 0, len(m.data))
	for key, entry := range m.data {
		if now.After(entry.expiry) {
			continue
		}
		live = append(live, pair{key, entry.Value})
	}
	m.lock.RUnlock()

	for _, p := range live {
		if !f(p.key, p.value) {
			return
		}
	}
}

// Len counts live entries.
func (m *Impl[K, V]) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()

	now := m.now()
	result := 0
	for _, entry := range m.data {
		if now.After(entry.expiry) {
			continue
		}
		result++
	}

	return result
}

// Cleanup removes all expired entries. Call this periodically; Get and Pop
// already behave as if expired entries are gone, so Cleanup only bounds
// memory, it never changes observable state.
func (m *Impl[K, V]) Cleanup() {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := m.now()
	for key, entry := range m.data {
		if now.After(entry.expiry) {
			delete(m.data, key)
		}
	}
}
