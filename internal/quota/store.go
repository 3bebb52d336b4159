// store.go: counter storage for the quota gate.
package quota

import (
	"hash/fnv"
	"sync"
	"time"
)

// Counter tracks vision model usage for one device within the current
// 24-hour window.
type Counter struct {
	Count   int       // calls used within the window
	ResetAt time.Time // when the window expires
}

// Store abstracts counter persistence so deployments can swap the in-memory
// default for an external counter service. Counters are process-lifetime by
// design: losing them on restart resets all quotas, which is documented
// best-effort behavior rather than a bug.
type Store interface {
	// Get returns the counter for a device and whether one exists.
	Get(deviceID string) (Counter, bool)
	// Put stores the counter for a device.
	Put(deviceID string, c Counter)
	// Delete removes the counter for a device.
	Delete(deviceID string)
}

// shardCount is a power of two so the shard index reduces to a mask.
const shardCount = 16

// shard holds a slice of the device counter map under its own lock.
type shard struct {
	mu       sync.RWMutex
	counters map[string]Counter
}

// MemoryStore is the default in-memory Store, sharded by device identifier
// to keep lock contention low under concurrent requests.
type MemoryStore struct {
	shards [shardCount]*shard
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i] = &shard{counters: make(map[string]Counter)}
	}
	return s
}

// shardFor selects the shard for a device identifier.
func (s *MemoryStore) shardFor(deviceID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(deviceID))
	return s.shards[h.Sum32()&(shardCount-1)]
}

// Get returns the counter for a device and whether one exists.
func (s *MemoryStore) Get(deviceID string) (Counter, bool) {
	sh := s.shardFor(deviceID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	c, ok := sh.counters[deviceID]
	return c, ok
}

// Put stores the counter for a device.
func (s *MemoryStore) Put(deviceID string, c Counter) {
	sh := s.shardFor(deviceID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.counters[deviceID] = c
}

// Delete removes the counter for a device.
func (s *MemoryStore) Delete(deviceID string) {
	sh := s.shardFor(deviceID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.counters, deviceID)
}
