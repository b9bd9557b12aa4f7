package cache

import (
	"sync"

	"github.com/zeebo/xxh3"
)

// DefaultShards is the shard count used by NewMemStore when given n <= 0.
const DefaultShards = 16

type memShard struct {
	mutex sync.RWMutex
	db    map[string][]byte
}

// MemStore is an in-memory Store split into independently locked shards.
type MemStore struct {
	shards []*memShard
}

// NewMemStore creates an in-memory store with n shards.
func NewMemStore(n int) *MemStore {
	if n <= 0 {
		n = DefaultShards
	}
	shards := make([]*memShard, n)
	for i := range shards {
		shards[i] = &memShard{db: make(map[string][]byte)}
	}
	return &MemStore{shards: shards}
}

func (m *MemStore) shard(key string) *memShard {
	return m.shards[xxh3.HashString(key)%uint64(len(m.shards))]
}

func (m *MemStore) Get(key string) ([]byte, bool, error) {
	s := m.shard(key)
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	value, ok := s.db[key]
	return value, ok, nil
}

// Put never fails.
func (m *MemStore) Put(key string, value []byte) error {
	s := m.shard(key)
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.db[key] = value
	return nil
}

func (m *MemStore) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mutex.RLock()
		n += len(s.db)
		s.mutex.RUnlock()
	}
	return n
}
