package storage

import (
	"sort"
	"strings"
	"sync"
)

// MemStore is an in memory implementation of Interface.
// Writes made in a transaction are buffered until Commit.
type MemStore struct {
	mu    sync.RWMutex
	Name  string
	store map[string][]byte
}

func NewMemStore(name string) *MemStore {
	return &MemStore{
		Name:  name,
		store: make(map[string][]byte),
	}
}

func (s *MemStore) View(f func(tx ReadOnlyTx) error) error {
	return DoView(s, f)
}

func (s *MemStore) Update(f func(tx Tx) error) error {
	return DoUpdate(s, f)
}

func (s *MemStore) BeginReadOnlyTx() (ReadOnlyTx, error) {
	return s.begin(), nil
}

func (s *MemStore) BeginTx() (Tx, error) {
	return s.begin(), nil
}

func (s *MemStore) begin() *memTx {
	return &memTx{
		s:       s,
		writes:  make(map[string][]byte),
		deletes: make(map[string]bool),
	}
}

type memTx struct {
	s       *MemStore
	writes  map[string][]byte
	deletes map[string]bool
	done    bool
}

func (t *memTx) Get(key string) (*KeyValue, error) {
	if t.deletes[key] {
		return nil, ErrNoKeyExists
	}
	if v, ok := t.writes[key]; ok {
		return &KeyValue{Key: key, Value: v}, nil
	}
	t.s.mu.RLock()
	v, ok := t.s.store[key]
	t.s.mu.RUnlock()
	if !ok {
		return nil, ErrNoKeyExists
	}
	return &KeyValue{Key: key, Value: v}, nil
}

func (t *memTx) Exists(key string) (bool, error) {
	_, err := t.Get(key)
	if err == ErrNoKeyExists {
		return false, nil
	}
	return err == nil, err
}

func (t *memTx) List(prefix string) ([]*KeyValue, error) {
	merged := make(map[string][]byte)
	t.s.mu.RLock()
	for k, v := range t.s.store {
		if strings.HasPrefix(k, prefix) {
			merged[k] = v
		}
	}
	t.s.mu.RUnlock()
	for k, v := range t.writes {
		if strings.HasPrefix(k, prefix) {
			merged[k] = v
		}
	}
	for k := range t.deletes {
		delete(merged, k)
	}
	kvs := make([]*KeyValue, 0, len(merged))
	for k, v := range merged {
		kvs = append(kvs, &KeyValue{Key: k, Value: v})
	}
	sort.Slice(kvs, func(i, j int) bool { return kvs[i].Key < kvs[j].Key })
	return kvs, nil
}

func (t *memTx) Put(key string, value []byte) error {
	delete(t.deletes, key)
	t.writes[key] = append([]byte(nil), value...)
	return nil
}

func (t *memTx) Delete(key string) error {
	delete(t.writes, key)
	t.deletes[key] = true
	return nil
}

func (t *memTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for k := range t.deletes {
		delete(t.s.store, k)
	}
	for k, v := range t.writes {
		t.s.store[k] = v
	}
	return nil
}

func (t *memTx) Rollback() error {
	t.done = true
	return nil
}
