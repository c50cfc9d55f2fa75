package storage

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// Service owns the bbolt database and hands out namespaced stores.
type Service struct {
	c Config

	mu       sync.Mutex
	db       *bolt.DB
	stores   map[string]Interface
	versions Versions
}

const versionsNamespace = "versions"

func NewService(c Config) *Service {
	return &Service{
		c:      c,
		stores: make(map[string]Interface),
	}
}

func (s *Service) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.c.BoltDBPath), 0755); err != nil {
		return errors.Wrapf(err, "mkdir dirs %q", s.c.BoltDBPath)
	}
	db, err := bolt.Open(s.c.BoltDBPath, 0600, &bolt.Options{Timeout: time.Duration(s.c.OpenTimeout)})
	if err != nil {
		return errors.Wrapf(err, "open boltdb @ %q", s.c.BoltDBPath)
	}
	s.db = db
	s.versions = NewVersions(NewBolt(db, versionsNamespace))
	return nil
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.stores = make(map[string]Interface)
	return err
}

// Store returns the store for namespace name.
// Calling Store with the same name returns the same store.
func (s *Service) Store(name string) Interface {
	s.mu.Lock()
	defer s.mu.Unlock()
	if store, ok := s.stores[name]; ok {
		return store
	}
	store := NewBolt(s.db, name)
	s.stores[name] = store
	return store
}

func (s *Service) Versions() Versions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions
}
