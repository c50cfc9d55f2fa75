// Package storagetest provides throwaway stores for tests.
package storagetest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/anjihan3601K/suraksha/services/storage"
	bolt "go.etcd.io/bbolt"
)

// TestStore is a bolt backed storage service living in a test temp dir.
type TestStore struct {
	db       *bolt.DB
	versions storage.Versions
}

// New opens a fresh database that is closed when the test finishes.
func New(t testing.TB) *TestStore {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "suraksha.db"), 0600, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return &TestStore{
		db:       db,
		versions: storage.NewVersions(storage.NewBolt(db, "versions")),
	}
}

func (s *TestStore) Store(name string) storage.Interface {
	return storage.NewBolt(s.db, name)
}

func (s *TestStore) Versions() storage.Versions {
	return s.versions
}

// Path is the location of the database file.
func (s *TestStore) Path() string {
	return s.db.Path()
}

// Remove deletes the database file, used to simulate an unavailable store.
func (s *TestStore) Remove() error {
	if err := s.db.Close(); err != nil {
		return err
	}
	return os.Remove(s.db.Path())
}
