package storage

import (
	"encoding"
	"fmt"
	"path"
	"strings"

	"github.com/pkg/errors"
)

const (
	dataPrefix    = "data"
	indexesPrefix = "indexes"

	// DefaultIDIndex is the unique index on ObjectID maintained by every IndexedStore.
	DefaultIDIndex = "id"
)

var (
	ErrObjectExists   = errors.New("object already exists")
	ErrNoObjectExists = errors.New("no object exists")
)

// BinaryObject is a document that can be kept in an IndexedStore.
type BinaryObject interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	ObjectID() string
}

type NewObjectF func() BinaryObject
type ValueFunc func(BinaryObject) (string, error)

// Index orders objects by the value returned from ValueFunc.
// Non unique index values are suffixed with the object ID.
type Index struct {
	Name      string
	ValueFunc ValueFunc
	Unique    bool
}

func (idx Index) valueOf(o BinaryObject) (string, error) {
	value, err := idx.ValueFunc(o)
	if err != nil {
		return "", err
	}
	if !idx.Unique {
		value = value + "/" + o.ObjectID()
	}
	return value, nil
}

type IndexedStoreConfig struct {
	Prefix    string
	NewObject NewObjectF
	Indexes   []Index
}

// DefaultIndexedStoreConfig returns a config with only the id index.
func DefaultIndexedStoreConfig(prefix string, newObject NewObjectF) IndexedStoreConfig {
	return IndexedStoreConfig{
		Prefix:    prefix,
		NewObject: newObject,
		Indexes: []Index{{
			Name:   DefaultIDIndex,
			Unique: true,
			ValueFunc: func(o BinaryObject) (string, error) {
				return o.ObjectID(), nil
			},
		}},
	}
}

func validPath(p string) bool {
	return p != "" && !strings.Contains(p, "/")
}

func (c IndexedStoreConfig) Validate() error {
	if !validPath(c.Prefix) {
		return fmt.Errorf("invalid prefix %q", c.Prefix)
	}
	if c.NewObject == nil {
		return errors.New("must provide a NewObject function")
	}
	for _, idx := range c.Indexes {
		if !validPath(idx.Name) {
			return fmt.Errorf("invalid index name %q", idx.Name)
		}
		if idx.ValueFunc == nil {
			return fmt.Errorf("index %q does not have a ValueFunc", idx.Name)
		}
	}
	return nil
}

// IndexedStore provides CRUD operations on BinaryObjects and maintains their indexes.
type IndexedStore struct {
	store         Interface
	dataPrefix    string
	indexesPrefix string
	indexes       []Index
	newObject     NewObjectF
}

func NewIndexedStore(store Interface, c IndexedStoreConfig) (*IndexedStore, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &IndexedStore{
		store:         store,
		dataPrefix:    path.Join("/", c.Prefix, dataPrefix) + "/",
		indexesPrefix: path.Join("/", c.Prefix, indexesPrefix),
		indexes:       c.Indexes,
		newObject:     c.NewObject,
	}, nil
}

func (s *IndexedStore) dataKey(id string) string {
	return s.dataPrefix + id
}

func (s *IndexedStore) indexKey(index, value string) string {
	return path.Join(s.indexesPrefix, index, value)
}

func (s *IndexedStore) Get(id string) (o BinaryObject, err error) {
	err = s.store.View(func(tx ReadOnlyTx) error {
		o, err = s.GetTx(tx, id)
		return err
	})
	return
}

func (s *IndexedStore) GetTx(tx ReadOnlyTx, id string) (BinaryObject, error) {
	kv, err := tx.Get(s.dataKey(id))
	if err == ErrNoKeyExists {
		return nil, ErrNoObjectExists
	} else if err != nil {
		return nil, err
	}
	o := s.newObject()
	if err := o.UnmarshalBinary(kv.Value); err != nil {
		return nil, errors.Wrapf(err, "decode object %q", id)
	}
	return o, nil
}

// Create stores o, failing with ErrObjectExists if its ID is taken.
func (s *IndexedStore) Create(o BinaryObject) error {
	return s.store.Update(func(tx Tx) error {
		return s.CreateTx(tx, o)
	})
}

func (s *IndexedStore) CreateTx(tx Tx, o BinaryObject) error {
	return s.putTx(tx, o, false, false)
}

// Replace overwrites o, failing with ErrNoObjectExists if it does not exist.
func (s *IndexedStore) Replace(o BinaryObject) error {
	return s.store.Update(func(tx Tx) error {
		return s.ReplaceTx(tx, o)
	})
}

func (s *IndexedStore) ReplaceTx(tx Tx, o BinaryObject) error {
	return s.putTx(tx, o, true, true)
}

// Put stores o whether or not it already exists.
func (s *IndexedStore) Put(o BinaryObject) error {
	return s.store.Update(func(tx Tx) error {
		return s.PutTx(tx, o)
	})
}

func (s *IndexedStore) PutTx(tx Tx, o BinaryObject) error {
	return s.putTx(tx, o, true, false)
}

func (s *IndexedStore) putTx(tx Tx, o BinaryObject, allowReplace, requireReplace bool) error {
	id := o.ObjectID()
	if !validPath(id) {
		return fmt.Errorf("invalid object id %q", id)
	}
	old, err := s.GetTx(tx, id)
	switch {
	case err == ErrNoObjectExists:
		if requireReplace {
			return err
		}
		old = nil
	case err != nil:
		return err
	case !allowReplace:
		return ErrObjectExists
	}

	data, err := o.MarshalBinary()
	if err != nil {
		return err
	}
	if err := tx.Put(s.dataKey(id), data); err != nil {
		return err
	}
	for _, idx := range s.indexes {
		newValue, err := idx.valueOf(o)
		if err != nil {
			return err
		}
		newKey := s.indexKey(idx.Name, newValue)
		if old != nil {
			oldValue, err := idx.valueOf(old)
			if err != nil {
				return err
			}
			oldKey := s.indexKey(idx.Name, oldValue)
			if oldKey == newKey {
				continue
			}
			if err := tx.Delete(oldKey); err != nil {
				return err
			}
		}
		if err := tx.Put(newKey, []byte(id)); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the object and its index entries.
// Deleting a non-existent object is not an error.
func (s *IndexedStore) Delete(id string) error {
	return s.store.Update(func(tx Tx) error {
		return s.DeleteTx(tx, id)
	})
}

func (s *IndexedStore) DeleteTx(tx Tx, id string) error {
	o, err := s.GetTx(tx, id)
	if err == ErrNoObjectExists {
		return nil
	} else if err != nil {
		return err
	}
	if err := tx.Delete(s.dataKey(id)); err != nil {
		return err
	}
	for _, idx := range s.indexes {
		value, err := idx.valueOf(o)
		if err != nil {
			return err
		}
		if err := tx.Delete(s.indexKey(idx.Name, value)); err != nil {
			return err
		}
	}
	return nil
}

// List returns objects in index order whose ID matches pattern.
// The pattern uses path.Match syntax, an empty pattern matches everything.
// If limit < 0 no limit is enforced.
func (s *IndexedStore) List(index, pattern string, offset, limit int) (objects []BinaryObject, err error) {
	err = s.store.View(func(tx ReadOnlyTx) error {
		objects, err = s.ListTx(tx, index, pattern, offset, limit, false)
		return err
	})
	return
}

// ReverseList is List in reverse index order.
func (s *IndexedStore) ReverseList(index, pattern string, offset, limit int) (objects []BinaryObject, err error) {
	err = s.store.View(func(tx ReadOnlyTx) error {
		objects, err = s.ListTx(tx, index, pattern, offset, limit, true)
		return err
	})
	return
}

func (s *IndexedStore) ListTx(tx ReadOnlyTx, index, pattern string, offset, limit int, reverse bool) ([]BinaryObject, error) {
	ids, err := tx.List(s.indexKey(index, "") + "/")
	if err != nil {
		return nil, err
	}
	if reverse {
		for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
			ids[i], ids[j] = ids[j], ids[i]
		}
	}
	if offset < 0 {
		offset = 0
	}

	var objects []BinaryObject
	matched := 0
	for _, kv := range ids {
		id := string(kv.Value)
		if pattern != "" {
			if ok, _ := path.Match(pattern, id); !ok {
				continue
			}
		}
		matched++
		if matched <= offset {
			continue
		}
		if limit >= 0 && len(objects) == limit {
			break
		}
		o, err := s.GetTx(tx, id)
		if err != nil {
			return nil, errors.Wrapf(err, "index %q references object %q", index, id)
		}
		objects = append(objects, o)
	}
	return objects, nil
}
