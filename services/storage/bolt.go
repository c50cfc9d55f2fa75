package storage

import (
	"bytes"

	bolt "go.etcd.io/bbolt"
)

// Bolt is a store backed by a single bbolt bucket.
type Bolt struct {
	db     *bolt.DB
	bucket []byte
}

func NewBolt(db *bolt.DB, bucket string) *Bolt {
	return &Bolt{
		db:     db,
		bucket: []byte(bucket),
	}
}

func (b *Bolt) View(f func(tx ReadOnlyTx) error) error {
	return DoView(b, f)
}

func (b *Bolt) Update(f func(tx Tx) error) error {
	return DoUpdate(b, f)
}

func (b *Bolt) BeginReadOnlyTx() (ReadOnlyTx, error) {
	return b.begin(false)
}

func (b *Bolt) BeginTx() (Tx, error) {
	return b.begin(true)
}

func (b *Bolt) begin(writable bool) (*boltTx, error) {
	tx, err := b.db.Begin(writable)
	if err != nil {
		return nil, err
	}
	return &boltTx{bucket: b.bucket, tx: tx}, nil
}

// boltTx implements Tx on top of a bbolt transaction.
// Read only transactions see a nil bucket until the first write creates it.
type boltTx struct {
	bucket []byte
	tx     *bolt.Tx
}

func (t *boltTx) b() *bolt.Bucket {
	return t.tx.Bucket(t.bucket)
}

func (t *boltTx) Get(key string) (*KeyValue, error) {
	bucket := t.b()
	if bucket == nil {
		return nil, ErrNoKeyExists
	}
	v := bucket.Get([]byte(key))
	if v == nil {
		return nil, ErrNoKeyExists
	}
	// bbolt values are only valid for the life of the transaction.
	return &KeyValue{Key: key, Value: append([]byte(nil), v...)}, nil
}

func (t *boltTx) Exists(key string) (bool, error) {
	bucket := t.b()
	if bucket == nil {
		return false, nil
	}
	return bucket.Get([]byte(key)) != nil, nil
}

func (t *boltTx) List(prefix string) ([]*KeyValue, error) {
	bucket := t.b()
	if bucket == nil {
		return nil, nil
	}
	var kvs []*KeyValue
	p := []byte(prefix)
	c := bucket.Cursor()
	for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
		kvs = append(kvs, &KeyValue{
			Key:   string(k),
			Value: append([]byte(nil), v...),
		})
	}
	return kvs, nil
}

func (t *boltTx) Put(key string, value []byte) error {
	bucket, err := t.tx.CreateBucketIfNotExists(t.bucket)
	if err != nil {
		return err
	}
	return bucket.Put([]byte(key), value)
}

func (t *boltTx) Delete(key string) error {
	bucket := t.b()
	if bucket == nil {
		return nil
	}
	return bucket.Delete([]byte(key))
}

func (t *boltTx) Commit() error {
	return t.tx.Commit()
}

func (t *boltTx) Rollback() error {
	err := t.tx.Rollback()
	if err == bolt.ErrTxClosed {
		// Already committed.
		return nil
	}
	return err
}
