package storage

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNoKeyExists is returned when a key is not present in a store.
	ErrNoKeyExists = errors.New("no key exists")
)

// ReadOperator provides read operations.
type ReadOperator interface {
	// Get retrieves a value.
	Get(key string) (*KeyValue, error)
	// Exists reports whether key is present.
	Exists(key string) (bool, error)
	// List returns all key/values whose key has the given prefix, sorted by key.
	List(prefix string) ([]*KeyValue, error)
}

// WriteOperator provides write operations.
type WriteOperator interface {
	// Put stores a value.
	Put(key string, value []byte) error
	// Delete removes a key.
	// Deleting a non-existent key is not an error.
	Delete(key string) error
}

// ReadOnlyTx performs read operations in a single transaction.
type ReadOnlyTx interface {
	ReadOperator

	// Rollback signals that the transaction is complete.
	// Rollback must always be called for every transaction.
	Rollback() error
}

// Tx performs reads and writes in a single transaction.
type Tx interface {
	ReadOnlyTx
	WriteOperator

	// Commit finalizes the transaction.
	// Once a transaction is committed, rolling back the transaction has no effect.
	Commit() error
}

// TxOperator begins transactions.
type TxOperator interface {
	BeginReadOnlyTx() (ReadOnlyTx, error)
	BeginTx() (Tx, error)
}

// Interface is the common interface of all stores.
type Interface interface {
	// View runs f in a read only transaction that is always rolled back.
	View(f func(ReadOnlyTx) error) error
	// Update runs f in a read-write transaction.
	// The transaction is committed if f returns nil, otherwise it is rolled back and the error returned.
	Update(f func(Tx) error) error
}

// DoView implements Interface.View for a TxOperator.
func DoView(o TxOperator, f func(ReadOnlyTx) error) error {
	tx, err := o.BeginReadOnlyTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return f(tx)
}

// DoUpdate implements Interface.Update for a TxOperator.
func DoUpdate(o TxOperator, f func(Tx) error) error {
	tx, err := o.BeginTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type KeyValue struct {
	Key   string
	Value []byte
}

// ImpossibleTypeErr is returned when a store hands back an object of the wrong type.
func ImpossibleTypeErr(exp interface{}, got interface{}) error {
	return fmt.Errorf("impossible error, object not of type %T, got %T", exp, got)
}
