package alerts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/anjihan3601K/suraksha/alert"
	"github.com/anjihan3601K/suraksha/services/storage"
	"github.com/pkg/errors"
)

var (
	ErrAlertExists   = errors.New("alert already exists")
	ErrNoAlertExists = errors.New("no alert exists")
)

// Data access object for alert Documents.
type AlertDAO interface {
	Get(id string) (Document, error)

	// Create an alert document.
	// ErrAlertExists is returned if an alert already exists with the same ID.
	Create(d Document) error

	// Replace an existing alert document.
	// ErrNoAlertExists is returned if the alert does not exist.
	Replace(d Document) error

	// Delete an alert document.
	// It is not an error to delete a non-existent alert.
	Delete(id string) error

	// List returns alert documents, newest first.
	List(offset, limit int) ([]Document, error)
}

//--------------------------------------------------------------------
// The following structures are stored in the database as versioned JSON.
// Changes to the structures could break existing data.

const documentVersion1 = 1

// Document is a stored alert.
type Document struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Severity  alert.Severity `json:"severity"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (d Document) Alert() alert.Alert {
	return alert.Alert{
		Title:    d.Title,
		Message:  d.Message,
		Severity: d.Severity,
	}
}

// Payload returns the raw document fields as delivered to creation listeners.
func (d Document) Payload() map[string]interface{} {
	return map[string]interface{}{
		"title":     d.Title,
		"message":   d.Message,
		"severity":  d.Severity.String(),
		"timestamp": d.CreatedAt.Format(time.RFC3339Nano),
	}
}

func (d Document) ObjectID() string {
	return d.ID
}

func (d Document) MarshalBinary() ([]byte, error) {
	return storage.VersionJSONEncode(documentVersion1, d)
}

func (d *Document) UnmarshalBinary(data []byte) error {
	return storage.VersionJSONDecode(data, func(version int, dec *json.Decoder) error {
		switch version {
		case documentVersion1:
			return dec.Decode(d)
		default:
			return fmt.Errorf("unknown alert version %d: cannot decode", version)
		}
	})
}

// Key/Value store based implementation of the AlertDAO
type alertKV struct {
	store *storage.IndexedStore
}

const (
	alertPrefix   = "alerts"
	createdIndex  = "created"
	createdLayout = "20060102T150405.000000000Z"
)

func newAlertKV(store storage.Interface) (*alertKV, error) {
	c := storage.DefaultIndexedStoreConfig(alertPrefix, func() storage.BinaryObject {
		return new(Document)
	})
	c.Indexes = append(c.Indexes, storage.Index{
		Name: createdIndex,
		ValueFunc: func(o storage.BinaryObject) (string, error) {
			d, ok := o.(*Document)
			if !ok {
				return "", storage.ImpossibleTypeErr(d, o)
			}
			return d.CreatedAt.UTC().Format(createdLayout), nil
		},
	})
	istore, err := storage.NewIndexedStore(store, c)
	if err != nil {
		return nil, err
	}
	return &alertKV{
		store: istore,
	}, nil
}

func (kv *alertKV) error(err error) error {
	if err == storage.ErrObjectExists {
		return ErrAlertExists
	} else if err == storage.ErrNoObjectExists {
		return ErrNoAlertExists
	}
	return err
}

func (kv *alertKV) Get(id string) (Document, error) {
	o, err := kv.store.Get(id)
	if err != nil {
		return Document{}, kv.error(err)
	}
	d, ok := o.(*Document)
	if !ok {
		return Document{}, storage.ImpossibleTypeErr(d, o)
	}
	return *d, nil
}

func (kv *alertKV) Create(d Document) error {
	return kv.error(kv.store.Create(&d))
}

func (kv *alertKV) Replace(d Document) error {
	return kv.error(kv.store.Replace(&d))
}

func (kv *alertKV) Delete(id string) error {
	return kv.store.Delete(id)
}

func (kv *alertKV) List(offset, limit int) ([]Document, error) {
	objects, err := kv.store.ReverseList(createdIndex, "", offset, limit)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, len(objects))
	for i, o := range objects {
		d, ok := o.(*Document)
		if !ok {
			return nil, storage.ImpossibleTypeErr(d, o)
		}
		docs[i] = *d
	}
	return docs, nil
}
