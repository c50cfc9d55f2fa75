package recipients

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/anjihan3601K/suraksha/alert"
	"github.com/anjihan3601K/suraksha/services/storage"
	"github.com/pkg/errors"
)

var (
	ErrRecipientExists   = errors.New("recipient already exists")
	ErrNoRecipientExists = errors.New("no recipient exists")
)

// Data access object for Recipient data.
type RecipientDAO interface {
	// Retrieve a recipient
	Get(id string) (Recipient, error)

	// Create a recipient.
	// ErrRecipientExists is returned if a recipient already exists with the same ID.
	Create(r Recipient) error

	// Replace an existing recipient.
	// ErrNoRecipientExists is returned if the recipient does not exist.
	Replace(r Recipient) error

	// Put creates or replaces a recipient as part of tx.
	PutTx(tx storage.Tx, r Recipient) error

	// Delete a recipient.
	// It is not an error to delete a non-existent recipient.
	Delete(id string) error

	// List recipients whose ID matches a pattern.
	// The pattern is shell/glob matching see https://golang.org/pkg/path/#Match
	// Offset and limit are pagination bounds, a negative limit means no limit.
	List(pattern string, offset, limit int) ([]Recipient, error)
	ListTx(tx storage.ReadOnlyTx, pattern string, offset, limit int) ([]Recipient, error)
}

//--------------------------------------------------------------------
// The following structures are stored in the database as versioned JSON.
// Changes to the structures could break existing data.

const recipientVersion1 = 1

// Recipient is the stored form of a registered user.
type Recipient struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func newRecipient(r alert.Recipient) Recipient {
	return Recipient{
		ID:    r.ID,
		Name:  r.Name,
		Email: r.Email,
		Phone: r.Phone,
	}
}

// Alert returns the recipient as handed to the dispatcher.
func (r Recipient) Alert() alert.Recipient {
	return alert.Recipient{
		ID:    r.ID,
		Name:  r.Name,
		Email: r.Email,
		Phone: r.Phone,
	}
}

var validID = regexp.MustCompile(`^[-\._\p{L}0-9]+$`)

func (r Recipient) Validate() error {
	if !validID.MatchString(r.ID) {
		return fmt.Errorf("recipient ID must contain only letters, numbers, '-', '.' and '_'. %q", r.ID)
	}
	if email := strings.TrimSpace(r.Email); email != "" && !strings.ContainsRune(email, '@') {
		return fmt.Errorf("invalid email address %q", r.Email)
	}
	return nil
}

func (r Recipient) ObjectID() string {
	return r.ID
}

func (r Recipient) MarshalBinary() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid recipient")
	}
	return storage.VersionJSONEncode(recipientVersion1, r)
}

func (r *Recipient) UnmarshalBinary(data []byte) error {
	return storage.VersionJSONDecode(data, func(version int, dec *json.Decoder) error {
		switch version {
		case recipientVersion1:
			return dec.Decode(r)
		default:
			return fmt.Errorf("unknown recipient version %d: cannot decode", version)
		}
	})
}

// Key/Value store based implementation of the RecipientDAO
type recipientKV struct {
	store *storage.IndexedStore
}

const recipientPrefix = "recipients"

func newRecipientKV(store storage.Interface) (*recipientKV, error) {
	c := storage.DefaultIndexedStoreConfig(recipientPrefix, func() storage.BinaryObject {
		return new(Recipient)
	})
	istore, err := storage.NewIndexedStore(store, c)
	if err != nil {
		return nil, err
	}
	return &recipientKV{
		store: istore,
	}, nil
}

func (kv *recipientKV) error(err error) error {
	if err == storage.ErrObjectExists {
		return ErrRecipientExists
	} else if err == storage.ErrNoObjectExists {
		return ErrNoRecipientExists
	}
	return err
}

func (kv *recipientKV) Get(id string) (Recipient, error) {
	o, err := kv.store.Get(id)
	if err != nil {
		return Recipient{}, kv.error(err)
	}
	r, ok := o.(*Recipient)
	if !ok {
		return Recipient{}, storage.ImpossibleTypeErr(r, o)
	}
	return *r, nil
}

func (kv *recipientKV) Create(r Recipient) error {
	return kv.error(kv.store.Create(&r))
}

func (kv *recipientKV) Replace(r Recipient) error {
	return kv.error(kv.store.Replace(&r))
}

func (kv *recipientKV) PutTx(tx storage.Tx, r Recipient) error {
	return kv.store.PutTx(tx, &r)
}

func (kv *recipientKV) Delete(id string) error {
	return kv.store.Delete(id)
}

func (kv *recipientKV) List(pattern string, offset, limit int) ([]Recipient, error) {
	return kv.listHelper(kv.store.List(storage.DefaultIDIndex, pattern, offset, limit))
}

func (kv *recipientKV) ListTx(tx storage.ReadOnlyTx, pattern string, offset, limit int) ([]Recipient, error) {
	return kv.listHelper(kv.store.ListTx(tx, storage.DefaultIDIndex, pattern, offset, limit, false))
}

func (kv *recipientKV) listHelper(objects []storage.BinaryObject, err error) ([]Recipient, error) {
	if err != nil {
		return nil, err
	}
	recipients := make([]Recipient, len(objects))
	for i, o := range objects {
		r, ok := o.(*Recipient)
		if !ok {
			return nil, storage.ImpossibleTypeErr(r, o)
		}
		recipients[i] = *r
	}
	return recipients, nil
}
