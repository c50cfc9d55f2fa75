// Package recipients stores the registered users that alerts are sent to.
package recipients

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/anjihan3601K/suraksha/alert"
	"github.com/anjihan3601K/suraksha/services/storage"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	recipientsNamespace = "recipients"
	schemaVersion       = "1"
)

var (
	ErrNotOpen = errors.New("recipients service is not open")

	// ErrInvalidRecipient wraps every validation failure.
	ErrInvalidRecipient = errors.New("invalid recipient")
)

type Service struct {
	StorageService interface {
		Store(namespace string) storage.Interface
		Versions() storage.Versions
	}

	mu    sync.RWMutex
	store storage.Interface
	dao   RecipientDAO
}

func NewService() *Service {
	return &Service{}
}

func (s *Service) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	store := s.StorageService.Store(recipientsNamespace)
	dao, err := newRecipientKV(store)
	if err != nil {
		return err
	}
	if err := s.StorageService.Versions().Set(recipientsNamespace, schemaVersion); err != nil {
		return errors.Wrap(err, "failed to record recipients schema version")
	}
	s.store = store
	s.dao = dao
	return nil
}

func (s *Service) Close() error {
	return nil
}

func (s *Service) getDAO() (RecipientDAO, storage.Interface, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dao == nil {
		return nil, nil, ErrNotOpen
	}
	return s.dao, s.store, nil
}

// Create stores a new recipient, generating an ID if r has none.
func (s *Service) Create(r alert.Recipient) (alert.Recipient, error) {
	dao, _, err := s.getDAO()
	if err != nil {
		return alert.Recipient{}, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	rec := newRecipient(r)
	if err := rec.Validate(); err != nil {
		return alert.Recipient{}, fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}
	if err := dao.Create(rec); err != nil {
		return alert.Recipient{}, err
	}
	return rec.Alert(), nil
}

// Replace overwrites an existing recipient.
func (s *Service) Replace(r alert.Recipient) error {
	dao, _, err := s.getDAO()
	if err != nil {
		return err
	}
	rec := newRecipient(r)
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}
	return dao.Replace(rec)
}

func (s *Service) Delete(id string) error {
	dao, _, err := s.getDAO()
	if err != nil {
		return err
	}
	return dao.Delete(id)
}

func (s *Service) Get(id string) (alert.Recipient, error) {
	dao, _, err := s.getDAO()
	if err != nil {
		return alert.Recipient{}, err
	}
	r, err := dao.Get(id)
	if err != nil {
		return alert.Recipient{}, err
	}
	return r.Alert(), nil
}

// List returns recipients ordered by ID.
func (s *Service) List(pattern string, offset, limit int) ([]alert.Recipient, error) {
	dao, _, err := s.getDAO()
	if err != nil {
		return nil, err
	}
	list, err := dao.List(pattern, offset, limit)
	if err != nil {
		return nil, err
	}
	return toAlert(list), nil
}

// ResolveAll returns every registered recipient from a single consistent read.
func (s *Service) ResolveAll(ctx context.Context) ([]alert.Recipient, error) {
	dao, store, err := s.getDAO()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var list []Recipient
	err = store.View(func(tx storage.ReadOnlyTx) error {
		list, err = dao.ListTx(tx, "", 0, -1)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to read recipients")
	}
	return toAlert(list), nil
}

// Import creates or replaces every recipient in rs.
// Recipients without an ID get a generated one.
// Either all recipients are written or none are.
func (s *Service) Import(rs []alert.Recipient) (int, error) {
	dao, store, err := s.getDAO()
	if err != nil {
		return 0, err
	}
	recs := make([]Recipient, len(rs))
	for i, r := range rs {
		if strings.TrimSpace(r.ID) == "" {
			r.ID = uuid.NewString()
		}
		recs[i] = newRecipient(r)
		if err := recs[i].Validate(); err != nil {
			return 0, fmt.Errorf("recipient %d: %w: %v", i, ErrInvalidRecipient, err)
		}
	}
	err = store.Update(func(tx storage.Tx) error {
		for i := range recs {
			if err := dao.PutTx(tx, recs[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

func toAlert(list []Recipient) []alert.Recipient {
	out := make([]alert.Recipient, len(list))
	for i, r := range list {
		out[i] = r.Alert()
	}
	return out
}
