// Package alerts stores administrator authored alerts and announces
// each newly created alert to a listener exactly once.
package alerts

import (
	"context"
	"fmt"
	"sync"

	"github.com/anjihan3601K/suraksha/alert"
	"github.com/anjihan3601K/suraksha/services/storage"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	alertsNamespace = "alerts"
	schemaVersion   = "1"
)

var (
	ErrNotOpen = errors.New("alerts service is not open")

	// ErrInvalidAlert wraps every validation failure.
	ErrInvalidAlert = errors.New("invalid alert")
)

type Diagnostic interface {
	Created(id, title string, severity alert.Severity)
	ListenerFailed(id string, err error)
	Error(msg string, err error)
}

// Listener is notified of every created alert.
type Listener interface {
	OnAlertCreated(ctx context.Context, id string, payload map[string]interface{}) error
}

type Option func(*Service)

// WithClock sets the clock used to stamp new alerts.
func WithClock(clk clock.Clock) Option {
	return func(s *Service) {
		s.clock = clk
	}
}

type Service struct {
	StorageService interface {
		Store(namespace string) storage.Interface
		Versions() storage.Versions
	}
	Listener Listener

	mu     sync.RWMutex
	dao    AlertDAO
	closed bool

	wg    sync.WaitGroup
	diag  Diagnostic
	clock clock.Clock
}

func NewService(d Diagnostic, opts ...Option) *Service {
	s := &Service{
		diag:  d,
		clock: clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dao, err := newAlertKV(s.StorageService.Store(alertsNamespace))
	if err != nil {
		return err
	}
	if err := s.StorageService.Versions().Set(alertsNamespace, schemaVersion); err != nil {
		return errors.Wrap(err, "failed to record alerts schema version")
	}
	s.dao = dao
	s.closed = false
	return nil
}

// Close stops accepting new alerts and waits for in flight listeners.
func (s *Service) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

// Wait blocks until every listener started so far has returned.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) getDAO() (AlertDAO, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dao == nil || s.closed {
		return nil, ErrNotOpen
	}
	return s.dao, nil
}

// Create stores a as a new document and, once stored, notifies the listener.
func (s *Service) Create(a alert.Alert) (Document, error) {
	if err := a.Validate(); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidAlert, err)
	}
	dao, err := s.getDAO()
	if err != nil {
		return Document{}, err
	}
	d := Document{
		ID:        uuid.NewString(),
		Title:     a.Title,
		Message:   a.Message,
		Severity:  a.Severity,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := dao.Create(d); err != nil {
		return Document{}, err
	}
	s.diag.Created(d.ID, d.Title, d.Severity)
	s.notify(d)
	return d, nil
}

func (s *Service) notify(d Document) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Listener == nil || s.closed {
		return
	}
	l := s.Listener
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := l.OnAlertCreated(context.Background(), d.ID, d.Payload()); err != nil {
			s.diag.ListenerFailed(d.ID, err)
		}
	}()
}

// Replace overwrites an existing document, the listener is not notified.
func (s *Service) Replace(d Document) error {
	if err := d.Alert().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAlert, err)
	}
	dao, err := s.getDAO()
	if err != nil {
		return err
	}
	return dao.Replace(d)
}

func (s *Service) Get(id string) (Document, error) {
	dao, err := s.getDAO()
	if err != nil {
		return Document{}, err
	}
	return dao.Get(id)
}

func (s *Service) Delete(id string) error {
	dao, err := s.getDAO()
	if err != nil {
		return err
	}
	return dao.Delete(id)
}

// List returns documents newest first.
func (s *Service) List(offset, limit int) ([]Document, error) {
	dao, err := s.getDAO()
	if err != nil {
		return nil, err
	}
	return dao.List(offset, limit)
}
