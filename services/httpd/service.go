package httpd

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type Diagnostic interface {
	NewHTTPServerErrorLogger() *log.Logger

	StartingService()
	StoppedService()
	ShutdownTimeout()

	ListeningOn(addr string)

	HTTP(
		host string,
		start time.Time,
		method string,
		uri string,
		proto string,
		status int,
		userAgent string,
		reqID string,
		duration time.Duration,
	)

	Error(msg string, err error)
}

type Service struct {
	addr            string
	shutdownTimeout time.Duration

	ln     net.Listener
	server *http.Server
	err    chan error
	mu     sync.Mutex
	wg     sync.WaitGroup

	Handler *Handler

	diag Diagnostic
}

func NewService(c Config, d Diagnostic) *Service {
	return &Service{
		addr:            c.BindAddress,
		shutdownTimeout: time.Duration(c.ShutdownTimeout),
		err:             make(chan error, 1),
		Handler:         NewHandler(c.LogEnabled, d),
		diag:            d,
	}
}

// Open starts listening and serving requests in the background.
func (s *Service) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diag.StartingService()

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.addr)
	}
	s.ln = ln
	s.diag.ListeningOn(ln.Addr().String())

	s.server = &http.Server{
		Handler:  s.Handler,
		ErrorLog: s.diag.NewHTTPServerErrorLogger(),
	}

	s.wg.Add(1)
	go s.serve(s.server, ln)
	return nil
}

// Close stops accepting connections and waits for active requests,
// forcing them closed once the shutdown timeout elapses.
func (s *Service) Close() error {
	defer s.diag.StoppedService()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	ctx := context.Background()
	if s.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
	}
	err := s.server.Shutdown(ctx)
	if err == context.DeadlineExceeded {
		s.diag.ShutdownTimeout()
		err = s.server.Close()
	}
	s.wg.Wait()
	s.server = nil
	return err
}

func (s *Service) Err() <-chan error {
	return s.err
}

func (s *Service) serve(server *http.Server, ln net.Listener) {
	defer s.wg.Done()
	err := server.Serve(ln)
	if err == http.ErrServerClosed {
		s.err <- nil
		return
	}
	s.diag.Error("listener failed", err)
	s.err <- fmt.Errorf("listener failed: addr=%s, err=%s", ln.Addr(), err)
}

func (s *Service) Addr() net.Addr {
	if s.ln != nil {
		return s.ln.Addr()
	}
	return nil
}

func (s *Service) URL() string {
	if s.ln != nil {
		return "http://" + s.Addr().String() + BasePath
	}
	return ""
}
