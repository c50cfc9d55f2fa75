// Package server wires the suraksha services together and manages their lifecycle.
package server

import (
	"context"
	"fmt"

	"github.com/anjihan3601K/suraksha/alert"
	"github.com/anjihan3601K/suraksha/dispatch"
	"github.com/anjihan3601K/suraksha/keyvalue"
	"github.com/anjihan3601K/suraksha/services/alerts"
	"github.com/anjihan3601K/suraksha/services/diagnostic"
	"github.com/anjihan3601K/suraksha/services/httpd"
	"github.com/anjihan3601K/suraksha/services/recipients"
	"github.com/anjihan3601K/suraksha/services/smtp"
	"github.com/anjihan3601K/suraksha/services/storage"
	"github.com/anjihan3601K/suraksha/services/twilio"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Diagnostic interface {
	Debug(msg string, ctx ...keyvalue.T)
	Info(msg string, ctx ...keyvalue.T)
	Error(msg string, err error, ctx ...keyvalue.T)
}

// BuildInfo represents the build details for the server code.
type BuildInfo struct {
	Version string
	Commit  string
	Branch  string
}

// Server represents a container for the suraksha services.
type Server struct {
	config    *Config
	BuildInfo BuildInfo

	err chan error

	DiagService       *diagnostic.Service
	StorageService    *storage.Service
	RecipientsService *recipients.Service
	AlertsService     *alerts.Service
	SMTPService       *smtp.Service
	TwilioService     *twilio.Service
	HTTPDService      *httpd.Service

	Dispatcher *dispatch.Dispatcher
	Trigger    *dispatch.Trigger
	Registry   *prometheus.Registry

	// Services in open order, closed in reverse.
	Services []Service

	diag Diagnostic
}

// New returns a new instance of Server built from a config.
// The diagnostic service must already be open.
func New(c *Config, buildInfo BuildInfo, diagService *diagnostic.Service) (*Server, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	s := &Server{
		config:      c,
		BuildInfo:   buildInfo,
		err:         make(chan error, 1),
		DiagService: diagService,
		Registry:    prometheus.NewRegistry(),
		diag:        diagService.NewServerHandler(),
	}
	s.diag.Info("building server", keyvalue.KV("version", buildInfo.Version), keyvalue.KV("commit", buildInfo.Commit))

	s.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s.appendStorageService()
	s.appendRecipientsService()
	s.appendSMTPService()
	s.appendTwilioService()
	if err := s.initDispatcher(); err != nil {
		return nil, err
	}
	s.appendAlertsService()
	if c.HTTP.Enabled {
		s.appendHTTPDService()
	}
	return s, nil
}

// AppendService adds a service to the list of services.
func (s *Server) AppendService(name string, srv Service) {
	s.diag.Debug("appending service", keyvalue.KV("service", name))
	s.Services = append(s.Services, srv)
}

func (s *Server) appendStorageService() {
	srv := storage.NewService(s.config.Storage)
	s.StorageService = srv
	s.AppendService("storage", srv)
}

func (s *Server) appendRecipientsService() {
	srv := recipients.NewService()
	srv.StorageService = s.StorageService
	s.RecipientsService = srv
	s.AppendService("recipients", srv)
}

func (s *Server) appendSMTPService() {
	srv := smtp.NewService(s.config.SMTP, s.DiagService.NewSMTPHandler())
	s.SMTPService = srv
	s.AppendService("smtp", srv)
}

func (s *Server) appendTwilioService() {
	srv := twilio.NewService(s.config.Twilio, s.DiagService.NewTwilioHandler())
	s.TwilioService = srv
	s.AppendService("twilio", srv)
}

func (s *Server) initDispatcher() error {
	m := dispatch.NewMetrics()
	if err := registerAll(s.Registry, m.Collectors()); err != nil {
		return errors.Wrap(err, "failed to register dispatch metrics")
	}
	d, err := dispatch.New(
		s.config.Dispatch,
		s.RecipientsService,
		s.DiagService.NewDispatchHandler(),
		[]alert.Sender{s.TwilioService.Sender(), s.SMTPService.Sender()},
		dispatch.WithMetrics(m),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create dispatcher")
	}
	s.Dispatcher = d
	s.Trigger = dispatch.NewTrigger(d)
	return nil
}

func (s *Server) appendAlertsService() {
	srv := alerts.NewService(s.DiagService.NewAlertsHandler())
	srv.StorageService = s.StorageService
	srv.Listener = s.Trigger
	s.AlertsService = srv
	s.AppendService("alerts", srv)
}

func (s *Server) appendHTTPDService() {
	srv := httpd.NewService(s.config.HTTP, s.DiagService.NewHTTPDHandler())
	srv.Handler.AlertsService = s.AlertsService
	srv.Handler.RecipientsService = s.RecipientsService
	srv.Handler.Gatherer = s.Registry
	s.HTTPDService = srv
	s.AppendService("httpd", srv)
}

func registerAll(r prometheus.Registerer, cs []prometheus.Collector) error {
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Err returns an error channel that multiplexes all out of band errors received from all services.
func (s *Server) Err() <-chan error { return s.err }

// Open opens all the services.
func (s *Server) Open() error {
	if err := s.startServices(); err != nil {
		s.Close()
		return err
	}
	go s.watchServices()
	return nil
}

func (s *Server) startServices() error {
	for _, service := range s.Services {
		s.diag.Debug("opening service", keyvalue.KV("service", fmt.Sprintf("%T", service)))
		if err := service.Open(); err != nil {
			return fmt.Errorf("open service %T: %s", service, err)
		}
		s.diag.Debug("opened service", keyvalue.KV("service", fmt.Sprintf("%T", service)))
	}
	return nil
}

func (s *Server) watchServices() {
	if s.HTTPDService == nil {
		return
	}
	s.err <- <-s.HTTPDService.Err()
}

// Close shuts down the services in reverse order.
// Closing the alerts service waits for in flight dispatch cycles.
func (s *Server) Close() error {
	var firstErr error
	for i := len(s.Services) - 1; i >= 0; i-- {
		service := s.Services[i]
		s.diag.Debug("closing service", keyvalue.KV("service", fmt.Sprintf("%T", service)))
		if err := service.Close(); err != nil {
			s.diag.Error("error closing service", err, keyvalue.KV("service", fmt.Sprintf("%T", service)))
			if firstErr == nil {
				firstErr = err
			}
		}
		s.diag.Debug("closed service", keyvalue.KV("service", fmt.Sprintf("%T", service)))
	}
	return firstErr
}

// Dispatch runs one dispatch cycle for a directly, without storing an alert document.
func (s *Server) Dispatch(ctx context.Context, a alert.Alert) (dispatch.Summary, error) {
	return s.Dispatcher.Dispatch(ctx, a)
}

// Service represents a service attached to the server.
type Service interface {
	Open() error
	Close() error
}
