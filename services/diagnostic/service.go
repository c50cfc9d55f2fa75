package diagnostic

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Service owns the root logger and hands out the diagnostic handlers
// of every other service.
type Service struct {
	c      Config
	stdout io.Writer
	stderr io.Writer

	level  zap.AtomicLevel
	logger *zap.Logger
	closer io.Closer
}

func NewService(c Config, stdout, stderr io.Writer) *Service {
	return &Service{
		c:      c,
		stdout: stdout,
		stderr: stderr,
		level:  zap.NewAtomicLevel(),
		logger: zap.NewNop(),
	}
}

func (s *Service) Open() error {
	var output io.Writer
	switch s.c.File {
	case "STDERR":
		output = s.stderr
	case "STDOUT":
		output = s.stdout
	default:
		if err := os.MkdirAll(filepath.Dir(s.c.File), 0755); err != nil {
			return err
		}
		f, err := os.OpenFile(s.c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return err
		}
		output = f
		s.closer = f
	}

	if err := s.SetLevel(s.c.Level); err != nil {
		return err
	}

	encConfig := zap.NewProductionEncoderConfig()
	encConfig.TimeKey = "ts"
	encConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encConfig.EncodeDuration = zapcore.StringDurationEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(s.c.Format) {
	case "logfmt", "":
		encoder = zaplogfmt.NewEncoder(encConfig)
	case "json":
		encoder = zapcore.NewJSONEncoder(encConfig)
	default:
		return fmt.Errorf("unknown log format %s", s.c.Format)
	}

	s.logger = zap.New(zapcore.NewCore(encoder, zapcore.AddSync(output), s.level))
	return nil
}

func (s *Service) Close() error {
	_ = s.logger.Sync()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// Logger returns the root logger.
func (s *Service) Logger() *zap.Logger {
	return s.logger
}

func (s *Service) SetLevel(level string) error {
	l, err := parseLevel(level)
	if err != nil {
		return err
	}
	s.level.SetLevel(l)
	return nil
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zap.DebugLevel, nil
	case "INFO":
		return zap.InfoLevel, nil
	case "WARN":
		return zap.WarnLevel, nil
	case "ERROR":
		return zap.ErrorLevel, nil
	}
	return 0, fmt.Errorf("unknown logging level %s", level)
}

func (s *Service) service(name string) *zap.Logger {
	return s.logger.With(zap.String("service", name))
}

func (s *Service) NewDispatchHandler() *DispatchHandler {
	return &DispatchHandler{l: s.service("dispatch")}
}

func (s *Service) NewAlertsHandler() *AlertsHandler {
	return &AlertsHandler{l: s.service("alerts")}
}

func (s *Service) NewSMTPHandler() *SMTPHandler {
	return &SMTPHandler{l: s.service("smtp")}
}

func (s *Service) NewTwilioHandler() *TwilioHandler {
	return &TwilioHandler{l: s.service("twilio")}
}

func (s *Service) NewHTTPDHandler() *HTTPDHandler {
	return &HTTPDHandler{l: s.service("http")}
}

func (s *Service) NewServerHandler() *ServerHandler {
	return &ServerHandler{l: s.service("server")}
}

func (s *Service) NewCmdHandler() *CmdHandler {
	return &CmdHandler{l: s.service("run")}
}
