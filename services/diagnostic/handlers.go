package diagnostic

import (
	"log"
	"runtime"
	"time"

	"github.com/anjihan3601K/suraksha/alert"
	"github.com/anjihan3601K/suraksha/dispatch"
	"github.com/anjihan3601K/suraksha/keyvalue"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func fields(ctx []keyvalue.T) []zap.Field {
	fs := make([]zap.Field, len(ctx))
	for i, kv := range ctx {
		fs[i] = zap.String(kv.Key, kv.Value)
	}
	return fs
}

// Dispatch handler

type DispatchHandler struct {
	l *zap.Logger
}

func (h *DispatchHandler) Transition(cycleID string, from, to dispatch.State) {
	h.l.Debug("dispatch state transition",
		zap.String("cycle", cycleID),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
}

func (h *DispatchHandler) NoRecipients(cycleID, title string) {
	h.l.Info("no recipients found, nothing to send",
		zap.String("cycle", cycleID),
		zap.String("title", title),
	)
}

func (h *DispatchHandler) ResolveFailed(cycleID string, err error) {
	h.l.Error("failed to resolve recipients", zap.String("cycle", cycleID), zap.Error(err))
}

func (h *DispatchHandler) JobFailed(cycleID string, o alert.Outcome) {
	h.l.Error("failed to send notification",
		zap.String("cycle", cycleID),
		zap.String("recipient", o.Job.RecipientID),
		zap.Stringer("channel", o.Job.Channel),
		zap.String("contact", o.Job.Contact),
		zap.String("error", o.Err),
	)
}

func (h *DispatchHandler) CycleDone(s dispatch.Summary) {
	h.l.Info("alert dispatched",
		zap.String("cycle", s.CycleID),
		zap.String("title", s.Alert.Title),
		zap.Stringer("severity", s.Alert.Severity),
		zap.Int("recipients", s.Recipients),
		zap.Int("jobs", s.Jobs),
		zap.Int("succeeded", s.Succeeded),
		zap.Int("failed", s.Failed),
		zap.Duration("duration", s.Duration),
	)
}

func (h *DispatchHandler) EmptyPayload(alertID string) {
	h.l.Info("no data associated with the event", zap.String("alert", alertID))
}

func (h *DispatchHandler) MalformedPayload(alertID string, err error) {
	h.l.Error("skipping malformed alert", zap.String("alert", alertID), zap.Error(err))
}

// Alerts handler

type AlertsHandler struct {
	l *zap.Logger
}

func (h *AlertsHandler) Created(id, title string, severity alert.Severity) {
	h.l.Info("alert created",
		zap.String("alert", id),
		zap.String("title", title),
		zap.Stringer("severity", severity),
	)
}

func (h *AlertsHandler) ListenerFailed(id string, err error) {
	h.l.Error("alert creation handler failed", zap.String("alert", id), zap.Error(err))
}

func (h *AlertsHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

// SMTP handler

type SMTPHandler struct {
	l *zap.Logger
}

func (h *SMTPHandler) Sent(recipientID, to string) {
	h.l.Debug("email sent", zap.String("recipient", recipientID), zap.String("to", to))
}

func (h *SMTPHandler) SendFailed(recipientID, to string, err error) {
	h.l.Error("failed to send email",
		zap.String("recipient", recipientID),
		zap.String("to", to),
		zap.Error(err),
	)
}

func (h *SMTPHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

// Twilio handler

type TwilioHandler struct {
	l *zap.Logger
}

func (h *TwilioHandler) Sent(recipientID, to, sid string) {
	h.l.Debug("sms sent",
		zap.String("recipient", recipientID),
		zap.String("to", to),
		zap.String("sid", sid),
	)
}

func (h *TwilioHandler) SendFailed(recipientID, to string, err error) {
	h.l.Error("failed to send sms",
		zap.String("recipient", recipientID),
		zap.String("to", to),
		zap.Error(err),
	)
}

// HTTPD handler

type HTTPDHandler struct {
	l *zap.Logger
}

func (h *HTTPDHandler) NewHTTPServerErrorLogger() *log.Logger {
	l, err := zap.NewStdLogAt(h.l.With(zap.String("service", "httpd_server_errors")), zapcore.ErrorLevel)
	if err != nil {
		return zap.NewStdLog(h.l)
	}
	return l
}

func (h *HTTPDHandler) StartingService() {
	h.l.Info("starting HTTP service")
}

func (h *HTTPDHandler) StoppedService() {
	h.l.Info("closed HTTP service")
}

func (h *HTTPDHandler) ShutdownTimeout() {
	h.l.Error("shutdown timed out, forcefully closing all remaining connections")
}

func (h *HTTPDHandler) ListeningOn(addr string) {
	h.l.Info("listening on", zap.String("addr", addr))
}

func (h *HTTPDHandler) HTTP(
	host string,
	start time.Time,
	method string,
	uri string,
	proto string,
	status int,
	userAgent string,
	reqID string,
	duration time.Duration,
) {
	h.l.Info("http request",
		zap.String("host", host),
		zap.Time("start", start),
		zap.String("method", method),
		zap.String("uri", uri),
		zap.String("protocol", proto),
		zap.Int("status", status),
		zap.String("user-agent", userAgent),
		zap.String("request-id", reqID),
		zap.Duration("duration", duration),
	)
}

func (h *HTTPDHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

// Server handler

type ServerHandler struct {
	l *zap.Logger
}

func (h *ServerHandler) Error(msg string, err error, ctx ...keyvalue.T) {
	h.l.Error(msg, append(fields(ctx), zap.Error(err))...)
}

func (h *ServerHandler) Info(msg string, ctx ...keyvalue.T) {
	h.l.Info(msg, fields(ctx)...)
}

func (h *ServerHandler) Debug(msg string, ctx ...keyvalue.T) {
	h.l.Debug(msg, fields(ctx)...)
}

// Cmd handler

type CmdHandler struct {
	l *zap.Logger
}

func (h *CmdHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

func (h *CmdHandler) Starting(version, commit string) {
	h.l.Info("suraksha starting", zap.String("version", version), zap.String("commit", commit))
}

func (h *CmdHandler) GoVersion() {
	h.l.Info("go version", zap.String("version", runtime.Version()))
}

func (h *CmdHandler) Info(msg string) {
	h.l.Info(msg)
}
