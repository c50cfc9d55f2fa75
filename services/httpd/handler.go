package httpd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/anjihan3601K/suraksha/alert"
	"github.com/anjihan3601K/suraksha/services/alerts"
	"github.com/anjihan3601K/suraksha/services/recipients"
	"github.com/google/uuid"
	"github.com/influxdata/httprouter"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const BasePath = "/suraksha/v1"

const (
	pingPath          = BasePath + "/ping"
	metricsPath       = BasePath + "/metrics"
	alertsPath        = BasePath + "/alerts"
	alertsIDPath      = alertsPath + "/:id"
	recipientsPath    = BasePath + "/recipients"
	recipientsIDPath  = recipientsPath + "/:id"
	defaultListLimit  = 100
	maxRequestBodyLen = 1 << 20
)

type AlertsService interface {
	Create(a alert.Alert) (alerts.Document, error)
	Get(id string) (alerts.Document, error)
	Delete(id string) error
	List(offset, limit int) ([]alerts.Document, error)
}

type RecipientsService interface {
	Create(r alert.Recipient) (alert.Recipient, error)
	Replace(r alert.Recipient) error
	Get(id string) (alert.Recipient, error)
	Delete(id string) error
	List(pattern string, offset, limit int) ([]alert.Recipient, error)
}

// Handler serves the suraksha HTTP API.
type Handler struct {
	AlertsService     AlertsService
	RecipientsService RecipientsService
	Gatherer          prometheus.Gatherer

	router         *httprouter.Router
	loggingEnabled bool
	diag           Diagnostic
}

func NewHandler(loggingEnabled bool, d Diagnostic) *Handler {
	h := &Handler{
		router:         httprouter.New(),
		loggingEnabled: loggingEnabled,
		diag:           d,
	}
	h.router.PanicHandler = h.panicHandler
	h.router.NotFound = http.HandlerFunc(h.serve404)

	h.router.HandlerFunc("GET", pingPath, h.servePing)
	h.router.HandlerFunc("HEAD", pingPath, h.servePing)
	h.router.HandlerFunc("GET", metricsPath, h.serveMetrics)

	h.router.HandlerFunc("GET", alertsPath, h.handleListAlerts)
	h.router.HandlerFunc("POST", alertsPath, h.handleCreateAlert)
	h.router.HandlerFunc("GET", alertsIDPath, h.handleGetAlert)
	h.router.HandlerFunc("DELETE", alertsIDPath, h.handleDeleteAlert)

	h.router.HandlerFunc("GET", recipientsPath, h.handleListRecipients)
	h.router.HandlerFunc("POST", recipientsPath, h.handleCreateRecipient)
	h.router.HandlerFunc("GET", recipientsIDPath, h.handleGetRecipient)
	h.router.HandlerFunc("PUT", recipientsIDPath, h.handleReplaceRecipient)
	h.router.HandlerFunc("DELETE", recipientsIDPath, h.handleDeleteRecipient)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := uuid.NewString()
	w.Header().Set("Request-Id", reqID)

	l := &responseLogger{w: w}
	h.router.ServeHTTP(l, r)

	if h.loggingEnabled {
		h.diag.HTTP(
			r.RemoteAddr,
			start,
			r.Method,
			r.URL.RequestURI(),
			r.Proto,
			l.Status(),
			r.UserAgent(),
			reqID,
			time.Since(start),
		)
	}
}

func (h *Handler) panicHandler(w http.ResponseWriter, r *http.Request, rcv interface{}) {
	h.diag.Error("panic serving "+r.URL.String(), fmt.Errorf("%v", rcv))
	HttpError(w, "a panic has occurred", http.StatusInternalServerError)
}

func (h *Handler) serve404(w http.ResponseWriter, r *http.Request) {
	HttpError(w, "not found", http.StatusNotFound)
}

func (h *Handler) servePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) serveMetrics(w http.ResponseWriter, r *http.Request) {
	if h.Gatherer == nil {
		HttpError(w, "metrics are not enabled", http.StatusNotFound)
		return
	}
	promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

func (h *Handler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pagination(r)
	if err != nil {
		HttpError(w, err.Error(), http.StatusBadRequest)
		return
	}
	docs, err := h.AlertsService.List(offset, limit)
	if err != nil {
		HttpError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []alerts.Document{}
	}
	writeJSON(w, http.StatusOK, struct {
		Alerts []alerts.Document `json:"alerts"`
	}{docs})
}

func (h *Handler) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var a alert.Alert
	if err := decodeBody(w, r, &a); err != nil {
		HttpError(w, err.Error(), http.StatusBadRequest)
		return
	}
	doc, err := h.AlertsService.Create(a)
	if err != nil {
		HttpError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *Handler) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	doc, err := h.AlertsService.Get(param(r, "id"))
	if err != nil {
		HttpError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	if err := h.AlertsService.Delete(param(r, "id")); err != nil {
		HttpError(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListRecipients(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pagination(r)
	if err != nil {
		HttpError(w, err.Error(), http.StatusBadRequest)
		return
	}
	list, err := h.RecipientsService.List(r.URL.Query().Get("pattern"), offset, limit)
	if err != nil {
		HttpError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []alert.Recipient{}
	}
	writeJSON(w, http.StatusOK, struct {
		Recipients []alert.Recipient `json:"recipients"`
	}{list})
}

func (h *Handler) handleCreateRecipient(w http.ResponseWriter, r *http.Request) {
	var rec alert.Recipient
	if err := decodeBody(w, r, &rec); err != nil {
		HttpError(w, err.Error(), http.StatusBadRequest)
		return
	}
	created, err := h.RecipientsService.Create(rec)
	if err != nil {
		HttpError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGetRecipient(w http.ResponseWriter, r *http.Request) {
	rec, err := h.RecipientsService.Get(param(r, "id"))
	if err != nil {
		HttpError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleReplaceRecipient(w http.ResponseWriter, r *http.Request) {
	var rec alert.Recipient
	if err := decodeBody(w, r, &rec); err != nil {
		HttpError(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := param(r, "id")
	if rec.ID != "" && rec.ID != id {
		HttpError(w, "recipient ID cannot be changed", http.StatusBadRequest)
		return
	}
	rec.ID = id
	if err := h.RecipientsService.Replace(rec); err != nil {
		HttpError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleDeleteRecipient(w http.ResponseWriter, r *http.Request) {
	if err := h.RecipientsService.Delete(param(r, "id")); err != nil {
		HttpError(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func param(r *http.Request, name string) string {
	return httprouter.ParamsFromContext(r.Context()).ByName(name)
}

func pagination(r *http.Request) (offset, limit int, err error) {
	q := r.URL.Query()
	limit = defaultListLimit
	if s := q.Get("offset"); s != "" {
		if offset, err = strconv.Atoi(s); err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q", s)
		}
	}
	if s := q.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit < 0 {
			return 0, 0, fmt.Errorf("invalid limit %q", s)
		}
	}
	return offset, limit, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyLen))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

// statusFor maps service errors to a status code, unknown errors are server faults.
func statusFor(err error) int {
	switch {
	case errors.Is(err, alerts.ErrInvalidAlert), errors.Is(err, recipients.ErrInvalidRecipient):
		return http.StatusBadRequest
	case errors.Is(err, alerts.ErrNoAlertExists), errors.Is(err, recipients.ErrNoRecipientExists):
		return http.StatusNotFound
	case errors.Is(err, alerts.ErrAlertExists), errors.Is(err, recipients.ErrRecipientExists):
		return http.StatusConflict
	case errors.Is(err, alerts.ErrNotOpen), errors.Is(err, recipients.ErrNotOpen):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(MarshalJSON(v))
}

// MarshalJSON will marshal v to JSON, falling back to an error document.
func MarshalJSON(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		type errResponse struct {
			Error string `json:"error"`
		}
		b, _ = json.Marshal(errResponse{Error: err.Error()})
	}
	return b
}

// HttpError writes an error to the client in a standard format.
func HttpError(w http.ResponseWriter, err string, code int) {
	type errResponse struct {
		Error string `json:"error"`
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	b, _ := json.Marshal(errResponse{Error: err})
	w.Write(b)
}

// responseLogger records the status code written to w.
type responseLogger struct {
	w      http.ResponseWriter
	status int
}

func (l *responseLogger) Header() http.Header {
	return l.w.Header()
}

func (l *responseLogger) Write(b []byte) (int, error) {
	if l.status == 0 {
		l.status = http.StatusOK
	}
	return l.w.Write(b)
}

func (l *responseLogger) WriteHeader(s int) {
	l.w.WriteHeader(s)
	l.status = s
}

func (l *responseLogger) Status() int {
	if l.status == 0 {
		return http.StatusOK
	}
	return l.status
}
