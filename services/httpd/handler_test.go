package httpd_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anjihan3601K/suraksha/alert"
	"github.com/anjihan3601K/suraksha/services/alerts"
	"github.com/anjihan3601K/suraksha/services/httpd"
	"github.com/anjihan3601K/suraksha/services/recipients"
	"github.com/anjihan3601K/suraksha/services/storage/storagetest"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type httpDiag struct {
	mu       sync.Mutex
	requests []string
	errs     []string
}

func (d *httpDiag) NewHTTPServerErrorLogger() *log.Logger { return log.New(io.Discard, "", 0) }
func (d *httpDiag) StartingService()                      {}
func (d *httpDiag) StoppedService()                       {}
func (d *httpDiag) ShutdownTimeout()                      {}
func (d *httpDiag) ListeningOn(addr string)               {}

func (d *httpDiag) HTTP(host string, start time.Time, method, uri, proto string, status int, userAgent, reqID string, duration time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, method+" "+uri)
}

func (d *httpDiag) Error(msg string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs = append(d.errs, msg)
}

type alertsDiag struct{}

func (alertsDiag) Created(id, title string, severity alert.Severity) {}
func (alertsDiag) ListenerFailed(id string, err error)               {}
func (alertsDiag) Error(msg string, err error)                       {}

type recorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *recorder) OnAlertCreated(ctx context.Context, id string, payload map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return nil
}

type fixture struct {
	server     *httptest.Server
	alerts     *alerts.Service
	recipients *recipients.Service
	listener   *recorder
	diag       *httpDiag
}

func newFixture(t *testing.T) *fixture {
	store := storagetest.New(t)

	rs := recipients.NewService()
	rs.StorageService = store
	require.NoError(t, rs.Open())

	l := new(recorder)
	as := alerts.NewService(alertsDiag{})
	as.StorageService = store
	as.Listener = l
	require.NoError(t, as.Open())
	t.Cleanup(func() { as.Close() })

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "suraksha_test_total", Help: "test"}))

	d := new(httpDiag)
	h := httpd.NewHandler(true, d)
	h.AlertsService = as
	h.RecipientsService = rs
	h.Gatherer = reg

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return &fixture{server: ts, alerts: as, recipients: rs, listener: l, diag: d}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.server.URL+httpd.BasePath+path, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHandler_Ping(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, "GET", "/ping", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Request-Id"))

	f.diag.mu.Lock()
	defer f.diag.mu.Unlock()
	assert.Equal(t, []string{"GET " + httpd.BasePath + "/ping"}, f.diag.requests)
}

func TestHandler_NotFound(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, "GET", "/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"not found"}`, string(body))
}

func TestHandler_CreateAlert(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, "POST", "/alerts", `{"title":"Flood Warning","message":"Move to higher ground","severity":"high"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var doc alerts.Document
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, alert.High, doc.Severity)

	f.alerts.Wait()
	f.listener.mu.Lock()
	assert.Equal(t, []string{doc.ID}, f.listener.ids)
	f.listener.mu.Unlock()

	resp, body = f.do(t, "GET", "/alerts/"+doc.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got alerts.Document
	require.NoError(t, json.Unmarshal(body, &got))
	if !cmp.Equal(doc, got) {
		t.Errorf("unexpected document -want/+got:\n%s", cmp.Diff(doc, got))
	}

	resp, body = f.do(t, "GET", "/alerts", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Alerts []alerts.Document `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Alerts, 1)
	assert.Equal(t, doc.ID, list.Alerts[0].ID)

	resp, _ = f.do(t, "DELETE", "/alerts/"+doc.ID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = f.do(t, "GET", "/alerts/"+doc.ID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_CreateAlertInvalid(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"title":`},
		{name: "missing title", body: `{"message":"m"}`},
		{name: "unknown severity", body: `{"title":"t","message":"m","severity":"extreme"}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			resp, _ := f.do(t, "POST", "/alerts", tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			f.alerts.Wait()
			assert.Empty(t, f.listener.ids)
		})
	}
}

func TestHandler_ListAlertsEmpty(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, "GET", "/alerts?offset=0&limit=10", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"alerts":[]}`, string(body))

	resp, _ = f.do(t, "GET", "/alerts?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_Recipients(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, "POST", "/recipients", `{"id":"asha","name":"Asha","phone":"9876543210"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"id":"asha","name":"Asha","phone":"9876543210"}`, string(body))

	resp, _ = f.do(t, "POST", "/recipients", `{"id":"asha","name":"Asha"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = f.do(t, "PUT", "/recipients/asha", `{"name":"Asha K","email":"asha@example.com"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = f.do(t, "GET", "/recipients/asha", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"id":"asha","name":"Asha K","email":"asha@example.com"}`, string(body))

	resp, _ = f.do(t, "PUT", "/recipients/asha", `{"id":"other","name":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, "PUT", "/recipients/missing", `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = f.do(t, "GET", "/recipients?pattern=a*", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"recipients":[{"id":"asha","name":"Asha K","email":"asha@example.com"}]}`, string(body))

	resp, _ = f.do(t, "DELETE", "/recipients/asha", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = f.do(t, "GET", "/recipients/asha", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = f.do(t, "GET", "/recipients", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"recipients":[]}`, string(body))
}

func TestHandler_Metrics(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "suraksha_test_total 0")
}

func TestHandler_ClosedServices(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.alerts.Close())
	resp, _ := f.do(t, "GET", "/alerts/abc", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandler_InvalidRecipient(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, "POST", "/recipients", `{"id":"a/b","name":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))

	resp, body = f.do(t, "POST", "/recipients", `{"id":"asha","email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
}

type failingAlerts struct{ err error }

func (s failingAlerts) Create(a alert.Alert) (alerts.Document, error) { return alerts.Document{}, s.err }
func (s failingAlerts) Get(id string) (alerts.Document, error)        { return alerts.Document{}, s.err }
func (s failingAlerts) Delete(id string) error                        { return s.err }
func (s failingAlerts) List(offset, limit int) ([]alerts.Document, error) {
	return nil, s.err
}

type failingRecipients struct{ err error }

func (s failingRecipients) Create(r alert.Recipient) (alert.Recipient, error) {
	return alert.Recipient{}, s.err
}
func (s failingRecipients) Replace(r alert.Recipient) error         { return s.err }
func (s failingRecipients) Get(id string) (alert.Recipient, error)  { return alert.Recipient{}, s.err }
func (s failingRecipients) Delete(id string) error                  { return s.err }
func (s failingRecipients) List(pattern string, offset, limit int) ([]alert.Recipient, error) {
	return nil, s.err
}

func TestHandler_UnexpectedServiceError(t *testing.T) {
	storeErr := errors.New("read /var/lib/suraksha/suraksha.db: input/output error")
	h := httpd.NewHandler(false, new(httpDiag))
	h.AlertsService = failingAlerts{err: storeErr}
	h.RecipientsService = failingRecipients{err: storeErr}
	ts := httptest.NewServer(h)
	defer ts.Close()

	testCases := []struct {
		method, path, body string
	}{
		{method: "POST", path: "/alerts", body: `{"title":"t","message":"m","severity":"high"}`},
		{method: "GET", path: "/alerts/abc"},
		{method: "DELETE", path: "/alerts/abc"},
		{method: "GET", path: "/alerts"},
		{method: "POST", path: "/recipients", body: `{"id":"asha","name":"Asha"}`},
		{method: "PUT", path: "/recipients/asha", body: `{"name":"Asha"}`},
		{method: "GET", path: "/recipients/asha"},
		{method: "DELETE", path: "/recipients/asha"},
		{method: "GET", path: "/recipients"},
	}
	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			var r io.Reader
			if tc.body != "" {
				r = strings.NewReader(tc.body)
			}
			req, err := http.NewRequest(tc.method, ts.URL+httpd.BasePath+tc.path, r)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			assert.JSONEq(t, `{"error":"read /var/lib/suraksha/suraksha.db: input/output error"}`, string(body))
		})
	}
}
