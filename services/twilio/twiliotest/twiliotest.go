// Package twiliotest is a fake of the Twilio messages API.
package twiliotest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

type Server struct {
	mu       sync.Mutex
	ts       *httptest.Server
	URL      string
	requests []Request
	failures map[string]Failure
	closed   bool
}

// Request is a received message request.
type Request struct {
	AccountSID string
	Username   string
	Password   string
	To         string
	From       string
	Body       string
}

// Failure is returned for requests to a failing number.
type Failure struct {
	Status  int
	Code    int
	Message string
}

func NewServer() *Server {
	s := &Server{
		failures: make(map[string]Failure),
	}
	s.ts = httptest.NewServer(http.HandlerFunc(s.handle))
	s.URL = s.ts.URL
	return s
}

// FailFor makes requests to number fail with f.
func (s *Server) FailFor(number string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[number] = f
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if r.Method != http.MethodPost || len(parts) != 4 || parts[0] != "2010-04-01" || parts[1] != "Accounts" || parts[3] != "Messages.json" {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{"code": 20404, "message": "The requested resource was not found", "status": 404})
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	req := Request{
		AccountSID: parts[2],
		To:         r.PostForm.Get("To"),
		From:       r.PostForm.Get("From"),
		Body:       r.PostForm.Get("Body"),
	}
	req.Username, req.Password, _ = r.BasicAuth()

	s.mu.Lock()
	s.requests = append(s.requests, req)
	n := len(s.requests)
	f, fail := s.failures[req.To]
	s.mu.Unlock()

	if fail {
		w.WriteHeader(f.Status)
		json.NewEncoder(w).Encode(map[string]interface{}{"code": f.Code, "message": f.Message, "status": f.Status})
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"sid":    fmt.Sprintf("SM%032d", n),
		"status": "queued",
		"to":     req.To,
		"from":   req.From,
		"body":   req.Body,
	})
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) Close() {
	s.mu.Lock()
	closed := s.closed
	s.closed = true
	s.mu.Unlock()
	if !closed {
		s.ts.Close()
	}
}
