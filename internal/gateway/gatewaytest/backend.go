// Package gatewaytest provides an in-process fake of the clinical backend for tests.
package gatewaytest

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/contract"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/gateway"
	"go.uber.org/zap"
)

// Request is a request the fake backend received
type Request struct {
	Method      string
	Path        string
	ContentType string
	Body        []byte
	Form        map[string]string
	Files       map[string][]byte
}

// Backend is a programmable fake backend
type Backend struct {
	Server *httptest.Server

	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []Request
}

// NewBackend starts a fake backend that is shut down when the test ends
func NewBackend(t testing.TB) *Backend {
	b := &Backend{routes: make(map[string]http.HandlerFunc)}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Server.Close)
	return b
}

// Handle registers a handler for method and path
func (b *Backend) Handle(method, path string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[method+" "+path] = h
}

// JSON registers a fixed JSON answer for method and path
func (b *Backend) JSON(method, path string, status int, body string) {
	b.Handle(method, path, JSON(status, body))
}

// Requests returns every request received so far
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Request, len(b.requests))
	copy(out, b.requests)
	return out
}

// Count returns how many requests hit method and path
func (b *Backend) Count(method, path string) int {
	n := 0
	for _, r := range b.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// Last returns the most recent request for method and path
func (b *Backend) Last(method, path string) (Request, bool) {
	reqs := b.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Method == method && reqs[i].Path == path {
			return reqs[i], true
		}
	}
	return Request{}, false
}

// NewClient returns a gateway client pointed at the fake backend. Every
// response is checked against the backend contract.
func (b *Backend) NewClient(t testing.TB) *gateway.Client {
	t.Helper()
	client := gateway.NewClient(gateway.Config{BaseURL: b.Server.URL, Timeout: 2 * time.Second}, nil, zap.NewNop())
	validator, err := contract.NewValidator(zap.NewNop())
	if err != nil {
		t.Fatalf("failed to load backend contract: %v", err)
	}
	client.SetValidator(validator)
	return client
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	rec := Request{
		Method:      r.Method,
		Path:        r.URL.Path,
		ContentType: r.Header.Get("Content-Type"),
	}

	if strings.HasPrefix(rec.ContentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(10 << 20); err == nil {
			rec.Form = make(map[string]string)
			for key, values := range r.MultipartForm.Value {
				if len(values) > 0 {
					rec.Form[key] = values[0]
				}
			}
			rec.Files = make(map[string][]byte)
			for key, headers := range r.MultipartForm.File {
				if len(headers) == 0 {
					continue
				}
				f, err := headers[0].Open()
				if err != nil {
					continue
				}
				data, _ := io.ReadAll(f)
				f.Close()
				rec.Files[key] = data
			}
		}
	} else if r.Body != nil {
		rec.Body, _ = io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(rec.Body))
	}

	b.mu.Lock()
	b.requests = append(b.requests, rec)
	h, ok := b.routes[r.Method+" "+r.URL.Path]
	b.mu.Unlock()

	if !ok {
		JSON(http.StatusNotFound, `{"error": "not found"}`)(w, r)
		return
	}
	h(w, r)
}

// JSON returns a handler answering with a fixed JSON body
func JSON(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

// Sequence answers successive requests with successive handlers, repeating the last one
func Sequence(handlers ...http.HandlerFunc) http.HandlerFunc {
	var mu sync.Mutex
	next := 0
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		h := handlers[next]
		if next < len(handlers)-1 {
			next++
		}
		mu.Unlock()
		h(w, r)
	}
}
