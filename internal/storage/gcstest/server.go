// Package gcstest provides an in-memory stand-in for the Cloud Storage
// endpoints used by the agent: public XML download, JSON API media download
// and JSON API media upload.
package gcstest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"

	"github.com/gorilla/mux"
)

// Request is a request seen by the server.
type Request struct {
	Method        string
	Path          string
	Query         url.Values
	Authorization string
	ContentType   string
}

// Server is a fake object store. Objects are keyed by "bucket/name".
type Server struct {
	*httptest.Server

	Token string

	mu        sync.Mutex
	objects   map[string][]byte
	public    map[string]bool
	requests  []Request
	statusFor map[string]int
}

// NewServer starts a server that accepts bearer token token.
func NewServer(token string) *Server {
	s := &Server{
		Token:     token,
		objects:   make(map[string][]byte),
		public:    make(map[string]bool),
		statusFor: make(map[string]int),
	}

	r := mux.NewRouter()
	r.UseEncodedPath()
	r.HandleFunc("/upload/storage/v1/b/{bucket}/o", s.upload).Methods(http.MethodPost)
	r.HandleFunc("/storage/v1/b/{bucket}/o/{object}", s.privateGet).Methods(http.MethodGet)
	r.HandleFunc("/{bucket}/{object}", s.publicGet).Methods(http.MethodGet)

	s.Server = httptest.NewServer(s.record(r))
	return s
}

// Route names accepted by FailWith.
const (
	RoutePublic  = "public"
	RoutePrivate = "private"
	RouteUpload  = "upload"
)

// Put stores an object. Public objects are readable without a token.
func (s *Server) Put(bucket, name string, data []byte, public bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := bucket + "/" + name
	s.objects[key] = append([]byte(nil), data...)
	s.public[key] = public
}

// Object returns a stored object.
func (s *Server) Object(bucket, name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[bucket+"/"+name]
	return data, ok
}

// FailWith makes every request on route answer status.
func (s *Server) FailWith(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusFor[route] = status
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			Path:          r.URL.EscapedPath(),
			Query:         r.URL.Query(),
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) forced(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusFor[route]
}

func (s *Server) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+s.Token
}

func objectKey(r *http.Request) (string, error) {
	vars := mux.Vars(r)
	bucket, err := url.PathUnescape(vars["bucket"])
	if err != nil {
		return "", err
	}
	name, err := url.PathUnescape(vars["object"])
	if err != nil {
		return "", err
	}
	return bucket + "/" + name, nil
}

func (s *Server) publicGet(w http.ResponseWriter, r *http.Request) {
	if status := s.forced(RoutePublic); status != 0 {
		writeXMLError(w, status)
		return
	}
	key, err := objectKey(r)
	if err != nil {
		writeXMLError(w, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	data, ok := s.objects[key]
	public := s.public[key]
	s.mu.Unlock()

	switch {
	case !ok:
		writeXMLError(w, http.StatusNotFound)
	case !public:
		writeXMLError(w, http.StatusForbidden)
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(data)
	}
}

func (s *Server) privateGet(w http.ResponseWriter, r *http.Request) {
	if status := s.forced(RoutePrivate); status != 0 {
		writeJSONError(w, status, "forced failure")
		return
	}
	if !s.authorized(r) {
		writeJSONError(w, http.StatusUnauthorized, "Invalid Credentials")
		return
	}
	if r.URL.Query().Get("alt") != "media" {
		writeJSONError(w, http.StatusBadRequest, "alt=media is required")
		return
	}
	key, err := objectKey(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	data, ok := s.objects[key]
	s.mu.Unlock()
	if !ok {
		writeJSONError(w, http.StatusNotFound, "No such object: "+key)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if status := s.forced(RouteUpload); status != 0 {
		writeJSONError(w, status, "forced failure")
		return
	}
	if !s.authorized(r) {
		writeJSONError(w, http.StatusUnauthorized, "Invalid Credentials")
		return
	}
	q := r.URL.Query()
	if q.Get("uploadType") != "media" || q.Get("name") == "" {
		writeJSONError(w, http.StatusBadRequest, "uploadType=media and name are required")
		return
	}
	bucket, err := url.PathUnescape(mux.Vars(r)["bucket"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	name := q.Get("name")
	s.Put(bucket, name, data, false)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"kind":   "storage#object",
		"bucket": bucket,
		"name":   name,
		"size":   fmt.Sprint(len(data)),
	})
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
		},
	})
}

func writeXMLError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, "<Error><Code>%s</Code></Error>", http.StatusText(status))
}
