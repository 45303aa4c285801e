package gcstest

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

// S3Server is an in-memory stand-in for the Cloud Storage XML API in S3
// interoperability mode. Signatures are not verified, but requests must be
// signed with AccessKey.
type S3Server struct {
	*httptest.Server

	AccessKey string

	mu       sync.Mutex
	objects  map[string][]byte
	requests []Request
}

var lastModified = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// NewS3Server starts a server that accepts requests signed with accessKey.
func NewS3Server(accessKey string) *S3Server {
	s := &S3Server{
		AccessKey: accessKey,
		objects:   make(map[string][]byte),
	}

	r := mux.NewRouter()
	r.Use(s.record, s.requireKey)
	r.HandleFunc("/{bucket}/{key:.+}", s.get).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/{bucket}/{key:.+}", s.put).Methods(http.MethodPut)

	s.Server = httptest.NewServer(r)
	return s
}

// Put stores an object under bucket/key.
func (s *S3Server) Put(bucket, key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+key] = append([]byte(nil), data...)
}

// Object returns a stored object.
func (s *S3Server) Object(bucket, key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[bucket+"/"+key]
	return data, ok
}

// Requests returns the requests received so far.
func (s *S3Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *S3Server) record(next http.Handler) http.Handler {
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

func (s *S3Server) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Authorization"), "Credential="+s.AccessKey+"/") {
			writeS3Error(w, r, http.StatusForbidden, "InvalidAccessKeyId",
				"The AWS Access Key Id you provided does not exist in our records.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *S3Server) get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	s.mu.Lock()
	data, ok := s.objects[vars["bucket"]+"/"+vars["key"]]
	s.mu.Unlock()
	if !ok {
		writeS3Error(w, r, http.StatusNotFound, "NoSuchKey", "The specified key does not exist.")
		return
	}

	sum := md5.Sum(data)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("ETag", `"`+hex.EncodeToString(sum[:])+`"`)
	w.Header().Set("Last-Modified", lastModified.Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(data)
	}
}

func (s *S3Server) put(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") {
		data, err = decodeAWSChunked(r.Body)
	} else {
		data, err = io.ReadAll(r.Body)
	}
	if err != nil {
		writeS3Error(w, r, http.StatusBadRequest, "IncompleteBody", err.Error())
		return
	}

	s.Put(vars["bucket"], vars["key"], data)

	sum := md5.Sum(data)
	w.Header().Set("ETag", `"`+hex.EncodeToString(sum[:])+`"`)
	w.WriteHeader(http.StatusOK)
}

// decodeAWSChunked strips the aws-chunked framing used by streaming
// signatures: "<hex size>[;ext]\r\n<data>\r\n" until a zero-size chunk.
func decodeAWSChunked(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	var out bytes.Buffer
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read chunk header: %w", err)
		}
		sizeHex, _, _ := strings.Cut(strings.TrimRight(line, "\r\n"), ";")
		n, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("chunk size %q: %w", sizeHex, err)
		}
		if n == 0 {
			return out.Bytes(), nil
		}
		if _, err := io.CopyN(&out, br, n); err != nil {
			return nil, fmt.Errorf("read chunk: %w", err)
		}
		if _, err := br.Discard(2); err != nil {
			return nil, fmt.Errorf("read chunk trailer: %w", err)
		}
	}
}

func writeS3Error(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = fmt.Fprintf(w,
		`<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message><Resource>%s</Resource></Error>`,
		code, message, r.URL.Path)
}
