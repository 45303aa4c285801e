package storage

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// loggingTransport logs every storage request. Query strings and headers are
// left out so tokens never reach the log.
type loggingTransport struct {
	base http.RoundTripper
	log  zerolog.Logger
}

func newLoggingTransport(base http.RoundTripper, log zerolog.Logger) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &loggingTransport{base: base, log: log}
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)

	ev := t.log.Debug().
		Str("method", req.Method).
		Str("host", req.URL.Host).
		Str("path", req.URL.EscapedPath()).
		Dur("latency", time.Since(start))
	if err != nil {
		ev.Err(err).Msg("request failed")
		return nil, err
	}
	ev.Int("status", resp.StatusCode).
		Int64("content_length", resp.ContentLength).
		Msg("request processed")
	return resp, nil
}
