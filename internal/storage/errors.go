package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/api/googleapi"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 64 << 10

var ErrBucketNotConfigured = errors.New("bucket is not configured")

// TransferError is a non-success HTTP status returned by the object store.
type TransferError struct {
	Op     string
	URL    string
	Status int
	Body   string
	// Message is the decoded error message when the body is a JSON API error.
	Message string
}

func (e *TransferError) Error() string {
	detail := e.Message
	if detail == "" {
		detail = e.Body
	}
	if detail == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, detail)
}

// newTransferError reads and closes resp.Body.
func newTransferError(op string, resp *http.Response) *TransferError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()

	te := &TransferError{
		Op:     op,
		Status: resp.StatusCode,
		Body:   string(body),
	}
	if resp.Request != nil && resp.Request.URL != nil {
		te.URL = resp.Request.URL.Redacted()
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))
	var apiErr *googleapi.Error
	if errors.As(googleapi.CheckResponse(resp), &apiErr) {
		te.Message = apiErr.Message
	}
	return te
}

// FilesystemError is a local read or write failure.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}
