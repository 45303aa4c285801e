package transfer

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/andresuchdata/gcs-lfs-agent/internal/auth"
	"github.com/andresuchdata/gcs-lfs-agent/internal/storage"
)

// ErrInvalidEvent marks upload or download events missing required fields.
var ErrInvalidEvent = errors.New("invalid event")

// ProtocolError is a malformed input line. It stops the loop.
type ProtocolError struct {
	Line string
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed protocol line %q: %v", e.Line, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// errorCode picks the code reported in a failed complete event.
func errorCode(err error) int {
	var (
		te      *storage.TransferError
		credErr *auth.CredentialError
	)
	switch {
	case errors.As(err, &te):
		return te.Status
	case errors.As(err, &credErr):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidEvent), errors.Is(err, storage.ErrBucketNotConfigured):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
