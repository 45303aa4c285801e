package transfer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/gcs-lfs-agent/internal/domain"
)

// StagingPath is the content-addressed location for oid under root:
// root/ab/12/ab12... Short oids are placed directly under root.
func StagingPath(root, oid string) string {
	if len(oid) < 4 {
		return filepath.Join(root, oid)
	}
	return filepath.Join(root, oid[0:2], oid[2:4], oid)
}

// checkFields rejects upload and download events whose oid or path is not
// a string.
func checkFields(ev domain.Event) error {
	if err := ev.FieldError(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	return nil
}

// validateOID rejects oids that cannot be used as a single path segment.
func validateOID(oid string) error {
	switch {
	case oid == "":
		return fmt.Errorf("%w: missing oid", ErrInvalidEvent)
	case oid == "." || oid == "..":
		return fmt.Errorf("%w: invalid oid %q", ErrInvalidEvent, oid)
	case strings.ContainsAny(oid, `/\`):
		return fmt.Errorf("%w: oid %q contains a path separator", ErrInvalidEvent, oid)
	}
	return nil
}
