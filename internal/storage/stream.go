package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultChunkSize is the buffer used when streaming object bodies to disk.
const DefaultChunkSize = 8 << 10

// writeFile streams r into path using chunkSize-byte reads. Parent
// directories are created. On failure the partially written file is left in
// place.
func writeFile(path string, r io.Reader, chunkSize int) (n int64, err error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, &FilesystemError{Op: "create directory for", Path: path, Err: err}
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, &FilesystemError{Op: "create", Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &FilesystemError{Op: "close", Path: path, Err: cerr}
		}
	}()

	return copyChunks(f, r, make([]byte, chunkSize), path)
}

// copyChunks is io.CopyBuffer without the ReaderFrom/WriterTo shortcuts, so
// memory stays bounded by buf and read and write failures can be told apart.
func copyChunks(dst io.Writer, src io.Reader, buf []byte, path string) (int64, error) {
	var written int64
	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, &FilesystemError{Op: "write", Path: path, Err: werr}
			}
			if nw != nr {
				return written, &FilesystemError{Op: "write", Path: path, Err: io.ErrShortWrite}
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return written, nil
			}
			return written, fmt.Errorf("read response body: %w", rerr)
		}
	}
}
