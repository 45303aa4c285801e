package storage

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/gcs-lfs-agent/internal/storage/gcstest"
)

func TestNewInteropClientValidation(t *testing.T) {
	_, err := NewInteropClient(InteropConfig{AccessKey: "a", SecretKey: "b"}, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewInteropClient(InteropConfig{Endpoint: "storage.googleapis.com"}, zerolog.Nop())
	assert.Error(t, err)

	c, err := NewInteropClient(InteropConfig{
		Endpoint:  "https://storage.googleapis.com/",
		AccessKey: "GOOG1EXAMPLE",
		SecretKey: "secret",
		Bucket:    "bkt",
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "storage.googleapis.com", c.client.EndpointURL().Host)
	assert.Equal(t, "https", c.client.EndpointURL().Scheme)
}

func TestInteropErrorMapping(t *testing.T) {
	err := interopError("interop download", minio.ErrorResponse{
		StatusCode: http.StatusNotFound,
		Code:       "NoSuchKey",
		Message:    "The specified key does not exist.",
	})

	var te *TransferError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusNotFound, te.Status)
	assert.Equal(t, "NoSuchKey", te.Body)
	assert.Equal(t, "The specified key does not exist.", te.Message)

	plain := errors.New("dial tcp: refused")
	err = interopError("interop upload", plain)
	assert.ErrorIs(t, err, plain)
	assert.False(t, errors.As(err, &te))
}

func TestInteropWithoutBucket(t *testing.T) {
	c, err := NewInteropClient(InteropConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"}, zerolog.Nop())
	require.NoError(t, err)

	assert.ErrorIs(t, c.DownloadObject(context.Background(), "oid", filepath.Join(t.TempDir(), "x")), ErrBucketNotConfigured)
	_, err = c.UploadObject(context.Background(), "oid", "x")
	assert.ErrorIs(t, err, ErrBucketNotConfigured)
}

func TestInteropUploadMissingFile(t *testing.T) {
	c, err := NewInteropClient(InteropConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "bkt"}, zerolog.Nop())
	require.NoError(t, err)

	_, err = c.UploadObject(context.Background(), "oid", filepath.Join(t.TempDir(), "missing"))
	var fsErr *FilesystemError
	require.ErrorAs(t, err, &fsErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

const testAccessKey = "GOOG1TESTKEY"

func newInteropTestClient(t *testing.T, srv *gcstest.S3Server, accessKey string) *InteropClient {
	t.Helper()
	c, err := NewInteropClient(InteropConfig{
		Endpoint:  srv.URL,
		AccessKey: accessKey,
		SecretKey: "hmac-secret",
		Bucket:    testBucket,
		Prefix:    testPrefix,
		ChunkSize: 4,
	}, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestInteropDownload(t *testing.T) {
	srv := gcstest.NewS3Server(testAccessKey)
	defer srv.Close()
	srv.Put(testBucket, testPrefix+"/"+testOID, []byte("interop payload"))

	c := newInteropTestClient(t, srv, testAccessKey)
	dest := filepath.Join(t.TempDir(), "ab", "12", testOID)

	require.NoError(t, c.DownloadObject(context.Background(), testOID, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "interop payload", string(data))

	reqs := srv.Requests()
	require.NotEmpty(t, reqs)
	assert.Equal(t, http.MethodGet, reqs[len(reqs)-1].Method)
	assert.Equal(t, "/"+testBucket+"/"+testPrefix+"/"+testOID, reqs[len(reqs)-1].Path)
	assert.Contains(t, reqs[len(reqs)-1].Authorization, "Credential="+testAccessKey+"/")
}

func TestInteropUploadReportsLocalSize(t *testing.T) {
	srv := gcstest.NewS3Server(testAccessKey)
	defer srv.Close()

	src := filepath.Join(t.TempDir(), "blob")
	payload := []byte(strings.Repeat("q", 42))
	require.NoError(t, os.WriteFile(src, payload, 0o644))

	c := newInteropTestClient(t, srv, testAccessKey)
	size, err := c.UploadObject(context.Background(), testOID, src)
	require.NoError(t, err)
	assert.Equal(t, int64(42), size)

	stored, ok := srv.Object(testBucket, testPrefix+"/"+testOID)
	require.True(t, ok)
	assert.Equal(t, payload, stored)
}

func TestInteropDownloadMissingObject(t *testing.T) {
	srv := gcstest.NewS3Server(testAccessKey)
	defer srv.Close()

	c := newInteropTestClient(t, srv, testAccessKey)
	dest := filepath.Join(t.TempDir(), "out")

	err := c.DownloadObject(context.Background(), testOID, dest)

	var te *TransferError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusNotFound, te.Status)
	assert.Equal(t, "NoSuchKey", te.Body)
	assert.NoFileExists(t, dest)
}

func TestInteropRejectedKey(t *testing.T) {
	srv := gcstest.NewS3Server(testAccessKey)
	defer srv.Close()

	src := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	c := newInteropTestClient(t, srv, "GOOG1WRONG")
	_, err := c.UploadObject(context.Background(), testOID, src)

	var te *TransferError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusForbidden, te.Status)
	assert.Equal(t, "InvalidAccessKeyId", te.Body)
	_, ok := srv.Object(testBucket, testPrefix+"/"+testOID)
	assert.False(t, ok)
}
