package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// InteropConfig encapsulates the connection info for an S3-compatible
// endpoint, such as the Cloud Storage XML API with HMAC keys.
type InteropConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	Region    string
	UseSSL    bool
	ChunkSize int
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// InteropClient implements ObjectStorage over the S3 protocol.
type InteropClient struct {
	client *minio.Client
	cfg    InteropConfig
	log    zerolog.Logger
}

// NewInteropClient builds a new InteropClient backed by minio-go.
func NewInteropClient(cfg InteropConfig, log zerolog.Logger) (*InteropClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("interop endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("interop HMAC credentials must be provided")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	secure := cfg.UseSSL
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		secure = true
	case strings.HasPrefix(endpoint, "http://"):
		secure = false
	}
	endpoint = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://"), "/")

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "auto"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    secure,
		Region:    region,
		Transport: newLoggingTransport(cfg.Transport, log),
	})
	if err != nil {
		return nil, fmt.Errorf("interop client: %w", err)
	}

	return &InteropClient{client: client, cfg: cfg, log: log}, nil
}

var _ ObjectStorage = (*InteropClient)(nil)

// DownloadObject downloads oid to destPath.
func (c *InteropClient) DownloadObject(ctx context.Context, oid, destPath string) error {
	if c.cfg.Bucket == "" {
		return ErrBucketNotConfigured
	}
	key := objectName(c.cfg.Prefix, oid)

	obj, err := c.client.GetObject(ctx, c.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return interopError("interop download", err)
	}
	defer obj.Close()

	// Stat forces the request so a missing object does not leave an empty
	// file behind.
	if _, err := obj.Stat(); err != nil {
		return interopError("interop download", err)
	}

	n, err := writeFile(destPath, obj, c.cfg.ChunkSize)
	if err != nil {
		var fsErr *FilesystemError
		if errors.As(err, &fsErr) {
			return err
		}
		return interopError("interop download", err)
	}
	c.log.Info().Str("oid", oid).Str("object", key).Str("path", destPath).Int64("bytes", n).Msg("download complete")
	return nil
}

// UploadObject uploads srcPath as oid.
func (c *InteropClient) UploadObject(ctx context.Context, oid, srcPath string) (int64, error) {
	if c.cfg.Bucket == "" {
		return 0, ErrBucketNotConfigured
	}
	key := objectName(c.cfg.Prefix, oid)

	f, err := os.Open(srcPath)
	if err != nil {
		return 0, &FilesystemError{Op: "open", Path: srcPath, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, &FilesystemError{Op: "stat", Path: srcPath, Err: err}
	}

	_, err = c.client.PutObject(ctx, c.cfg.Bucket, key, f, info.Size(), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return 0, interopError("interop upload", err)
	}
	c.log.Info().Str("oid", oid).Str("object", key).Int64("bytes", info.Size()).Msg("upload complete")
	return info.Size(), nil
}

// interopError maps S3 error responses to TransferError. Errors without an
// HTTP status (network failures) are wrapped unchanged.
func interopError(op string, err error) error {
	var resp minio.ErrorResponse
	if !errors.As(err, &resp) || resp.StatusCode == 0 {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &TransferError{
		Op:      op,
		Status:  resp.StatusCode,
		Body:    resp.Code,
		Message: resp.Message,
	}
}
