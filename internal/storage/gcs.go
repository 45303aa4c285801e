package storage

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/andresuchdata/gcs-lfs-agent/internal/auth"
)

// GCSConfig encapsulates what the JSON API client needs.
type GCSConfig struct {
	BaseURL   string
	Bucket    string
	Prefix    string
	ChunkSize int
	Timeout   time.Duration
	// Transport is the base round tripper; http.DefaultTransport when nil.
	Transport http.RoundTripper
}

// GCSClient implements ObjectStorage against the Cloud Storage JSON and XML
// APIs. Downloads try the public URL first and fall back to an authenticated
// request when the public URL answers 403. Uploads are always authenticated.
type GCSClient struct {
	cfg    GCSConfig
	tokens auth.TokenProvider
	log    zerolog.Logger
	public *http.Client
}

// NewGCSClient builds a client. An empty bucket is accepted; every transfer
// then fails with ErrBucketNotConfigured.
func NewGCSClient(cfg GCSConfig, tokens auth.TokenProvider, log zerolog.Logger) *GCSClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	cfg.Transport = newLoggingTransport(cfg.Transport, log)

	return &GCSClient{
		cfg:    cfg,
		tokens: tokens,
		log:    log,
		public: &http.Client{Transport: cfg.Transport, Timeout: cfg.Timeout},
	}
}

var _ ObjectStorage = (*GCSClient)(nil)

// Locate returns the locator for oid.
func (c *GCSClient) Locate(oid string) ObjectLocator {
	return NewObjectLocator(c.cfg.BaseURL, c.cfg.Bucket, objectName(c.cfg.Prefix, oid))
}

// authorized returns a client that asks the token provider for a fresh token
// on every request.
func (c *GCSClient) authorized(ctx context.Context) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: auth.TokenSource(ctx, c.tokens),
			Base:   c.cfg.Transport,
		},
		Timeout: c.cfg.Timeout,
	}
}

// DownloadObject fetches oid into destPath.
func (c *GCSClient) DownloadObject(ctx context.Context, oid, destPath string) error {
	if c.cfg.Bucket == "" {
		return ErrBucketNotConfigured
	}
	loc := c.Locate(oid)
	log := c.log.With().Str("oid", oid).Str("object", loc.Name()).Logger()

	resp, err := c.get(ctx, c.public, loc.PublicURL())
	if err != nil {
		return fmt.Errorf("public download of %s: %w", loc.Name(), err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		log.Debug().Str("tier", "public").Msg("object found")
	case http.StatusForbidden:
		resp.Body.Close()
		log.Debug().Msg("public download denied, retrying with credentials")

		resp, err = c.get(ctx, c.authorized(ctx), loc.PrivateURL())
		if err != nil {
			return fmt.Errorf("authenticated download of %s: %w", loc.Name(), err)
		}
		if resp.StatusCode != http.StatusOK {
			return newTransferError("authenticated download", resp)
		}
		log.Debug().Str("tier", "authenticated").Msg("object found")
	default:
		return newTransferError("public download", resp)
	}
	defer resp.Body.Close()

	n, err := writeFile(destPath, resp.Body, c.cfg.ChunkSize)
	if err != nil {
		return err
	}
	log.Info().Str("path", destPath).Int64("bytes", n).Msg("download complete")
	return nil
}

func (c *GCSClient) get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return client.Do(req)
}

// UploadObject sends srcPath as oid with a single media upload request.
func (c *GCSClient) UploadObject(ctx context.Context, oid, srcPath string) (int64, error) {
	if c.cfg.Bucket == "" {
		return 0, ErrBucketNotConfigured
	}
	loc := c.Locate(oid)

	f, err := os.Open(srcPath)
	if err != nil {
		return 0, &FilesystemError{Op: "open", Path: srcPath, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, &FilesystemError{Op: "stat", Path: srcPath, Err: err}
	}
	size := info.Size()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loc.UploadURL(), f)
	if err != nil {
		return 0, err
	}
	req.ContentLength = size
	if size == 0 {
		req.Body = http.NoBody
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.authorized(ctx).Do(req)
	if err != nil {
		return 0, fmt.Errorf("upload of %s: %w", loc.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, newTransferError("upload", resp)
	}
	resp.Body.Close()

	c.log.Info().
		Str("oid", oid).
		Str("object", loc.Name()).
		Int64("bytes", size).
		Msg("upload complete")
	return size, nil
}
