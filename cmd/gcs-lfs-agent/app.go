package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/gcs-lfs-agent/internal/auth"
	"github.com/andresuchdata/gcs-lfs-agent/internal/config"
	"github.com/andresuchdata/gcs-lfs-agent/internal/storage"
	"github.com/andresuchdata/gcs-lfs-agent/internal/transfer"
	"github.com/andresuchdata/gcs-lfs-agent/pkg/logger"
)

// agent holds the protocol streams. stdout carries nothing but responses.
type agent struct {
	in  io.Reader
	out io.Writer
}

func newApp(in io.Reader, out io.Writer) *cli.App {
	a := &agent{in: in, out: out}

	return &cli.App{
		Name:  "gcs-lfs-agent",
		Usage: "Git LFS custom transfer agent backed by Google Cloud Storage",
		// Help and version output must never interleave with protocol responses.
		Writer:    os.Stderr,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "bucket",
				Usage: "Bucket holding LFS objects (overrides GCS_BUCKET)",
			},
			&cli.StringFlag{
				Name:  "prefix",
				Usage: "Object name prefix (overrides GCS_OBJECT_PREFIX)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: trace, debug, info, warn, error (overrides LOG_LEVEL)",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Optional dotenv file read before the environment",
				Value: ".env",
			},
		},
		Action: a.run,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Serve transfer requests on stdin/stdout (default)",
				Action: a.run,
			},
			{
				Name:   "check",
				Usage:  "Fetch one access token and report the result on stderr",
				Action: a.check,
			},
		},
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("env-file"), config.Overrides{
		"GCS_BUCKET":        c.String("bucket"),
		"GCS_OBJECT_PREFIX": c.String("prefix"),
		"LOG_LEVEL":         c.String("log-level"),
	})
	if err != nil {
		return config.Config{}, &configError{err: err}
	}

	logger.SetFormat(cfg.Log.Format)
	logger.SetLevel(cfg.Log.Level)
	return cfg, nil
}

func (a *agent) run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := logger.Component("agent")

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A blocked read on stdin does not observe ctx; closing it does.
	go func() {
		<-ctx.Done()
		if closer, ok := a.in.(io.Closer); ok {
			_ = closer.Close()
		}
	}()

	if cfg.Storage.Bucket == "" {
		log.Warn().Msg("GCS_BUCKET is not set, every transfer will fail")
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return &configError{err: err}
	}

	log.Info().
		Str("bucket", cfg.Storage.Bucket).
		Str("prefix", cfg.Storage.Prefix).
		Str("backend", cfg.Storage.Backend).
		Str("auth", cfg.Auth.Mode).
		Msg("agent starting")

	dispatcher := transfer.NewDispatcher(store, cfg.Transfer.StagingDir, a.out, logger.Component("dispatcher"))
	loop := transfer.NewLoop(a.in, dispatcher, logger.Component("loop"))

	if err := loop.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("interrupted: %w", ctx.Err())
		}
		return err
	}
	log.Info().Msg("agent exiting")
	return nil
}

func (a *agent) check(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := logger.Component("check")

	tokens, err := auth.NewProvider(c.Context, cfg.Auth, logger.Component("auth"))
	if err != nil {
		return &configError{err: err}
	}

	ctx, cancel := context.WithTimeout(c.Context, cfg.Auth.TokenTimeout)
	defer cancel()

	token, err := tokens.Token(ctx)
	if err != nil {
		return err
	}
	log.Info().
		Str("auth", cfg.Auth.Mode).
		Int("token_length", len(token)).
		Str("bucket", cfg.Storage.Bucket).
		Msg("access token acquired")
	return nil
}

// newStore builds the ObjectStorage selected by the configured backend.
func newStore(ctx context.Context, cfg config.Config) (storage.ObjectStorage, error) {
	switch cfg.Storage.Backend {
	case config.BackendInterop:
		client, err := storage.NewInteropClient(storage.InteropConfig{
			Endpoint:  cfg.Storage.Interop.Endpoint,
			AccessKey: cfg.Storage.Interop.AccessKey,
			SecretKey: cfg.Storage.Interop.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			Prefix:    cfg.Storage.Prefix,
			Region:    cfg.Storage.Interop.Region,
			UseSSL:    cfg.Storage.Interop.UseSSL,
			ChunkSize: cfg.Transfer.ChunkSize,
		}, logger.Component("interop"))
		if err != nil {
			return nil, err
		}
		return client, nil

	default:
		tokens, err := auth.NewProvider(ctx, cfg.Auth, logger.Component("auth"))
		if err != nil {
			return nil, err
		}
		return storage.NewGCSClient(storage.GCSConfig{
			BaseURL:   cfg.Storage.BaseURL,
			Bucket:    cfg.Storage.Bucket,
			Prefix:    cfg.Storage.Prefix,
			ChunkSize: cfg.Transfer.ChunkSize,
			Timeout:   cfg.Transfer.HTTPTimeout,
		}, tokens, logger.Component("gcs")), nil
	}
}
