package auth

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/andresuchdata/gcs-lfs-agent/internal/config"
)

// NewProvider returns the TokenProvider selected by cfg.Mode.
func NewProvider(ctx context.Context, cfg config.AuthConfig, log zerolog.Logger) (TokenProvider, error) {
	switch cfg.Mode {
	case config.AuthGcloud:
		return NewCommandProvider(cfg.TokenCommand, cfg.TokenTimeout, log), nil
	case config.AuthADC:
		p, err := NewADCProvider(ctx)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.AuthServiceAccount:
		p, err := NewServiceAccountProvider(ctx, cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}
