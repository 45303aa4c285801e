// internal/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Backends and auth modes understood by the agent.
const (
	BackendJSON    = "json"
	BackendInterop = "interop"

	AuthGcloud         = "gcloud"
	AuthADC            = "adc"
	AuthServiceAccount = "service-account"
)

// Config is built once at startup and passed by value to every component.
type Config struct {
	Storage  StorageConfig
	Auth     AuthConfig
	Transfer TransferConfig
	Log      LogConfig
}

type StorageConfig struct {
	Bucket  string
	Prefix  string
	BaseURL string
	Backend string
	Interop InteropConfig
}

type InteropConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type AuthConfig struct {
	Mode            string
	TokenCommand    []string
	CredentialsFile string
	TokenTimeout    time.Duration
}

type TransferConfig struct {
	// StagingDir is where downloads land when the event carries no path.
	StagingDir  string
	ChunkSize   int
	HTTPTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// Overrides are applied on top of the environment, typically from CLI flags.
// Keys are the environment variable names.
type Overrides map[string]string

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Load reads envFile (if present), the process environment and overrides.
func Load(envFile string, overrides Overrides) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	// A missing .env file is fine; an unreadable or malformed one is not.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("%w: env file %s: %w", ErrInvalid, envFile, err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	for k, val := range overrides {
		if val != "" {
			v.Set(k, val)
		}
	}

	return FromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("GCS_BUCKET", "")
	v.SetDefault("GCS_OBJECT_PREFIX", "")
	v.SetDefault("GCS_BASE_URL", "https://storage.googleapis.com")
	v.SetDefault("GCS_BACKEND", BackendJSON)
	v.SetDefault("GCS_AUTH_MODE", AuthGcloud)
	v.SetDefault("GCS_TOKEN_COMMAND", "gcloud auth print-access-token")
	v.SetDefault("GCS_CREDENTIALS_FILE", "")
	v.SetDefault("GCS_TOKEN_TIMEOUT", "30s")
	v.SetDefault("GCS_HTTP_TIMEOUT", "30m")
	v.SetDefault("GCS_INTEROP_ENDPOINT", "storage.googleapis.com")
	v.SetDefault("GCS_INTEROP_REGION", "auto")
	v.SetDefault("GCS_INTEROP_USE_SSL", true)
	v.SetDefault("GCS_HMAC_ACCESS_KEY", "")
	v.SetDefault("GCS_HMAC_SECRET", "")
	v.SetDefault("LFS_STORAGE_DIR", ".git/lfs/objects")
	v.SetDefault("TRANSFER_CHUNK_SIZE", 8192)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

// FromViper builds and validates a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	tokenCommand, err := parseCommand(v.GetString("GCS_TOKEN_COMMAND"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Storage: StorageConfig{
			Bucket:  strings.TrimSpace(v.GetString("GCS_BUCKET")),
			Prefix:  strings.Trim(v.GetString("GCS_OBJECT_PREFIX"), "/"),
			BaseURL: strings.TrimSuffix(v.GetString("GCS_BASE_URL"), "/"),
			Backend: strings.ToLower(v.GetString("GCS_BACKEND")),
			Interop: InteropConfig{
				Endpoint:  v.GetString("GCS_INTEROP_ENDPOINT"),
				Region:    v.GetString("GCS_INTEROP_REGION"),
				AccessKey: v.GetString("GCS_HMAC_ACCESS_KEY"),
				SecretKey: v.GetString("GCS_HMAC_SECRET"),
				UseSSL:    v.GetBool("GCS_INTEROP_USE_SSL"),
			},
		},
		Auth: AuthConfig{
			Mode:            strings.ToLower(v.GetString("GCS_AUTH_MODE")),
			TokenCommand:    tokenCommand,
			CredentialsFile: v.GetString("GCS_CREDENTIALS_FILE"),
			TokenTimeout:    v.GetDuration("GCS_TOKEN_TIMEOUT"),
		},
		Transfer: TransferConfig{
			StagingDir:  v.GetString("LFS_STORAGE_DIR"),
			ChunkSize:   v.GetInt("TRANSFER_CHUNK_SIZE"),
			HTTPTimeout: v.GetDuration("GCS_HTTP_TIMEOUT"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parseCommand reads GCS_TOKEN_COMMAND. A value starting with "[" is a JSON
// array of arguments, for paths or arguments containing spaces; anything else
// is split on whitespace.
func parseCommand(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") {
		return strings.Fields(s), nil
	}
	var argv []string
	if err := json.Unmarshal([]byte(s), &argv); err != nil {
		return nil, fmt.Errorf("%w: GCS_TOKEN_COMMAND is not a JSON string array: %w", ErrInvalid, err)
	}
	return argv, nil
}

// Validate reports the first problem found. A missing bucket is not an error
// here: init and terminate still work without one.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendJSON:
		if c.Storage.BaseURL == "" {
			return fmt.Errorf("%w: GCS_BASE_URL must not be empty", ErrInvalid)
		}
	case BackendInterop:
		if c.Storage.Interop.AccessKey == "" || c.Storage.Interop.SecretKey == "" {
			return fmt.Errorf("%w: interop backend requires GCS_HMAC_ACCESS_KEY and GCS_HMAC_SECRET", ErrInvalid)
		}
		if c.Storage.Interop.Endpoint == "" {
			return fmt.Errorf("%w: GCS_INTEROP_ENDPOINT must not be empty", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalid, c.Storage.Backend)
	}

	switch c.Auth.Mode {
	case AuthGcloud:
		if len(c.Auth.TokenCommand) == 0 {
			return fmt.Errorf("%w: GCS_TOKEN_COMMAND must not be empty", ErrInvalid)
		}
	case AuthADC:
	case AuthServiceAccount:
		if c.Auth.CredentialsFile == "" {
			return fmt.Errorf("%w: service-account auth requires GCS_CREDENTIALS_FILE", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown auth mode %q", ErrInvalid, c.Auth.Mode)
	}

	if c.Auth.TokenTimeout <= 0 {
		return fmt.Errorf("%w: GCS_TOKEN_TIMEOUT must be positive", ErrInvalid)
	}
	if c.Transfer.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: GCS_HTTP_TIMEOUT must be positive", ErrInvalid)
	}
	if c.Transfer.ChunkSize <= 0 {
		return fmt.Errorf("%w: TRANSFER_CHUNK_SIZE must be positive", ErrInvalid)
	}
	if c.Transfer.StagingDir == "" {
		return fmt.Errorf("%w: LFS_STORAGE_DIR must not be empty", ErrInvalid)
	}
	return nil
}
