package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GCS_BUCKET", "lfs-objects")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"), nil)
	require.NoError(t, err)

	assert.Equal(t, "lfs-objects", cfg.Storage.Bucket)
	assert.Equal(t, "", cfg.Storage.Prefix)
	assert.Equal(t, "https://storage.googleapis.com", cfg.Storage.BaseURL)
	assert.Equal(t, BackendJSON, cfg.Storage.Backend)
	assert.Equal(t, AuthGcloud, cfg.Auth.Mode)
	assert.Equal(t, []string{"gcloud", "auth", "print-access-token"}, cfg.Auth.TokenCommand)
	assert.Equal(t, 30*time.Second, cfg.Auth.TokenTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Transfer.HTTPTimeout)
	assert.Equal(t, 8192, cfg.Transfer.ChunkSize)
	assert.Equal(t, ".git/lfs/objects", cfg.Transfer.StagingDir)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadMissingBucketIsAllowed(t *testing.T) {
	t.Setenv("GCS_BUCKET", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"), nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.Storage.Bucket)
}

func TestLoadOverridesWinOverEnvironment(t *testing.T) {
	t.Setenv("GCS_BUCKET", "from-env")
	t.Setenv("GCS_OBJECT_PREFIX", "team/lfs")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"), Overrides{
		"GCS_BUCKET":        "from-flag",
		"GCS_OBJECT_PREFIX": "",
	})
	require.NoError(t, err)

	assert.Equal(t, "from-flag", cfg.Storage.Bucket)
	assert.Equal(t, "team/lfs", cfg.Storage.Prefix, "empty overrides are ignored")
}

func TestLoadTrimsPrefixAndBaseURL(t *testing.T) {
	t.Setenv("GCS_OBJECT_PREFIX", "/PIFSC/SOD/git_lfs_test/")
	t.Setenv("GCS_BASE_URL", "http://localhost:4443/")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"), nil)
	require.NoError(t, err)

	assert.Equal(t, "PIFSC/SOD/git_lfs_test", cfg.Storage.Prefix)
	assert.Equal(t, "http://localhost:4443", cfg.Storage.BaseURL)
}

func TestLoadReadsEnvFile(t *testing.T) {
	// godotenv never overrides variables that are already set, so make sure
	// the key is absent before loading and removed afterwards.
	require.NoError(t, os.Unsetenv("GCS_INTEROP_REGION"))
	t.Cleanup(func() { _ = os.Unsetenv("GCS_INTEROP_REGION") })

	envFile := filepath.Join(t.TempDir(), "agent.env")
	require.NoError(t, os.WriteFile(envFile, []byte("GCS_INTEROP_REGION=us-east1\n"), 0o600))

	cfg, err := Load(envFile, nil)
	require.NoError(t, err)
	assert.Equal(t, "us-east1", cfg.Storage.Interop.Region)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Storage:  StorageConfig{Backend: BackendJSON, BaseURL: "https://storage.googleapis.com"},
			Auth:     AuthConfig{Mode: AuthGcloud, TokenCommand: []string{"gcloud"}, TokenTimeout: time.Second},
			Transfer: TransferConfig{StagingDir: ".git/lfs/objects", ChunkSize: 8192, HTTPTimeout: time.Minute},
		}
	}

	cases := map[string]func(c *Config){
		"unknown backend":        func(c *Config) { c.Storage.Backend = "ftp" },
		"interop without keys":   func(c *Config) { c.Storage.Backend = BackendInterop; c.Storage.Interop.Endpoint = "x" },
		"unknown auth mode":      func(c *Config) { c.Auth.Mode = "magic" },
		"empty token command":    func(c *Config) { c.Auth.TokenCommand = nil },
		"service account no key": func(c *Config) { c.Auth.Mode = AuthServiceAccount },
		"zero chunk size":        func(c *Config) { c.Transfer.ChunkSize = 0 },
		"zero http timeout":      func(c *Config) { c.Transfer.HTTPTimeout = 0 },
		"zero token timeout":     func(c *Config) { c.Auth.TokenTimeout = 0 },
		"empty staging dir":      func(c *Config) { c.Transfer.StagingDir = "" },
	}

	require.NoError(t, valid().Validate())
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestValidateInteropWithKeys(t *testing.T) {
	c := Config{
		Storage: StorageConfig{
			Backend: BackendInterop,
			Interop: InteropConfig{Endpoint: "storage.googleapis.com", AccessKey: "GOOG1", SecretKey: "secret"},
		},
		Auth:     AuthConfig{Mode: AuthADC, TokenTimeout: time.Second},
		Transfer: TransferConfig{StagingDir: "objects", ChunkSize: 1, HTTPTimeout: time.Second},
	}
	assert.NoError(t, c.Validate())
}

func TestLoadRejectsBrokenEnvFile(t *testing.T) {
	dir := t.TempDir()
	malformed := filepath.Join(dir, "malformed.env")
	require.NoError(t, os.WriteFile(malformed, []byte("GCS-BUCKET=lfs\n"), 0o600))

	for name, path := range map[string]string{
		"malformed": malformed,
		"directory": dir,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(path, nil)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestTokenCommandForms(t *testing.T) {
	t.Setenv("GCS_TOKEN_COMMAND", `["/opt/Google Cloud SDK/bin/gcloud", "auth", "print-access-token", "--account=ci bot"]`)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"/opt/Google Cloud SDK/bin/gcloud", "auth", "print-access-token", "--account=ci bot"}, cfg.Auth.TokenCommand)

	t.Setenv("GCS_TOKEN_COMMAND", "  gcloud   auth print-access-token ")
	cfg, err = Load(filepath.Join(t.TempDir(), "missing.env"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"gcloud", "auth", "print-access-token"}, cfg.Auth.TokenCommand)

	t.Setenv("GCS_TOKEN_COMMAND", `["gcloud", 1]`)
	_, err = Load(filepath.Join(t.TempDir(), "missing.env"), nil)
	assert.ErrorIs(t, err, ErrInvalid)
}
