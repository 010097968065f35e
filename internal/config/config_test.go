package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adeilh/go-lsbible/lsbible"
)

// isolate points every lookup location at an empty temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("LSBIBLE_CONFIG", "")
	t.Setenv("LSBIBLE_CACHE", "")
	t.Setenv("LSBIBLE_CACHE_DIR", "")
	t.Setenv("LSBIBLE_ADMIN_TOKEN", "")
	return dir
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Source)
	assert.Equal(t, lsbible.DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, lsbible.TTLBibleContent, cfg.Cache.DefaultTTL)
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestLoadExplicitFile(t *testing.T) {
	home := isolate(t)

	cfg, err := Load(filepath.Join("testdata", "full.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://example.test", cfg.BaseURL)
	assert.Equal(t, BackendRedis, cfg.Cache.Backend)
	assert.Equal(t, 3600, cfg.Cache.DefaultTTL)
	assert.Equal(t, lsbible.TTLSearchResults, cfg.Cache.TTL.Search)
	assert.Zero(t, cfg.Cache.TTL.Verse)
	assert.EqualValues(t, 500, cfg.Cache.Capacity)
	assert.Equal(t, filepath.Join(home, "lsbible-cache"), cfg.Cache.Dir)
	assert.Equal(t, RedisConfig{Addr: "redis.internal:6379", Password: "hunter2", DB: 2, Prefix: "scripture"}, cfg.Cache.Redis)
	assert.Equal(t, "verses", cfg.Cache.S3.Bucket)
	assert.Equal(t, "lsbible/", cfg.Cache.S3.Prefix, "unset keys keep their defaults")
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Address)
	assert.Equal(t, "from-file", cfg.Server.AdminToken)
	assert.Equal(t, []string{"https://reader.test"}, cfg.Server.CORSOrigins)

	co := cfg.CacheOptions()
	assert.Equal(t, 3600, co.DefaultTTL)
	assert.Equal(t, lsbible.TTLSearchResults, co.TTL.Search)
}

func TestLoadSearchOrder(t *testing.T) {
	home := isolate(t)
	homeFile := filepath.Join(home, fileName)
	require.NoError(t, os.WriteFile(homeFile, []byte("cache: {backend: none}\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, homeFile, cfg.Source)
	assert.Equal(t, BackendNone, cfg.Cache.Backend)

	envFile := filepath.Join(t.TempDir(), "env.yaml")
	require.NoError(t, os.WriteFile(envFile, []byte("cache: {backend: bounded}\n"), 0o600))
	t.Setenv("LSBIBLE_CONFIG", envFile)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, envFile, cfg.Source)
	assert.Equal(t, BackendBounded, cfg.Cache.Backend)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join("testdata", "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	t.Setenv("LSBIBLE_CACHE", "file")
	t.Setenv("LSBIBLE_CACHE_DIR", dir)
	t.Setenv("LSBIBLE_ADMIN_TOKEN", "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendFile, cfg.Cache.Backend)
	assert.Equal(t, dir, cfg.Cache.Dir)
	assert.Equal(t, "s3cret", cfg.Server.AdminToken)
}

func TestNegativeTTLIsRejected(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join("testdata", "negative_ttl.yaml"))
	require.ErrorIs(t, err, ErrInvalidTTL)
	assert.Contains(t, err.Error(), "cache.ttl.passage")
}

func TestUnknownKeyIsRejected(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join("testdata", "typo.yaml"))
	assert.ErrorContains(t, err, "backnd")
}

func TestValidateBackends(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"memory", func(c *Config) {}, nil},
		{"unknown", func(c *Config) { c.Cache.Backend = "memcached" }, ErrUnknownBackend},
		{"file without dir", func(c *Config) { c.Cache.Backend = BackendFile; c.Cache.Dir = "" }, ErrMissingParam},
		{"redis without addr", func(c *Config) { c.Cache.Backend = BackendRedis; c.Cache.Redis.Addr = "" }, ErrMissingParam},
		{"redis url only", func(c *Config) {
			c.Cache.Backend = BackendRedis
			c.Cache.Redis.Addr = ""
			c.Cache.Redis.URL = "redis://cache:6379/1"
		}, nil},
		{"postgres without dsn", func(c *Config) { c.Cache.Backend = BackendPostgres }, ErrMissingParam},
		{"postgres with dsn", func(c *Config) {
			c.Cache.Backend = BackendPostgres
			c.Cache.Postgres.DSN = "postgres://localhost/lsbible"
		}, nil},
		{"s3 without bucket", func(c *Config) { c.Cache.Backend = BackendS3 }, ErrMissingParam},
		{"negative default", func(c *Config) { c.Cache.DefaultTTL = -1 }, ErrInvalidTTL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
