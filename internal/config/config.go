package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"gopkg.in/yaml.v3"

	"github.com/adeilh/go-lsbible/lsbible"
)

const fileName = "lsbible.yaml"

// Backend names accepted by cache.backend.
const (
	BackendMemory   = "memory"
	BackendBounded  = "bounded"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
	BackendNone     = "none"
)

var (
	ErrInvalidTTL     = errors.New("config: ttl must not be negative")
	ErrUnknownBackend = errors.New("config: unknown cache backend")
	ErrMissingParam   = errors.New("config: missing backend parameter")
)

type Config struct {
	// Source is the file the config was read from, empty for defaults.
	Source  string       `yaml:"-"`
	BaseURL string       `yaml:"base_url"`
	Cache   CacheConfig  `yaml:"cache"`
	Server  ServerConfig `yaml:"server"`
}

type CacheConfig struct {
	Backend    string            `yaml:"backend"`
	DefaultTTL int               `yaml:"default_ttl"`
	TTL        lsbible.TTLConfig `yaml:"ttl"`
	Capacity   uint64            `yaml:"capacity"`
	Dir        string            `yaml:"dir"`
	Redis      RedisConfig       `yaml:"redis"`
	Postgres   PostgresConfig    `yaml:"postgres"`
	S3         S3Config          `yaml:"s3"`
}

type RedisConfig struct {
	// URL, when set, takes precedence over Addr, Password and DB.
	URL      string `yaml:"url"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Profile  string `yaml:"profile"`
	Endpoint string `yaml:"endpoint"`
}

type ServerConfig struct {
	Address string `yaml:"address"`
	// AdminToken, when set, is required as a bearer token on DELETE /cache.
	AdminToken string `yaml:"admin_token"`
	// CORSOrigins enables CORS for the listed origins; "*" allows any.
	CORSOrigins []string `yaml:"cors_origins"`
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		BaseURL: lsbible.DefaultBaseURL,
		Cache: CacheConfig{
			Backend:    BackendMemory,
			DefaultTTL: lsbible.TTLBibleContent,
			Capacity:   10000,
			Dir:        defaultCacheDir(),
			Redis:      RedisConfig{Addr: "127.0.0.1:6379", Prefix: "lsbible"},
			S3:         S3Config{Prefix: "lsbible/"},
		},
		Server: ServerConfig{Address: ":8080"},
	}
}

// Load reads the config from path, or from the first file found in the
// standard locations when path is empty. A missing file in the standard
// locations is not an error; an explicit path that cannot be read is.
// Environment overrides are applied and the result validated before return.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("LSBIBLE_CONFIG")
	}
	if path == "" {
		path = findConfigPath()
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decode(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.Source = path
		log.Debugf("using config file: %s", path)
	}

	cfg.applyEnv()
	cfg.Cache.Dir = expandHome(cfg.Cache.Dir)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode overlays raw onto cfg. Unknown keys are rejected so typos surface.
func decode(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LSBIBLE_CACHE"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv("LSBIBLE_CACHE_DIR"); v != "" {
		c.Cache.Dir = v
	}
	if v := os.Getenv("LSBIBLE_ADMIN_TOKEN"); v != "" {
		c.Server.AdminToken = v
	}
}

// Validate reports the first problem found with c.
func (c Config) Validate() error {
	ttls := []struct {
		name string
		v    int
	}{
		{"default_ttl", c.Cache.DefaultTTL},
		{"ttl.verse", c.Cache.TTL.Verse},
		{"ttl.passage", c.Cache.TTL.Passage},
		{"ttl.chapter", c.Cache.TTL.Chapter},
		{"ttl.search", c.Cache.TTL.Search},
	}
	for _, t := range ttls {
		if t.v < 0 {
			return fmt.Errorf("%w: cache.%s = %d", ErrInvalidTTL, t.name, t.v)
		}
	}

	switch c.Cache.Backend {
	case BackendMemory, BackendBounded, BackendNone:
	case BackendFile:
		if c.Cache.Dir == "" {
			return fmt.Errorf("%w: cache.dir", ErrMissingParam)
		}
	case BackendRedis:
		if c.Cache.Redis.Addr == "" && c.Cache.Redis.URL == "" {
			return fmt.Errorf("%w: cache.redis.addr or cache.redis.url", ErrMissingParam)
		}
	case BackendPostgres:
		if c.Cache.Postgres.DSN == "" {
			return fmt.Errorf("%w: cache.postgres.dsn", ErrMissingParam)
		}
	case BackendS3:
		if c.Cache.S3.Bucket == "" {
			return fmt.Errorf("%w: cache.s3.bucket", ErrMissingParam)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Cache.Backend)
	}
	return nil
}

// CacheOptions maps the TTL settings onto lsbible.CacheOptions. The provider
// is left for the caller to build.
func (c Config) CacheOptions() lsbible.CacheOptions {
	return lsbible.CacheOptions{
		DefaultTTL: c.Cache.DefaultTTL,
		TTL:        c.Cache.TTL,
	}
}

func findConfigPath() string {
	candidates := []string{
		os.Getenv("XDG_CONFIG_HOME"),
		os.Getenv("HOME"),
	}

	for _, c := range candidates {
		if c == "" {
			continue
		}
		file := filepath.Join(c, fileName)
		if fileInfo, err := os.Stat(file); err == nil && !fileInfo.IsDir() {
			return file
		}
	}
	return ""
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "lsbible")
	}
	return filepath.Join(os.TempDir(), "lsbible")
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
