package command

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/adeilh/go-lsbible/cache"
	"github.com/adeilh/go-lsbible/internal/config"
	"github.com/adeilh/go-lsbible/lsbible"
)

// Runtime is everything a subcommand needs: the resolved config, the opened
// cache backend, and a client reading through it.
type Runtime struct {
	Config   config.Config
	Backend  *Backend
	Client   *lsbible.Client
	Registry *prometheus.Registry
}

// NewRuntime resolves config from the file and global flags, then opens the
// backend and builds the client.
func NewRuntime(ctx context.Context, cmd *cli.Command) (*Runtime, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if v := cmd.String("cache"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := cmd.String("base-url"); v != "" {
		cfg.BaseURL = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newRuntime(ctx, cfg)
}

func newRuntime(ctx context.Context, cfg config.Config) (*Runtime, error) {
	reg := prometheus.NewRegistry()
	backend, err := OpenBackend(ctx, cfg, cache.NewMetrics("lsbible", reg))
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", cfg.Cache.Backend, err)
	}

	co := cfg.CacheOptions()
	co.Provider = backend.Provider
	client, err := lsbible.NewClient(
		lsbible.WithBaseURL(cfg.BaseURL),
		lsbible.WithCache(co),
		lsbible.WithLogger(log.WithField("backend", backend.Name)),
	)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	return &Runtime{Config: cfg, Backend: backend, Client: client, Registry: reg}, nil
}

// Close releases the backend.
func (r *Runtime) Close() error {
	if r == nil || r.Backend == nil {
		return nil
	}
	return r.Backend.Close()
}

// withRuntime adapts fn into an action that owns a Runtime for its duration.
func withRuntime(fn func(context.Context, *cli.Command, *Runtime) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		rt, err := NewRuntime(ctx, cmd)
		if err != nil {
			return err
		}
		defer func() {
			if err := rt.Close(); err != nil {
				log.WithError(err).Warn("closing cache backend")
			}
		}()
		return fn(ctx, cmd, rt)
	}
}
