package command

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/adeilh/go-lsbible/cache"
)

func CacheCommandBuilder() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "inspect or empty the response cache",
		Commands: []*cli.Command{
			{
				Name:  "clear",
				Usage: "remove every cached response",
				Action: withRuntime(func(ctx context.Context, cmd *cli.Command, rt *Runtime) error {
					if err := rt.Client.ClearCache(ctx); err != nil {
						return err
					}
					fmt.Fprintf(cmd.Root().Writer, "cleared %s cache\n", rt.Backend.Name)
					return nil
				}),
			},
			{
				Name:  "stats",
				Usage: "show the backend and entry count",
				Action: withRuntime(func(ctx context.Context, cmd *cli.Command, rt *Runtime) error {
					st, err := CollectStats(ctx, rt.Backend)
					if err != nil {
						return err
					}
					return printStats(cmd, st)
				}),
			},
			{
				Name:  "sweep",
				Usage: "reclaim expired entries without reading them",
				Action: withRuntime(func(ctx context.Context, cmd *cli.Command, rt *Runtime) error {
					n, ok, err := Sweep(ctx, rt.Backend)
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintf(cmd.Root().Writer, "%s cache does not support sweeping\n", rt.Backend.Name)
						return nil
					}
					fmt.Fprintf(cmd.Root().Writer, "removed %s expired entries\n", humanize.Comma(n))
					return nil
				}),
			},
		},
	}
}

// Sweep removes expired entries from the file and postgres stores. The bool
// reports whether the backend supports sweeping at all.
func Sweep(ctx context.Context, b *Backend) (int64, bool, error) {
	sp, ok := b.Provider.(interface{ Store() cache.Store })
	if !ok {
		return 0, false, nil
	}
	switch s := sp.Store().(type) {
	case interface {
		Sweep(context.Context) (int, error)
	}:
		n, err := s.Sweep(ctx)
		return int64(n), err == nil, err
	case interface {
		DeleteExpired(context.Context) (int64, error)
	}:
		n, err := s.DeleteExpired(ctx)
		return n, err == nil, err
	}
	return 0, false, nil
}
