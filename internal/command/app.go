package command

import (
	"context"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/adeilh/go-lsbible/lsbible"
)

// NewGlobalFlags returns the flags shared by every subcommand.
func NewGlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "path to lsbible.yaml",
			Sources: cli.EnvVars("LSBIBLE_CONFIG"),
		},
		&cli.StringFlag{
			Name:  "cache",
			Usage: "cache backend: memory, bounded, file, redis, postgres, s3 or none",
		},
		&cli.StringFlag{
			Name:  "base-url",
			Usage: "LSBible API base URL",
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "print raw JSON instead of text",
			HideDefault: true,
		},
	}
}

func InitApp(_ context.Context) *cli.Command {
	app := &cli.Command{
		Name:    "lsbible",
		Usage:   "Legacy Standard Bible client with a pluggable response cache",
		Version: lsbible.Version,
		Flags:   NewGlobalFlags(),
		Commands: []*cli.Command{
			VerseCommandBuilder(),
			ChapterCommandBuilder(),
			PassageCommandBuilder(),
			SearchCommandBuilder(),
			ServeCommandBuilder(),
			CacheCommandBuilder(),
		},
	}

	// Make sure flags are sorted for the --help text.
	for _, cmd := range app.Commands {
		sort.Slice(cmd.Flags, func(i, j int) bool {
			return cmd.Flags[i].Names()[0] < cmd.Flags[j].Names()[0]
		})
	}

	return app
}
