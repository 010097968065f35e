package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/adeilh/go-lsbible/lsbible"
)

func VerseCommandBuilder() *cli.Command {
	return &cli.Command{
		Name:      "verse",
		Usage:     "print a single verse",
		ArgsUsage: "BOOK CHAPTER VERSE",
		Action: withRuntime(func(ctx context.Context, cmd *cli.Command, rt *Runtime) error {
			book, nums, err := splitReference(cmd.Args().Slice(), 2)
			if err != nil {
				return err
			}
			log.Debugf("verse %s %d:%d", book, nums[0], nums[1])
			p, err := rt.Client.GetVerse(ctx, book, nums[0], nums[1])
			if err != nil {
				return err
			}
			return printPassage(cmd, p)
		}),
	}
}

func ChapterCommandBuilder() *cli.Command {
	return &cli.Command{
		Name:      "chapter",
		Usage:     "print a whole chapter",
		ArgsUsage: "BOOK CHAPTER",
		Action: withRuntime(func(ctx context.Context, cmd *cli.Command, rt *Runtime) error {
			book, nums, err := splitReference(cmd.Args().Slice(), 1)
			if err != nil {
				return err
			}
			p, err := rt.Client.GetChapter(ctx, book, nums[0])
			if err != nil {
				return err
			}
			return printPassage(cmd, p)
		}),
	}
}

func PassageCommandBuilder() *cli.Command {
	return &cli.Command{
		Name:      "passage",
		Usage:     `print a passage by reference, e.g. "John 3:16-18"`,
		ArgsUsage: "REFERENCE",
		Action: withRuntime(func(ctx context.Context, cmd *cli.Command, rt *Runtime) error {
			p, err := rt.Client.GetPassage(ctx, strings.Join(cmd.Args().Slice(), " "))
			if err != nil {
				return err
			}
			return printPassage(cmd, p)
		}),
	}
}

func SearchCommandBuilder() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "full-text search",
		ArgsUsage: "QUERY",
		Action: withRuntime(func(ctx context.Context, cmd *cli.Command, rt *Runtime) error {
			res, err := rt.Client.Search(ctx, strings.Join(cmd.Args().Slice(), " "))
			if err != nil {
				return err
			}
			return printSearch(cmd, res)
		}),
	}
}

// splitReference treats the last n args as positive integers and joins the
// rest into the book name, so "1 John 3 16" parses as ("1 John", 3, 16).
func splitReference(args []string, n int) (string, []int, error) {
	if len(args) < n+1 {
		return "", nil, fmt.Errorf("%w: expected a book followed by %d number(s)", lsbible.ErrInvalidArgument, n)
	}
	split := len(args) - n
	nums := make([]int, n)
	for i, a := range args[split:] {
		v, err := strconv.Atoi(a)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %q is not a number", lsbible.ErrInvalidArgument, a)
		}
		nums[i] = v
	}
	return strings.Join(args[:split], " "), nums, nil
}
