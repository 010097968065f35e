package command

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/adeilh/go-lsbible/lsbible"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printPassage(cmd *cli.Command, p *lsbible.Passage) error {
	if cmd.Bool("json") {
		return printJSON(cmd.Root().Writer, p)
	}
	writePassage(cmd.Root().Writer, p)
	return nil
}

func writePassage(w io.Writer, p *lsbible.Passage) {
	title := p.Title
	if title == "" {
		title = p.FromRef.String()
	}
	fmt.Fprintln(w, title)
	for _, v := range p.Verses {
		if v.HasSubtitle && v.Subtitle != "" {
			fmt.Fprintf(w, "\n  %s\n", v.Subtitle)
		}
		fmt.Fprintf(w, "%d %s\n", v.VerseNumber, v.PlainText())
	}
}

func printSearch(cmd *cli.Command, res *lsbible.SearchResponse) error {
	w := cmd.Root().Writer
	if cmd.Bool("json") {
		return printJSON(w, res)
	}
	fmt.Fprintf(w, "%s matches for %q in %s passages\n",
		humanize.Comma(int64(res.MatchCount)), res.Query, humanize.Comma(int64(res.PassageCount())))
	for i := range res.Passages {
		fmt.Fprintln(w)
		writePassage(w, &res.Passages[i])
	}
	return nil
}

func printStats(cmd *cli.Command, st Stats) error {
	w := cmd.Root().Writer
	if cmd.Bool("json") {
		return printJSON(w, st)
	}
	fmt.Fprintf(w, "backend: %s\n", st.Backend)
	if st.Entries == nil {
		fmt.Fprintln(w, "entries: unknown")
		return nil
	}
	fmt.Fprintf(w, "entries: %s\n", humanize.Comma(*st.Entries))
	return nil
}
