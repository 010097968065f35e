package lsbible

import "strings"

// VerseReference identifies a single verse.
type VerseReference struct {
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
	Verse   int    `json:"verse"`
}

func (r VerseReference) String() string {
	return r.Book + " " + itoa(r.Chapter) + ":" + itoa(r.Verse)
}

// TextSegment is a run of verse text sharing the same formatting.
type TextSegment struct {
	Text        string `json:"text"`
	IsRedLetter bool   `json:"isRedLetter,omitempty"`
	IsItalic    bool   `json:"isItalic,omitempty"`
	IsBold      bool   `json:"isBold,omitempty"`
	IsSmallCaps bool   `json:"isSmallCaps,omitempty"`
}

// VerseContent is one verse with its formatted segments.
type VerseContent struct {
	Reference   VerseReference `json:"reference"`
	VerseNumber int            `json:"verseNumber"`
	Segments    []TextSegment  `json:"segments"`
	HasSubtitle bool           `json:"hasSubtitle,omitempty"`
	Subtitle    string         `json:"subtitle,omitempty"`
}

// PlainText joins the segments without formatting.
func (v VerseContent) PlainText() string {
	var b strings.Builder
	for i, s := range v.Segments {
		if i > 0 && !strings.HasPrefix(s.Text, " ") && !strings.HasSuffix(v.Segments[i-1].Text, " ") {
			b.WriteByte(' ')
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

// Passage is a contiguous range of verses.
type Passage struct {
	FromRef VerseReference `json:"fromRef"`
	ToRef   VerseReference `json:"toRef"`
	Title   string         `json:"title"`
	Verses  []VerseContent `json:"verses"`
}

// IsSingleVerse reports whether the passage spans exactly one verse.
func (p Passage) IsSingleVerse() bool { return p.FromRef == p.ToRef }

// VerseCount returns the number of verses in the passage.
func (p Passage) VerseCount() int { return len(p.Verses) }

// SearchResponse is the result of a text search or a passage lookup by
// reference.
type SearchResponse struct {
	Query      string    `json:"query"`
	MatchCount int       `json:"matchCount"`
	Passages   []Passage `json:"passages"`
	Duration   float64   `json:"durationMs,omitempty"`
	Timestamp  int64     `json:"timestamp,omitempty"`
}

// PassageCount returns the number of passages returned.
func (r SearchResponse) PassageCount() int { return len(r.Passages) }

// TotalVerses sums the verses across every passage.
func (r SearchResponse) TotalVerses() int {
	n := 0
	for _, p := range r.Passages {
		n += len(p.Verses)
	}
	return n
}
