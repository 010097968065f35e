package lsbible

import (
	"strconv"
	"strings"
)

const (
	opVerse   = "verse"
	opPassage = "passage"
	opChapter = "chapter"
	opSearch  = "search"
)

// Cache keys are "<op>:<args>". Verse and chapter keys keep the book as
// given after trimming; free-text passage and search keys are collapsed and
// lower-cased so equivalent requests share an entry.

func verseKey(book string, chapter, verse int) string {
	return opVerse + ":" + book + " " + itoa(chapter) + ":" + itoa(verse)
}

func chapterKey(book string, chapter int) string {
	return opChapter + ":" + book + " " + itoa(chapter)
}

func passageKey(ref string) string {
	return opPassage + ":" + strings.ToLower(collapse(ref))
}

func searchKey(query string) string {
	return opSearch + ":" + strings.ToLower(collapse(query))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func itoa(n int) string { return strconv.Itoa(n) }
