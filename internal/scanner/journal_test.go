package scanner

import (
	"fmt"
	"testing"
)

func TestJournalSplitsLinesNewestFirst(t *testing.T) {
	j := NewJournal()
	fmt.Fprint(j, "first\nsec")
	fmt.Fprint(j, "ond\n\nthird\r\n")

	lines := j.Lines()
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	if lines[0] != "third" || lines[1] != "second" || lines[2] != "first" {
		t.Fatalf("lines = %q", lines)
	}
}

func TestJournalIsBounded(t *testing.T) {
	j := NewJournal()
	for i := 0; i < journalSize+20; i++ {
		fmt.Fprintf(j, "line %d\n", i)
	}
	lines := j.Lines()
	if len(lines) != journalSize {
		t.Fatalf("len = %d, want %d", len(lines), journalSize)
	}
	if lines[0] != fmt.Sprintf("line %d", journalSize+19) {
		t.Fatalf("newest line = %q", lines[0])
	}
}
