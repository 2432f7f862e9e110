package orchestrator

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTranscript_AppendJoinsWithSpaces(t *testing.T) {
	tr := &Transcript{}
	tr.Append("hello there")
	tr.Append("  general kenobi  ")
	tr.Append("")
	tr.Append("   ")

	if got := tr.Snapshot(); got != "hello there general kenobi" {
		t.Errorf("Expected joined transcript, got %q", got)
	}
}

func TestTranscript_TailBounds(t *testing.T) {
	tr := &Transcript{}
	tr.Append(strings.Repeat("a", 50))

	if got := tr.Tail(100); len(got) != 50 {
		t.Errorf("Expected whole transcript when under the bound, got %d chars", len(got))
	}
	if got := tr.Tail(10); got != strings.Repeat("a", 10) {
		t.Errorf("Expected trailing 10 chars, got %q", got)
	}
	if got := tr.Tail(0); len(got) != 50 {
		t.Errorf("Expected zero bound to mean unbounded, got %d chars", len(got))
	}
}

func TestTranscript_TailCutsOnRuneBoundaries(t *testing.T) {
	tr := &Transcript{}
	tr.Append(strings.Repeat("ü", 50))

	got := tr.Tail(10)
	if !utf8.ValidString(got) {
		t.Fatalf("Expected valid UTF-8, got %q", got)
	}
	if got != strings.Repeat("ü", 10) {
		t.Errorf("Expected trailing 10 characters, got %q", got)
	}

	// Byte length over the bound but rune count under it stays whole.
	tr2 := &Transcript{}
	tr2.Append(strings.Repeat("世", 8))
	if got := tr2.Tail(10); got != strings.Repeat("世", 8) {
		t.Errorf("Expected whole transcript when under the character bound, got %q", got)
	}
}

func TestTranscript_Len(t *testing.T) {
	tr := &Transcript{}
	if tr.Len() != 0 {
		t.Errorf("Expected empty transcript, got %d", tr.Len())
	}
	tr.Append("abc")
	tr.Append("de")
	if tr.Len() != len("abc de") {
		t.Errorf("Expected length of joined text, got %d", tr.Len())
	}
}
