package orchestrator

import (
	"strings"
	"sync"
)

// Transcript is the append-only record of finalized speech segments.
// Segments are joined with single spaces; nothing is ever rewritten.
type Transcript struct {
	mu sync.Mutex
	sb strings.Builder
}

// Append adds one finalized segment. Blank segments are ignored.
func (t *Transcript) Append(segment string) {
	trimmed := strings.TrimSpace(segment)
	if trimmed == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sb.Len() > 0 {
		t.sb.WriteByte(' ')
	}
	t.sb.WriteString(trimmed)
}

// Snapshot returns the full transcript text.
func (t *Transcript) Snapshot() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sb.String()
}

// Tail returns at most maxChars trailing characters of the transcript.
// Questions typed during a long session are answered against the recent
// context, not the whole recording. The cut lands on a rune boundary so a
// multi-byte character at the edge is never split.
func (t *Transcript) Tail(maxChars int) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.sb.String()
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[len(runes)-maxChars:])
}

// Len returns the transcript length in bytes.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sb.Len()
}
