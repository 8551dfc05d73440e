package deploy

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// Log trimming limits for deploy results.
const (
	MaxLogLines   = 80
	MaxLineLength = 200
	ellipsis      = "..."
	debugPrefix   = "[debug]"
)

// TrimLogs drops debug lines, keeps the last MaxLogLines lines and cuts
// longer lines to exactly MaxLineLength characters ending in an ellipsis.
// Lengths are counted in runes; a cut never splits a multi-byte character.
func TrimLogs(raw []string) []string {
	kept := make([]string, 0, len(raw))
	for _, line := range raw {
		if strings.HasPrefix(line, debugPrefix) {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) > MaxLogLines {
		kept = kept[len(kept)-MaxLogLines:]
	}

	out := make([]string, len(kept))
	for i, line := range kept {
		if utf8.RuneCountInString(line) > MaxLineLength {
			line = string([]rune(line)[:MaxLineLength-len(ellipsis)]) + ellipsis
		}
		out[i] = line
	}
	return out
}

// CountCreated approximates the number of created resources from engine
// output: lines mentioning "created" in any case, or containing "+".
func CountCreated(lines []string) int {
	n := 0
	for _, l := range lines {
		if strings.Contains(strings.ToLower(l), "created") || strings.Contains(l, "+") {
			n++
		}
	}
	return n
}

// logBuffer collects sink lines from concurrent writers.
type logBuffer struct {
	mu    sync.Mutex
	lines []string
}

func (b *logBuffer) add(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, strings.TrimSpace(line))
}

func (b *logBuffer) snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}
