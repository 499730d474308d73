package chunker

import (
	"strings"
	"unicode/utf8"
)

// Default sizes, in runes.
const (
	DefaultLineChunkSize = 7000
	DefaultWindowSize    = 20000
	DefaultWindowOverlap = 500
)

// ByLines splits text into chunks of whole lines, each holding at most max
// runes including newlines. Every line is emitted with a trailing newline, so
// joining the chunks yields text+"\n". A line longer than max is never split;
// it becomes its own oversize chunk.
func ByLines(text string, max int) []string {
	if max <= 0 {
		max = DefaultLineChunkSize
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	for _, line := range strings.Split(text, "\n") {
		lineLen := utf8.RuneCountInString(line)
		if currentLen+lineLen+1 > max && currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
		current.WriteString(line)
		current.WriteByte('\n')
		currentLen += lineLen + 1
	}
	if currentLen > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

// Window slides a window of size runes across text, advancing by
// size-overlap each step, so adjacent chunks share exactly overlap runes.
// The walk stops at the first window that reaches the end of text, so only the
// last chunk may be shorter. An overlap outside [0, size) is treated as 0.
func Window(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultWindowSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	step := size - overlap

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
