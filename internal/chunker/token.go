package chunker

import "strings"

// WordCount counts whitespace-separated words. It drives the choice between
// single-pass and chunked summarization.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// EstimateTokens gives a rough token count at ~1.33 tokens per word, for logs.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	tokens := int(float64(WordCount(text)) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
