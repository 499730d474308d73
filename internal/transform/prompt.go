// Package transform turns text into translations and summaries through an
// llm.Provider, with retry and throttling policies for quota-limited APIs.
package transform

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects the instruction sent with a piece of text.
type Mode string

const (
	ModeTranslate      Mode = "translate"
	ModeSummarizeFull  Mode = "summarize-full"
	ModeSummarizeBrief Mode = "summarize-brief"
	ModeCombine        Mode = "combine"
)

// ErrUnknownMode is returned for a Mode outside the constants above.
var ErrUnknownMode = errors.New("unknown transform mode")

// Options carries per-call parameters.
type Options struct {
	// TargetLanguage is a language name or code, used by ModeTranslate.
	TargetLanguage string
}

const DefaultTargetLanguage = "en"

const (
	translatePrompt = `Translate the following text into the language %q.
Keep the original line breaks. Reply with the translation only, without notes or commentary.

%s`

	summarizeFullPrompt = `You are an emotionally perceptive book summarizer. Summarize the following book text in one flowing paragraph.
Focus on the main characters, the plot, its tension, emotions and suspense. Keep it engaging and natural, like the synopsis of a thriller.

Text:
%s`

	summarizeBriefPrompt = `Summarize this portion of a novel briefly, in two or three sentences, capturing the key events, mood and characters.
Keep it natural, smooth and suspenseful:

%s`

	combinePrompt = `Combine these short summaries into one coherent, flowing paragraph, like a professional book synopsis.
Focus on the main story arcs, tone and suspense.

Chunk summaries:
%s`
)

// BuildPrompt wraps text in the instruction for mode.
func BuildPrompt(mode Mode, text string, opts Options) (string, error) {
	switch mode {
	case ModeTranslate:
		lang := opts.TargetLanguage
		if lang == "" {
			lang = DefaultTargetLanguage
		}
		return fmt.Sprintf(translatePrompt, lang, text), nil
	case ModeSummarizeFull:
		return fmt.Sprintf(summarizeFullPrompt, text), nil
	case ModeSummarizeBrief:
		return fmt.Sprintf(summarizeBriefPrompt, text), nil
	case ModeCombine:
		return fmt.Sprintf(combinePrompt, text), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// CombineInput joins partial summaries, in order, into the text handed to
// ModeCombine.
func CombineInput(partials []string) string {
	return strings.Join(partials, "\n")
}
