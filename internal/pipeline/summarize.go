package pipeline

import (
	"context"
	"log/slog"

	"github.com/dgallion1/booknest/internal/chunker"
	"github.com/dgallion1/booknest/internal/document"
	"github.com/dgallion1/booknest/internal/transform"
)

// Strategy is how a document gets summarized.
type Strategy string

const (
	StrategyDirect  Strategy = "direct"
	StrategyChunked Strategy = "chunked"
)

const DefaultLargeDocWords = 60000

// SelectStrategy picks direct summarization up to and including threshold
// words, chunked summarization above it.
func SelectStrategy(words, threshold int) Strategy {
	if words <= threshold {
		return StrategyDirect
	}
	return StrategyChunked
}

// Summary is the outcome of SummarizeDocument plus how it was produced.
type Summary struct {
	Text     string
	Strategy Strategy
	Words    int
	// Chunks is the number of partial summaries; zero for direct.
	Chunks int
	// Failed counts remote calls that ended in a placeholder.
	Failed int
}

// Summarizer runs summarization sequentially on the caller's goroutine.
type Summarizer struct {
	tr        Transformer
	retry     transform.Retrier
	throttle  transform.Throttle
	threshold int
	size      int
	overlap   int
	log       *slog.Logger

	// OnChunk, if set, is called after each partial summary with the
	// number done and the total.
	OnChunk func(done, total int)
}

// SummarizerOptions tunes a Summarizer. Zero fields take defaults.
type SummarizerOptions struct {
	Retry         transform.Retrier
	Throttle      transform.Throttle
	Threshold     int
	WindowSize    int
	WindowOverlap int
}

func NewSummarizer(tr Transformer, opts SummarizerOptions, log *slog.Logger) *Summarizer {
	if opts.Retry.Attempts <= 0 {
		opts.Retry = transform.DefaultRetrier()
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultLargeDocWords
	}
	if opts.WindowSize <= 0 {
		opts.WindowSize = chunker.DefaultWindowSize
		opts.WindowOverlap = chunker.DefaultWindowOverlap
	}
	if log == nil {
		log = slog.Default()
	}
	if opts.Retry.Log == nil {
		opts.Retry.Log = log
	}
	return &Summarizer{
		tr:        tr,
		retry:     opts.Retry,
		throttle:  opts.Throttle,
		threshold: opts.Threshold,
		size:      opts.WindowSize,
		overlap:   opts.WindowOverlap,
		log:       log,
	}
}

// SummarizeDocument returns the summary text. Empty input gives an empty
// summary without any remote call.
func (s *Summarizer) SummarizeDocument(ctx context.Context, text string) string {
	return s.Summarize(ctx, text).Text
}

func (s *Summarizer) Summarize(ctx context.Context, text string) Summary {
	if document.IsBlank(text) {
		return Summary{Strategy: StrategyDirect}
	}

	words := chunker.WordCount(text)
	if SelectStrategy(words, s.threshold) == StrategyDirect {
		s.log.Info("summarizing directly", "words", words, "est_tokens", chunker.EstimateTokens(text))
		res := s.call(ctx, transform.ModeSummarizeFull, text)
		sum := Summary{Text: res.Value(transform.ModeSummarizeFull), Strategy: StrategyDirect, Words: words}
		if !res.OK() {
			sum.Failed = 1
		}
		return sum
	}

	chunks := chunker.Window(text, s.size, s.overlap)
	s.log.Info("summarizing in chunks", "words", words, "est_tokens", chunker.EstimateTokens(text), "chunks", len(chunks))
	sum := Summary{Strategy: StrategyChunked, Words: words, Chunks: len(chunks)}

	partials := make([]string, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			partials[i] = transform.Placeholder(transform.ModeSummarizeBrief, err)
			sum.Failed++
			continue
		}

		res := s.call(ctx, transform.ModeSummarizeBrief, chunk)
		if !res.OK() {
			sum.Failed++
		}
		partials[i] = res.Value(transform.ModeSummarizeBrief)
		if s.OnChunk != nil {
			s.OnChunk(i+1, len(chunks))
		}

		if s.throttle.Due(i + 1) {
			s.log.Info("cooling down", "after_chunks", i+1, "pause", s.throttle.Pause)
		}
		if err := s.throttle.After(ctx, i+1); err != nil {
			s.log.Warn("cooldown interrupted", "error", err)
		}
	}

	res := s.call(ctx, transform.ModeCombine, transform.CombineInput(partials))
	if !res.OK() {
		sum.Failed++
	}
	sum.Text = res.Value(transform.ModeCombine)
	return sum
}

func (s *Summarizer) call(ctx context.Context, mode transform.Mode, text string) transform.Result {
	return s.retry.Do(ctx, func(ctx context.Context) transform.Result {
		return s.tr.Transform(ctx, mode, text, transform.Options{})
	})
}
