package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/booknest/internal/llm"
)

// Result is the outcome of one transformation: the model's text, or the
// reason it could not be produced. Callers choose how to render a failure,
// normally with Value.
type Result struct {
	Text string
	Err  error
}

func (r Result) OK() bool { return r.Err == nil }

// Value returns the text on success and the placeholder for mode otherwise.
func (r Result) Value(mode Mode) string {
	if r.Err == nil {
		return r.Text
	}
	return Placeholder(mode, r.Err)
}

// Placeholder is the visible marker substituted for a failed transformation.
func Placeholder(mode Mode, err error) string {
	var ex *ExhaustedError
	if errors.As(err, &ex) {
		return fmt.Sprintf("[Failed after %d attempts: %v]", ex.Attempts, ex.Err)
	}
	if mode == ModeTranslate {
		return fmt.Sprintf("[Translation error: %v]", err)
	}
	return fmt.Sprintf("[Failed to generate summary: %v]", err)
}

// Transformer makes single remote calls. It holds no per-call state and is
// safe for concurrent use.
type Transformer struct {
	provider llm.Provider
	stats    *llm.CallStats
	log      *slog.Logger
}

func NewTransformer(provider llm.Provider, stats *llm.CallStats, log *slog.Logger) *Transformer {
	if log == nil {
		log = slog.Default()
	}
	return &Transformer{provider: provider, stats: stats, log: log}
}

// Transform builds the prompt for mode and calls the provider exactly once.
// Every failure, including a panicking provider, comes back in Result.Err.
// A call that has started runs to completion even if ctx is cancelled; it is
// bounded only by the provider's own timeout. Callers use ctx to stop
// issuing new calls.
func (t *Transformer) Transform(ctx context.Context, mode Mode, text string, opts Options) (res Result) {
	prompt, err := BuildPrompt(mode, text, opts)
	if err != nil {
		return Result{Err: err}
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("provider panic: %v", r)}
		}
		t.stats.Record(string(mode), time.Since(start), res.Err)
		if res.Err != nil {
			t.log.Warn("transform failed",
				"mode", mode,
				"chars", len(text),
				"error", res.Err,
			)
		}
	}()

	out, err := t.provider.Complete(context.WithoutCancel(ctx), prompt)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Text: out}
}
