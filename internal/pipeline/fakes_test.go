package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/dgallion1/booknest/internal/logging"
	"github.com/dgallion1/booknest/internal/store"
	"github.com/dgallion1/booknest/internal/transform"
)

func init() {
	slog.SetDefault(logging.Discard())
}

func discardLogger() *slog.Logger {
	return logging.Discard()
}

type transformCall struct {
	mode transform.Mode
	text string
	lang string
}

// fakeTransformer records every call and answers with fn, or echoes the
// text prefixed by the mode when fn is nil.
type fakeTransformer struct {
	mu    sync.Mutex
	calls []transformCall
	fn    func(mode transform.Mode, text string) transform.Result
}

func (f *fakeTransformer) Transform(_ context.Context, mode transform.Mode, text string, opts transform.Options) transform.Result {
	f.mu.Lock()
	f.calls = append(f.calls, transformCall{mode: mode, text: text, lang: opts.TargetLanguage})
	fn := f.fn
	f.mu.Unlock()

	if fn != nil {
		return fn(mode, text)
	}
	return transform.Result{Text: string(mode) + ":" + text}
}

func (f *fakeTransformer) Calls() []transformCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]transformCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// fakeRenderer writes a marker and remembers the pages it was given.
type fakeRenderer struct {
	mu    sync.Mutex
	pages []string
	err   error
}

func (r *fakeRenderer) Render(w io.Writer, pages []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.pages = append([]string(nil), pages...)
	_, err := io.WriteString(w, "%PDF-fake")
	return err
}

func (r *fakeRenderer) Pages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pages
}

// memResults is an in-memory ResultStore.
type memResults struct {
	mu      sync.Mutex
	results []store.Result
}

func (m *memResults) Save(_ context.Context, r store.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	return nil
}

func (m *memResults) SummaryByHash(_ context.Context, hash string) (store.Result, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.results) - 1; i >= 0; i-- {
		r := m.results[i]
		if r.Kind == store.KindSummarize && r.ContentHash == hash && r.FailedChunks == 0 {
			return r, true, nil
		}
	}
	return store.Result{}, false, nil
}

func (m *memResults) All() []store.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Result(nil), m.results...)
}
