package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/booknest/internal/chunker"
	"github.com/dgallion1/booknest/internal/document"
	"github.com/dgallion1/booknest/internal/transform"
)

// BlankPageMarker stands in for a page with no text. Such pages are never
// sent to the model.
const BlankPageMarker = "[Blank page]\n"

const DefaultTranslateWorkers = 8

// Transformer is the single remote call the pipeline is built on.
type Transformer interface {
	Transform(ctx context.Context, mode transform.Mode, text string, opts transform.Options) transform.Result
}

// Translator translates pages on a bounded pool. Chunks within a page are
// translated in order by the goroutine that owns the page.
type Translator struct {
	tr        Transformer
	workers   int
	chunkSize int
	log       *slog.Logger

	// OnPage, if set, is called once per finished page from the worker
	// goroutine that translated it. It must be safe for concurrent use.
	OnPage func(index int)
	// OnChunkError, if set, is called for each chunk that fell back to a
	// placeholder. It must be safe for concurrent use.
	OnChunkError func(page, chunk int, err error)
}

func NewTranslator(tr Transformer, workers, chunkSize int, log *slog.Logger) *Translator {
	if workers <= 0 {
		workers = DefaultTranslateWorkers
	}
	if chunkSize <= 0 {
		chunkSize = chunker.DefaultLineChunkSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Translator{tr: tr, workers: workers, chunkSize: chunkSize, log: log}
}

// TranslateDocument returns one translated string per input page, in input
// order. Failed chunks show up as placeholders; pages are never dropped.
// Once ctx is done no further pages are started and the remaining slots get
// a placeholder.
func (t *Translator) TranslateDocument(ctx context.Context, pages []string, lang string) []string {
	out := make([]string, len(pages))

	var g errgroup.Group
	g.SetLimit(t.workers)
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			out[i] = transform.Placeholder(transform.ModeTranslate, err)
			continue
		}
		g.Go(func() error {
			out[i] = t.translatePage(ctx, i, page, lang)
			if t.OnPage != nil {
				t.OnPage(i)
			}
			return nil
		})
	}
	g.Wait()

	return out
}

func (t *Translator) translatePage(ctx context.Context, index int, page, lang string) string {
	if document.IsBlank(page) {
		return BlankPageMarker
	}

	opts := transform.Options{TargetLanguage: lang}
	chunks := chunker.ByLines(page, t.chunkSize)
	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		res := t.tr.Transform(ctx, transform.ModeTranslate, chunk, opts)
		if !res.OK() {
			t.log.Warn("chunk translation failed", "page", index, "chunk", i, "error", res.Err)
			if t.OnChunkError != nil {
				t.OnChunkError(index, i, res.Err)
			}
		}
		parts[i] = res.Value(transform.ModeTranslate)
	}
	return strings.Join(parts, "\n")
}
