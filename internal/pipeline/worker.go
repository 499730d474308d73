package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgallion1/booknest/internal/chunker"
	"github.com/dgallion1/booknest/internal/document"
	"github.com/dgallion1/booknest/internal/parser"
	"github.com/dgallion1/booknest/internal/store"
)

// Renderer draws translated pages into an output document.
type Renderer interface {
	Render(w io.Writer, pages []string) error
}

// ResultStore persists finished jobs.
type ResultStore interface {
	Save(ctx context.Context, r store.Result) error
	SummaryByHash(ctx context.Context, hash string) (store.Result, bool, error)
}

// Worker processes a single job.
type Worker struct {
	extractor *parser.Extractor
	tr        Transformer
	renderer  Renderer
	results   ResultStore
	settings  Settings
	log       *slog.Logger
}

func NewWorker(deps Deps, settings Settings, log *slog.Logger) *Worker {
	return &Worker{
		extractor: deps.Extractor,
		tr:        deps.Transformer,
		renderer:  deps.Renderer,
		results:   deps.Results,
		settings:  settings,
		log:       log,
	}
}

// Process runs a job to completion. Extraction and rendering failures fail
// the job; per-chunk failures only degrade it.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "kind", job.Kind, "filename", job.Filename)
	defer job.releaseInput()

	// Phase 1: Extract
	job.SetStatus(StatusExtracting, "extracting")
	doc, err := w.extract(job)
	if err != nil {
		log.Error("extraction failed", "error", err)
		job.AddError(fmt.Sprintf("extract: %s", err))
		job.SetStatus(StatusFailed, "extracting")
		return
	}
	job.SetTitle(doc.Title)

	fullText := doc.FullText()
	job.SetContentHash(ContentHashHex([]byte(fullText)))
	blank := 0
	for _, p := range doc.Pages {
		if p.Blank() {
			blank++
		}
	}
	log.Info("extracted document",
		"pages", len(doc.Pages),
		"blank_pages", blank,
		"chars", len(fullText),
		"words", chunker.WordCount(fullText),
		"est_tokens", chunker.EstimateTokens(fullText),
	)

	// Phase 2: Transform
	switch job.Kind {
	case KindTranslate:
		w.translate(ctx, job, doc, log)
	case KindSummarize:
		w.summarize(ctx, job, fullText, log)
	default:
		job.AddError(fmt.Sprintf("unknown job kind %q", job.Kind))
		job.SetStatus(StatusFailed, "dispatch")
	}
}

func (w *Worker) extract(job *Job) (*document.Document, error) {
	if text := job.Text(); text != "" {
		return document.NewFlat(job.Title, document.KindText, text), nil
	}
	return w.extractor.ExtractReader(bytes.NewReader(job.FileData()), job.Filename)
}

func (w *Worker) translate(ctx context.Context, job *Job, doc *document.Document, log *slog.Logger) {
	pages := doc.Texts()
	job.SetTotalPages(len(pages))
	job.SetStatus(StatusTranslating, "translating")

	t := NewTranslator(w.tr, w.settings.TranslateWorkers, w.settings.TranslateChunkSize, log)
	t.OnPage = func(int) { job.IncrPagesProcessed() }
	t.OnChunkError = func(page, chunk int, err error) {
		job.AddChunkFailure(fmt.Sprintf("page %d chunk %d: %s", page, chunk, err))
	}
	translated := t.TranslateDocument(ctx, pages, job.Language)
	if interrupted(ctx, job, log) {
		return
	}

	// Phase 3: Render
	job.SetStatus(StatusRendering, "rendering")
	outPath, err := w.renderToFile(job.ID, translated)
	if err != nil {
		log.Error("render failed", "error", err)
		job.AddError(fmt.Sprintf("render: %s", err))
		job.SetStatus(StatusFailed, "rendering")
		return
	}
	job.SetOutputPath(outPath)

	snap := job.Snapshot()
	w.save(ctx, log, store.Result{
		ID:           job.ID,
		Kind:         store.KindTranslate,
		Filename:     job.Filename,
		Title:        snap.Title,
		Language:     job.Language,
		ContentHash:  snap.ContentHash,
		OutputPath:   outPath,
		Pages:        len(pages),
		FailedChunks: snap.Progress.FailedChunks,
		CreatedAt:    job.CreatedAt,
	})

	log.Info("translation complete", "pages", len(pages), "failed_chunks", snap.Progress.FailedChunks, "output", outPath)
	job.SetStatus(StatusCompleted, "done")
}

func (w *Worker) renderToFile(jobID string, pages []string) (string, error) {
	if err := os.MkdirAll(w.settings.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(w.settings.OutputDir, jobID+".pdf")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create output: %w", err)
	}
	if err := w.renderer.Render(f, pages); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close output: %w", err)
	}
	return path, nil
}

func (w *Worker) summarize(ctx context.Context, job *Job, text string, log *slog.Logger) {
	snap := job.Snapshot()

	if document.IsBlank(text) {
		job.SetSummary("", StrategyDirect)
		job.SetStatus(StatusCompleted, "done")
		return
	}

	// Identical content already summarized cleanly is served from the store.
	if w.results != nil {
		cached, ok, err := w.results.SummaryByHash(ctx, snap.ContentHash)
		if err != nil {
			log.Warn("summary cache lookup failed, proceeding", "error", err)
		} else if ok {
			log.Info("serving cached summary", "source_job", cached.ID)
			job.SetSummary(cached.Summary, Strategy(cached.Strategy))
			job.SetStatus(StatusCompleted, "cached")
			return
		}
	}

	job.SetStatus(StatusSummarizing, "summarizing")
	s := NewSummarizer(w.tr, w.settings.Summarizer, log)
	s.OnChunk = job.SetChunkProgress
	sum := s.Summarize(ctx, text)
	if interrupted(ctx, job, log) {
		return
	}
	if sum.Failed > 0 {
		job.AddChunkFailure(fmt.Sprintf("%d remote call(s) fell back to a placeholder", sum.Failed))
	}
	job.SetSummary(sum.Text, sum.Strategy)

	w.save(ctx, log, store.Result{
		ID:           job.ID,
		Kind:         store.KindSummarize,
		Filename:     job.Filename,
		Title:        snap.Title,
		ContentHash:  snap.ContentHash,
		Strategy:     string(sum.Strategy),
		Summary:      sum.Text,
		Chunks:       sum.Chunks,
		FailedChunks: sum.Failed,
		CreatedAt:    job.CreatedAt,
	})

	log.Info("summary complete", "strategy", sum.Strategy, "words", sum.Words, "chunks", sum.Chunks, "failed", sum.Failed)
	job.SetStatus(StatusCompleted, "done")
}

// interrupted fails a job whose run was cut short by shutdown. Pages or
// chunks that never started hold placeholders, so the partial output is
// neither rendered nor saved.
func interrupted(ctx context.Context, job *Job, log *slog.Logger) bool {
	if ctx.Err() == nil {
		return false
	}
	log.Warn("job interrupted", "phase", job.Snapshot().Phase, "error", ctx.Err())
	job.AddError(fmt.Sprintf("interrupted: %s", ctx.Err()))
	job.SetStatus(StatusFailed, "shutdown")
	return true
}

// save persists a result. A store failure is logged and does not fail the
// job, which stays readable from memory until the TTL.
func (w *Worker) save(ctx context.Context, log *slog.Logger, r store.Result) {
	if w.results == nil {
		return
	}
	if err := w.results.Save(ctx, r); err != nil {
		log.Error("save result failed", "error", err)
	}
}
