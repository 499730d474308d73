// Command booknest translates or summarizes a single document from the
// command line, without the HTTP service.
//
//	booknest summarize book.pdf
//	booknest translate -lang es -o book_es.pdf book.pdf
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/fatih/color"

	"github.com/dgallion1/booknest/internal/config"
	"github.com/dgallion1/booknest/internal/document"
	"github.com/dgallion1/booknest/internal/llm"
	"github.com/dgallion1/booknest/internal/logging"
	"github.com/dgallion1/booknest/internal/parser"
	"github.com/dgallion1/booknest/internal/pipeline"
	"github.com/dgallion1/booknest/internal/render"
	"github.com/dgallion1/booknest/internal/transform"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var newProvider = llm.New

func main() {
	config.LoadDotEnv()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage:")
	fmt.Fprintln(w, "  booknest summarize <file>")
	fmt.Fprintln(w, "  booknest translate [-lang code] [-o out.pdf] <file>")
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}

	errColor := color.New(color.FgRed, color.Bold)
	fail := func(format string, a ...any) int {
		errColor.Fprint(stderr, "error: ")
		fmt.Fprintf(stderr, format+"\n", a...)
		return exitFailure
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)
	lang := fs.String("lang", transform.DefaultTargetLanguage, "target language for translate")
	out := fs.String("o", "", "output PDF for translate (default translated_<name>.pdf)")

	switch args[0] {
	case "summarize", "translate":
	case "-h", "--help", "help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return exitUsage
	}
	if err := fs.Parse(args[1:]); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		usage(stderr)
		return exitUsage
	}
	path := fs.Arg(0)

	kind, err := parser.KindFromFilename(path)
	if err != nil {
		return fail("%s: %v", filepath.Base(path), err)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fail("invalid configuration: %v", err)
	}

	log, closeLog := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Stdout: stderr})
	defer closeLog()

	provider, err := newProvider(llm.Settings{
		Kind:    cfg.LLMProvider,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		BaseURL: cfg.LLMBaseURL,
		Timeout: cfg.LLMTimeout,
	})
	if err != nil {
		return fail("%v", err)
	}
	if c, ok := provider.(llm.Closer); ok {
		defer c.Close()
	}

	extractor := &parser.Extractor{FallbackPdftotext: cfg.PDFFallbackPdftotext}
	doc, err := extractor.Extract(path, kind)
	if err != nil {
		return fail("extract %s: %v", filepath.Base(path), err)
	}

	tr := transform.NewTransformer(provider, llm.NewCallStats(0), log)
	status := color.New(color.FgCyan)

	if args[0] == "summarize" {
		if err := summarize(ctx, cfg, tr, doc, log, stdout, stderr, status); err != nil {
			return fail("%v", err)
		}
		return exitOK
	}

	dest := *out
	if dest == "" {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		dest = "translated_" + base + ".pdf"
	}
	if err := translate(ctx, cfg, tr, doc, *lang, dest, log, stderr, status); err != nil {
		return fail("%v", err)
	}
	color.New(color.FgGreen).Fprintf(stderr, "wrote %s\n", dest)
	return exitOK
}

func summarize(ctx context.Context, cfg config.Config, tr pipeline.Transformer, doc *document.Document, log *slog.Logger, stdout, stderr io.Writer, status *color.Color) error {
	s := pipeline.NewSummarizer(tr, pipeline.SettingsFromConfig(cfg).Summarizer, log)
	s.OnChunk = func(done, total int) {
		status.Fprintf(stderr, "summarized chunk %d/%d\n", done, total)
	}

	sum := s.Summarize(ctx, doc.FullText())
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("summary interrupted: %w", err)
	}
	if sum.Failed > 0 {
		color.New(color.FgYellow).Fprintf(stderr, "%d remote call(s) failed; summary is partial\n", sum.Failed)
	}
	fmt.Fprintln(stdout, sum.Text)
	return nil
}

func translate(ctx context.Context, cfg config.Config, tr pipeline.Transformer, doc *document.Document, lang, dest string, log *slog.Logger, stderr io.Writer, status *color.Color) error {
	pages := doc.Texts()
	t := pipeline.NewTranslator(tr, cfg.TranslateWorkers, cfg.TranslateChunkSize, log)
	var done atomic.Int32
	t.OnPage = func(int) {
		status.Fprintf(stderr, "translated %d/%d pages\n", done.Add(1), len(pages))
	}
	translated := t.TranslateDocument(ctx, pages, lang)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("translation interrupted: %w", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := render.New(cfg.RenderFontPath).Render(f, translated); err != nil {
		f.Close()
		os.Remove(dest)
		return fmt.Errorf("render: %w", err)
	}
	if err := f.Close(); err != nil {
		return errors.Join(fmt.Errorf("close output: %w", err), os.Remove(dest))
	}
	return nil
}
