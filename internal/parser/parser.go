package parser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/booknest/internal/document"
)

// ErrUnsupportedType is returned for file types no parser handles.
var ErrUnsupportedType = errors.New("unsupported file type")

// Parser converts raw document bytes into a Document.
type Parser interface {
	Parse(r io.Reader, filename string) (*document.Document, error)
}

var extensionKinds = map[string]document.Kind{
	".pdf":      document.KindPDF,
	".txt":      document.KindText,
	".md":       document.KindMarkdown,
	".markdown": document.KindMarkdown,
	".html":     document.KindHTML,
	".htm":      document.KindHTML,
	".docx":     document.KindDOCX,
}

// KindFromFilename maps a filename's extension to a document kind.
func KindFromFilename(filename string) (document.Kind, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	kind, ok := extensionKinds[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	return kind, nil
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	_, err := KindFromFilename(filename)
	return err == nil
}

// Extractor picks a parser by declared kind and runs it.
type Extractor struct {
	FallbackPdftotext bool
}

// ForKind returns the parser for a declared document kind.
func (e *Extractor) ForKind(kind document.Kind) (Parser, error) {
	switch kind {
	case document.KindPDF:
		return &PDFParser{FallbackPdftotext: e.FallbackPdftotext}, nil
	case document.KindText:
		return &TextParser{}, nil
	case document.KindMarkdown:
		return &MarkdownParser{}, nil
	case document.KindHTML:
		return &HTMLParser{}, nil
	case document.KindDOCX:
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, kind)
	}
}

// Extract reads the file at path as the declared kind.
func (e *Extractor) Extract(path string, kind document.Kind) (*document.Document, error) {
	p, err := e.ForKind(kind)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	return p.Parse(f, filepath.Base(path))
}

// ExtractReader parses r, choosing the parser from filename's extension.
func (e *Extractor) ExtractReader(r io.Reader, filename string) (*document.Document, error) {
	kind, err := KindFromFilename(filename)
	if err != nil {
		return nil, err
	}
	p, err := e.ForKind(kind)
	if err != nil {
		return nil, err
	}
	return p.Parse(r, filename)
}

func trimExt(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// joinBlocks joins non-empty blocks with a blank line between them.
func joinBlocks(blocks []string) string {
	kept := blocks[:0:0]
	for _, b := range blocks {
		if b = strings.TrimSpace(b); b != "" {
			kept = append(kept, b)
		}
	}
	return strings.Join(kept, "\n\n")
}
