package document

import "strings"

// Kind is the declared type of a source document.
type Kind string

const (
	KindPDF      Kind = "pdf"
	KindText     Kind = "txt"
	KindMarkdown Kind = "md"
	KindHTML     Kind = "html"
	KindDOCX     Kind = "docx"
)

// Document is an extracted source document. It is not modified after extraction.
type Document struct {
	Title string // From metadata or filename
	Kind  Kind
	Pages []Page // One per source page for PDF; exactly one for flat kinds
}

// Page is one order-stable unit of a document's text.
type Page struct {
	Index int    // 0-based position in the source document
	Text  string // May be empty (blank page)
}

// Blank reports whether the page has no text worth sending anywhere.
func (p Page) Blank() bool {
	return IsBlank(p.Text)
}

// IsBlank reports whether text is empty or whitespace only.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

// Texts returns the page texts in order.
func (d *Document) Texts() []string {
	out := make([]string, len(d.Pages))
	for i, p := range d.Pages {
		out[i] = p.Text
	}
	return out
}

// FullText joins all page texts with newlines.
func (d *Document) FullText() string {
	return strings.Join(d.Texts(), "\n")
}

// NewFlat wraps a single text blob as a one-page document.
func NewFlat(title string, kind Kind, text string) *Document {
	return &Document{
		Title: title,
		Kind:  kind,
		Pages: []Page{{Index: 0, Text: text}},
	}
}
