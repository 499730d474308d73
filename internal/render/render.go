// Package render draws translated pages into a PDF.
package render

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

const utf8Family = "booknest"

// Renderer turns plain-text pages into a PDF: Helvetica on A4 by default, or
// a TrueType font when FontPath is set so that non-Latin scripts survive.
type Renderer struct {
	Layout   Layout
	FontPath string
}

func New(fontPath string) *Renderer {
	return &Renderer{Layout: DefaultLayout, FontPath: fontPath}
}

// Render writes pages to w. Each source page begins a new PDF page.
func (r *Renderer) Render(w io.Writer, pages []string) error {
	layout := r.Layout
	if layout.Width == 0 {
		layout = DefaultLayout
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: layout.Width, Ht: layout.Height},
	})
	pdf.SetMargins(layout.Margin, layout.Margin, layout.Margin)
	pdf.SetAutoPageBreak(false, layout.Margin)

	family := "Helvetica"
	encode := func(s string) string { return s }
	if r.FontPath != "" {
		pdf.AddUTF8Font(utf8Family, "", r.FontPath)
		family = utf8Family
	} else {
		// Core fonts are single-byte; map what cp1252 can hold.
		encode = pdf.UnicodeTranslatorFromDescriptor("")
	}
	pdf.SetFont(family, "", layout.FontSize)
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("load font: %w", err)
	}

	measure := func(s string) float64 { return pdf.GetStringWidth(encode(s)) }
	wrap := func(line string) []string {
		return WrapLine(line, layout.PrintableWidth(), measure)
	}

	for _, lines := range Paginate(pages, layout.LinesPerPage(), wrap) {
		pdf.AddPage()
		for i, line := range lines {
			if line == "" {
				continue
			}
			pdf.Text(layout.Margin, layout.Baseline(i), encode(line))
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
