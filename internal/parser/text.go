package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/booknest/internal/document"
)

// TextParser handles plain text files. The whole file becomes one text blob.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	text := strings.TrimPrefix(string(data), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return document.NewFlat(trimExt(filename), document.KindText, text), nil
}
