package render

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Layout is the page geometry in points.
type Layout struct {
	Width, Height float64
	Margin        float64
	Leading       float64
	FontSize      float64
}

// DefaultLayout is A4 in points, 12pt type on 14pt leading.
var DefaultLayout = Layout{
	Width:    595.28,
	Height:   841.89,
	Margin:   50,
	Leading:  14,
	FontSize: 12,
}

// LinesPerPage is how many baselines fit between the top and bottom margins.
// The first baseline sits one leading below the top margin.
func (l Layout) LinesPerPage() int {
	usable := l.Height - 2*l.Margin
	if usable < l.Leading || l.Leading <= 0 {
		return 1
	}
	return int(math.Floor(usable / l.Leading))
}

// Baseline is the y coordinate of line i (0-based) on a page.
func (l Layout) Baseline(i int) float64 {
	return l.Margin + float64(i+1)*l.Leading
}

// PrintableWidth is the page width inside the side margins.
func (l Layout) PrintableWidth() float64 {
	return l.Width - 2*l.Margin
}

// Paginate lays source pages out onto output pages of at most perPage lines.
// Every source page starts a fresh output page, even when empty, and spills
// onto as many continuation pages as it needs. wrap breaks one logical line
// into display lines; nil keeps lines as they are.
func Paginate(pages []string, perPage int, wrap func(string) []string) [][]string {
	if perPage <= 0 {
		perPage = 1
	}
	var out [][]string
	for _, page := range pages {
		var lines []string
		for _, line := range strings.Split(strings.TrimRight(page, "\n"), "\n") {
			if wrap == nil {
				lines = append(lines, line)
				continue
			}
			lines = append(lines, wrap(line)...)
		}
		for len(lines) > perPage {
			out = append(out, lines[:perPage])
			lines = lines[perPage:]
		}
		out = append(out, lines)
	}
	return out
}

// WrapLine breaks line into pieces no wider than maxWidth, preferring to
// break at spaces. A word wider than maxWidth is split between runes. measure
// returns the rendered width of a string.
func WrapLine(line string, maxWidth float64, measure func(string) float64) []string {
	if line == "" || measure(line) <= maxWidth {
		return []string{line}
	}

	var out []string
	cur := ""
	for _, word := range strings.Split(line, " ") {
		candidate := word
		if cur != "" {
			candidate = cur + " " + word
		}
		if measure(candidate) <= maxWidth {
			cur = candidate
			continue
		}
		if cur != "" {
			out = append(out, cur)
		}
		for word != "" && measure(word) > maxWidth {
			n := fitPrefix(word, maxWidth, measure)
			out = append(out, word[:n])
			word = word[n:]
		}
		cur = word
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

// fitPrefix returns the byte length of the longest rune prefix of s that fits,
// never less than one rune.
func fitPrefix(s string, maxWidth float64, measure func(string) float64) int {
	_, first := utf8.DecodeRuneInString(s)
	n := first
	for n < len(s) {
		_, size := utf8.DecodeRuneInString(s[n:])
		if measure(s[:n+size]) > maxWidth {
			break
		}
		n += size
	}
	return n
}
