package parser

import (
	"strings"
	"testing"
)

func TestHTMLParser_BlocksAndTitle(t *testing.T) {
	input := `<html><head><title>Chapter One</title><style>p{}</style></head>
<body>
<nav>Home | About</nav>
<h1>The Storm</h1>
<p>Rain fell all night.</p>
<script>alert(1)</script>
<ul><li>First</li><li>Second</li></ul>
</body></html>`

	p := &HTMLParser{}
	doc, err := p.Parse(strings.NewReader(input), "chapter.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "Chapter One" {
		t.Errorf("expected title from <title>, got %q", doc.Title)
	}

	want := "The Storm\n\nRain fell all night.\n\nFirst\n\nSecond"
	if doc.Pages[0].Text != want {
		t.Errorf("expected %q, got %q", want, doc.Pages[0].Text)
	}
}

func TestHTMLParser_TitleFallsBackToFilename(t *testing.T) {
	p := &HTMLParser{}
	doc, err := p.Parse(strings.NewReader("<p>hi</p>"), "plain.htm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "plain" {
		t.Errorf("expected %q, got %q", "plain", doc.Title)
	}
}
