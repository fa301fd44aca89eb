// ABOUTME: Markdown and source highlighting shared by the HTML and terminal renderers.
// ABOUTME: Wraps goldmark for posts and drafts, chroma for code snippets and fixes.

package views

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// The parser configuration never changes, so one instance is shared
var markdown = sync.OnceValue(func() goldmark.Markdown {
	return goldmark.New(goldmark.WithExtensions(extension.GFM))
})

// RenderMarkdown converts markdown to HTML. Raw HTML in the source is omitted.
func RenderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown().Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

// Format is an output target for Highlight
type Format int

const (
	FormatHTML Format = iota
	FormatTerminal
)

const highlightStyle = "monokai"

// Highlight syntax-colors code. The language is guessed from the content.
func Highlight(code string, format Format) (string, error) {
	lexer := lexers.Analyse(code)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	var formatter chroma.Formatter
	switch format {
	case FormatTerminal:
		formatter = formatters.Get("terminal256")
	default:
		formatter = chromahtml.New(chromahtml.WithClasses(false), chromahtml.TabWidth(4))
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", fmt.Errorf("failed to tokenise code: %w", err)
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, styles.Get(highlightStyle), iterator); err != nil {
		return "", fmt.Errorf("failed to format code: %w", err)
	}
	return buf.String(), nil
}
