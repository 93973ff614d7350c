package ingest

import (
	"fmt"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/k3a/html2text"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// Markup selects how pages are converted to document text.
const (
	MarkupText     = "text"
	MarkupMarkdown = "markdown"
)

// Decode returns raw as a string, trying UTF-8, then GB18030, then Latin-1,
// which accepts any byte sequence.
func Decode(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}

	if out, err := simplifiedchinese.GB18030.NewDecoder().Bytes(raw); err == nil && !containsRuneError(out) {
		return string(out)
	}

	out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

func containsRuneError(b []byte) bool {
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError {
			return true
		}
		b = b[size:]
	}
	return false
}

// Converter turns an HTML page into plain document text.
type Converter func(html string) (string, error)

// NewConverter returns the converter for a markup name. An empty name means
// plain text.
func NewConverter(markup string) (Converter, error) {
	switch markup {
	case "", MarkupText:
		return func(html string) (string, error) {
			return html2text.HTML2Text(html), nil
		}, nil
	case MarkupMarkdown:
		return func(html string) (string, error) {
			return htmltomarkdown.ConvertString(html)
		}, nil
	default:
		return nil, fmt.Errorf("unknown markup %q (expected %q or %q)", markup, MarkupText, MarkupMarkdown)
	}
}
