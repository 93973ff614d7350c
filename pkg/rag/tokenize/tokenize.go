// Package tokenize splits text into index terms.
package tokenize

import (
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "as": true, "by": true, "is": true,
	"was": true, "are": true, "were": true, "be": true, "been": true,
	"it": true, "its": true, "this": true, "that": true, "with": true,
	"how": true, "what": true, "does": true, "do": true, "can": true,
}

// Tokenizer segments text on Unicode word boundaries. Terms are lowercased,
// segments without a letter or digit are dropped, and so are English stopwords.
// Ideographic scripts come out one character per term.
type Tokenizer struct {
	keepStopwords bool
}

type Opt func(*Tokenizer)

// WithStopwords keeps stopwords in the output.
func WithStopwords() Opt {
	return func(t *Tokenizer) {
		t.keepStopwords = true
	}
}

func New(opts ...Opt) *Tokenizer {
	t := &Tokenizer{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tokenizer) Tokenize(text string) []string {
	var tokens []string

	seg := words.FromString(text)
	for seg.Next() {
		word := seg.Value()
		if !isWord(word) {
			continue
		}

		word = strings.ToLower(word)
		if !t.keepStopwords && stopwords[word] {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

func isWord(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
