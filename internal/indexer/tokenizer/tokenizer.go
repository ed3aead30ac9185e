// Package tokenizer turns raw text into the normalised terms the index and
// the query path share. The default tokenizer lower-cases input and splits on
// non-alphanumeric boundaries; a snowball stemming tokenizer with optional
// stop-word removal is available for corpora that want it.
package tokenizer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
)

// Tokenizer maps text to an ordered sequence of terms. Implementations must
// be deterministic and free of side effects; the same tokenizer has to be
// used for indexing and querying.
type Tokenizer interface {
	Tokenize(text string) []string
}

// Func adapts a plain function to the Tokenizer interface.
type Func func(text string) []string

func (f Func) Tokenize(text string) []string {
	return f(text)
}

// Default lower-cases, splits on anything that is not a letter or digit and
// drops empty tokens. No stemming, no stop words.
var Default Tokenizer = Func(Tokenize)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// Tokenize is the default tokenization.
func Tokenize(text string) []string {
	// FieldsFunc never yields empty fields.
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Stemming runs the default tokenization, optionally removes English stop
// words, and reduces every token to its snowball stem.
type Stemming struct {
	language  string
	stopWords bool
}

// NewStemming returns a stemming tokenizer for one of the snowball
// languages (english, spanish, french, russian, swedish, norwegian,
// hungarian).
func NewStemming(language string, removeStopWords bool) (*Stemming, error) {
	if _, err := snowball.Stem("probe", language, true); err != nil {
		return nil, fmt.Errorf("stemming tokenizer: %w", err)
	}
	return &Stemming{language: language, stopWords: removeStopWords}, nil
}

func (s *Stemming) Tokenize(text string) []string {
	words := Tokenize(text)
	terms := words[:0]
	for _, word := range words {
		if s.stopWords {
			if _, isStop := stopWords[word]; isStop {
				continue
			}
		}
		// The language was validated by NewStemming, so Stem cannot fail.
		stemmed, _ := snowball.Stem(word, s.language, true)
		if stemmed == "" {
			continue
		}
		terms = append(terms, stemmed)
	}
	return terms
}

// FromName builds a tokenizer from its configuration name.
func FromName(name, language string, removeStopWords bool) (Tokenizer, error) {
	switch name {
	case "", "default":
		if removeStopWords {
			return Func(func(text string) []string {
				return filterStopWords(Tokenize(text))
			}), nil
		}
		return Default, nil
	case "stemming":
		return NewStemming(language, removeStopWords)
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", name)
	}
}

func filterStopWords(words []string) []string {
	kept := words[:0]
	for _, word := range words {
		if _, isStop := stopWords[word]; !isStop {
			kept = append(kept, word)
		}
	}
	return kept
}
