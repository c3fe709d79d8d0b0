// Package completion derives word candidates from the text of a buffer.
//
// A word is a maximal run of runes that are neither whitespace nor ASCII
// punctuation. Every distinct word of the buffer is offered except the one
// being typed at the cursor. Nothing is filtered by prefix or ranked.
package completion

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"buffer-language-server/internal/position"

	"github.com/google/btree"
)

const asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// Kind classifies a candidate. Only plain text is produced.
type Kind int

const (
	KindText Kind = iota + 1
)

// Candidate is one completion suggestion.
type Candidate struct {
	Label string
	Kind  Kind
}

// Order selects how candidates are sorted.
type Order int

const (
	OrderOccurrence   Order = iota // first occurrence in the buffer
	OrderAlphabetical              // byte-wise ascending
)

func (o Order) String() string {
	switch o {
	case OrderOccurrence:
		return "occurrence"
	case OrderAlphabetical:
		return "alphabetical"
	default:
		return fmt.Sprintf("Order(%d)", int(o))
	}
}

// ParseOrder accepts "occurrence" and "alphabetical".
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(s) {
	case "occurrence", "":
		return OrderOccurrence, nil
	case "alphabetical":
		return OrderAlphabetical, nil
	default:
		return 0, fmt.Errorf("completion: unknown candidate order %q", s)
	}
}

// Options tune Complete.
type Options struct {
	Encoding position.Encoding
	Order    Order
}

// IsSeparator reports whether r ends a word.
func IsSeparator(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	return r < utf8.RuneSelf && strings.ContainsRune(asciiPunctuation, r)
}

// Tokenize splits text into words. Empty words between adjacent separators
// are dropped.
func Tokenize(text string) []string {
	return strings.FieldsFunc(text, IsSeparator)
}

// CurrentWord returns the word that ends exactly at pos. It is empty when the
// cursor follows a separator or sits at the start of the buffer.
func CurrentWord(text string, pos position.Position, enc position.Encoding) string {
	end := enc.OffsetOf(text, pos)
	return text[wordStart(text, end):end]
}

func wordStart(text string, end int) int {
	start := end
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if IsSeparator(r) {
			break
		}
		start -= size
	}
	return start
}

// Complete returns every distinct word in text except the one at pos.
func Complete(text string, pos position.Position, opts Options) []Candidate {
	current := CurrentWord(text, pos, opts.Encoding)

	var words []string
	switch opts.Order {
	case OrderAlphabetical:
		words = sortedWords(text)
	default:
		words = uniqueWords(text)
	}

	candidates := make([]Candidate, 0, len(words))
	for _, w := range words {
		if w == current {
			continue
		}
		candidates = append(candidates, Candidate{Label: w, Kind: KindText})
	}
	return candidates
}

func uniqueWords(text string) []string {
	tokens := Tokenize(text)
	seen := make(map[string]struct{}, len(tokens))
	words := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		words = append(words, t)
	}
	return words
}

func sortedWords(text string) []string {
	tree := btree.NewOrderedG[string](16)
	for _, t := range Tokenize(text) {
		tree.ReplaceOrInsert(t)
	}
	words := make([]string, 0, tree.Len())
	tree.Ascend(func(w string) bool {
		words = append(words, w)
		return true
	})
	return words
}
