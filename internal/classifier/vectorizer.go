package classifier

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/gonum/floats"
	"golang.org/x/text/cases"
)

// stopWords is a small English stop list; symptom vocabulary is never listed here
var stopWords = map[string]struct{}{
	"a": {}, "about": {}, "after": {}, "all": {}, "an": {}, "and": {}, "any": {},
	"are": {}, "as": {}, "at": {}, "be": {}, "been": {}, "before": {}, "behind": {},
	"but": {}, "by": {}, "can": {}, "do": {}, "for": {}, "from": {}, "has": {},
	"have": {}, "he": {}, "her": {}, "his": {}, "i": {}, "in": {}, "into": {},
	"is": {}, "it": {}, "its": {}, "me": {}, "my": {}, "no": {}, "not": {},
	"of": {}, "on": {}, "or": {}, "over": {}, "she": {}, "since": {}, "so": {},
	"some": {}, "than": {}, "that": {}, "the": {}, "their": {}, "them": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "this": {}, "to": {},
	"very": {}, "was": {}, "we": {}, "were": {}, "when": {}, "which": {},
	"while": {}, "who": {}, "will": {}, "with": {}, "you": {}, "your": {},
}

// Normalize case-folds text so matching ignores letter case in any script
func Normalize(text string) string {
	return cases.Fold().String(text)
}

// Tokenize splits text into folded word tokens of at least two characters,
// dropping stop words
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(Normalize(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// Vectorizer turns text into L2-normalised TF-IDF vectors
type Vectorizer struct {
	Vocabulary map[string]int
	IDF        []float64
}

// FitVectorizer learns the vocabulary and smoothed inverse document
// frequencies from a corpus. Vocabulary indices follow sorted term order.
func FitVectorizer(docs []string) *Vectorizer {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, tok := range Tokenize(doc) {
			if !seen[tok] {
				seen[tok] = true
				df[tok]++
			}
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(docs))
	v := &Vectorizer{
		Vocabulary: make(map[string]int, len(terms)),
		IDF:        make([]float64, len(terms)),
	}
	for i, term := range terms {
		v.Vocabulary[term] = i
		v.IDF[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return v
}

// Dim returns the feature dimension
func (v *Vectorizer) Dim() int {
	return len(v.IDF)
}

// Transform vectorises a single document. Out-of-vocabulary text yields
// the zero vector.
func (v *Vectorizer) Transform(text string) []float64 {
	vec := make([]float64, v.Dim())
	for _, tok := range Tokenize(text) {
		if idx, ok := v.Vocabulary[tok]; ok {
			vec[idx]++
		}
	}
	floats.Mul(vec, v.IDF)

	if norm := floats.Norm(vec, 2); norm > 0 {
		floats.Scale(1/norm, vec)
	}
	return vec
}
