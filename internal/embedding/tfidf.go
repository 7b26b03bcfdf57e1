package embedding

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
)

// TFIDF is a local, deterministic TF-IDF vectorizer. It builds a vocabulary
// and IDF weights from the chunk corpus during Prepare and produces
// L2-normalized vectors, so cosine similarity reduces to a dot product.
type TFIDF struct {
	terms    []string
	index    map[string]int
	idf      []float64
	prepared bool

	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewTFIDF creates an unprepared TF-IDF embedder.
func NewTFIDF() *TFIDF {
	return &TFIDF{
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}[\p{N},./:-]*`),
		stopwords:    stopwordSet(),
	}
}

// Name identifies this embedding model in index manifests.
func (e *TFIDF) Name() string { return "tfidf-v1" }

// Prepare builds the vocabulary and smoothed IDF weights from the corpus.
func (e *TFIDF) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("empty corpus for tfidf prepare")
	}
	docFreq := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range e.tokenize(text) {
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			docFreq[tok]++
		}
	}
	if len(docFreq) == 0 {
		return errors.New("no tokens found in corpus")
	}

	// Sorted terms give a stable vector layout across runs.
	terms := make([]string, 0, len(docFreq))
	for term := range docFreq {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	idf := make([]float64, len(terms))
	index := make(map[string]int, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		index[term] = i
		idf[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	e.terms = terms
	e.index = index
	e.idf = idf
	e.prepared = true
	return nil
}

// Dimension returns the vocabulary size, zero before Prepare.
func (e *TFIDF) Dimension() int { return len(e.terms) }

// Embed computes the L2-normalized TF-IDF vector for the given text.
// Text with no known tokens embeds to the zero vector.
func (e *TFIDF) Embed(text string) ([]float64, error) {
	if !e.prepared {
		return nil, errors.New("tfidf embedder not prepared")
	}
	vec := make([]float64, len(e.terms))
	counts := make(map[int]int)
	total := 0
	for _, tok := range e.tokenize(text) {
		if i, known := e.index[tok]; known {
			counts[i]++
			total++
		}
	}
	if total == 0 {
		return vec, nil
	}
	norm := 0.0
	for i, count := range counts {
		v := float64(count) / float64(total) * e.idf[i]
		vec[i] = v
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

type tfidfState struct {
	Terms []string  `json:"terms"`
	IDF   []float64 `json:"idf"`
}

// MarshalState serializes the prepared vocabulary for index persistence.
func (e *TFIDF) MarshalState() ([]byte, error) {
	if !e.prepared {
		return nil, errors.New("tfidf embedder not prepared")
	}
	return json.Marshal(tfidfState{Terms: e.terms, IDF: e.idf})
}

// UnmarshalState restores the vocabulary saved by MarshalState, making the
// embedder ready without another Prepare pass.
func (e *TFIDF) UnmarshalState(data []byte) error {
	var st tfidfState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	if len(st.Terms) == 0 || len(st.Terms) != len(st.IDF) {
		return errors.New("malformed tfidf state")
	}
	e.terms = st.Terms
	e.idf = st.IDF
	e.index = make(map[string]int, len(st.Terms))
	for i, term := range st.Terms {
		e.index[term] = i
	}
	e.prepared = true
	return nil
}

// tokenize lowercases and splits into word and number tokens. Number tokens
// keep their internal punctuation so references like POL-00112233 or
// £12,500.00 survive as searchable units.
func (e *TFIDF) tokenize(text string) []string {
	raw := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		tok = strings.TrimRight(tok, ",./:-")
		if tok == "" {
			continue
		}
		if _, stop := e.stopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func stopwordSet() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those",
		"from", "up", "down", "over", "under", "than", "so", "such", "into", "about", "between", "through",
		"during", "before", "after", "out", "off", "own", "same", "too", "very", "can", "will", "did", "what",
		"when", "where", "who", "how", "occur", "occurred",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
