package domain

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
// Name identifies the embedding model; an index built with one embedder
// must never be searched with another.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(text string) ([]float64, error)
}

// Chunker splits a page into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(page PageDocument) ([]Chunk, error)
}

// Extractor pulls a structured field value out of grounding context.
// It is a pure function of the context text: deterministic, and it reports
// ok=false rather than failing when no match is found.
type Extractor interface {
	Extract(field, context string) (FieldCandidate, bool)
}

// Searcher answers nearest-neighbor queries over indexed chunks. The filter,
// when non-nil, restricts candidates before truncation to topK; fetchK
// bounds the pre-filter candidate pool and must be >= topK.
type Searcher interface {
	Search(query string, topK, fetchK int, filter func(ChunkMeta) bool) ([]SearchResult, error)
}
