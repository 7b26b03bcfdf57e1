package domain

// PageDocument is a single physical page of a source document.
// Pages are immutable once loaded.
type PageDocument struct {
	PackID     string
	SourcePath string
	PageNumber int // 1-based
	Text       string
}

// Span is a half-open rune range [Start, End) within a page's text.
type Span struct {
	Start int
	End   int
}

// Chunk is a bounded, overlapping slice of a page's text used as an
// embedding unit. It keeps the page's identifying fields so a result can be
// cited without re-fetching the page.
type Chunk struct {
	ID         string
	PackID     string
	SourcePath string
	PageNumber int
	Ordinal    int // position within the page
	Text       string
	Span       Span
}

// Meta returns the denormalized identifying fields used for retrieval
// filtering.
func (c Chunk) Meta() ChunkMeta {
	return ChunkMeta{
		PackID:     c.PackID,
		SourcePath: c.SourcePath,
		PageNumber: c.PageNumber,
		Ordinal:    c.Ordinal,
	}
}

// Citation points a result back to its source page.
func (c Chunk) Citation() Citation {
	return Citation{SourcePath: c.SourcePath, PageNumber: c.PageNumber}
}

// ChunkMeta is the metadata stored alongside each indexed vector.
type ChunkMeta struct {
	PackID     string
	SourcePath string
	PageNumber int
	Ordinal    int
}

// SearchResult is a matching chunk with its similarity score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Citation identifies the page a piece of evidence came from.
type Citation struct {
	SourcePath string `json:"source_path"`
	PageNumber int    `json:"page_number"`
}

// AnswerStatus reports whether a query produced any grounding evidence.
type AnswerStatus string

const (
	// AnswerFound means at least one chunk matched the query.
	AnswerFound AnswerStatus = "found"
	// AnswerNotFound means retrieval returned nothing; it is a valid empty
	// result, not an error.
	AnswerNotFound AnswerStatus = "not_found"
)

// FieldValue is a structured field pulled out of grounding context,
// with the citation of the chunk that supplied it.
type FieldValue struct {
	Field    string   `json:"field"`
	Value    string   `json:"value"`
	Citation Citation `json:"citation"`
}

// GroundedAnswer is the result of answering a query: free text plus the
// evidence it traces to. Every claim in Text is supported by
// SupportingChunks, with one Citation per chunk.
type GroundedAnswer struct {
	Status           AnswerStatus `json:"status"`
	Text             string       `json:"text"`
	Fields           []FieldValue `json:"fields,omitempty"`
	Citations        []Citation   `json:"citations"`
	SupportingChunks []Chunk      `json:"-"`
}

// FieldCandidate is a value extracted from context text. Start and End are
// byte offsets of the match within the context.
type FieldCandidate struct {
	Value string
	Start int
	End   int
}
