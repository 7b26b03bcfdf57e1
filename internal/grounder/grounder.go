// Package grounder orchestrates retrieval and answer assembly: it searches
// the vector index, concatenates the retrieved chunks as grounding context,
// delegates field extraction, and attaches a citation per supporting chunk.
package grounder

import (
	"fmt"
	"log/slog"
	"strings"

	"courtpack/internal/domain"
	"courtpack/internal/extract"
)

// snippetLen bounds the evidence preview per citation in formatted output.
const snippetLen = 350

// Service answers questions against a built index.
type Service struct {
	searcher  domain.Searcher
	extractor domain.Extractor
	fetchK    int
	logger    *slog.Logger
}

// New wires a grounding service. fetchK bounds the pre-filter candidate
// pool for every search issued through this service.
func New(searcher domain.Searcher, extractor domain.Extractor, fetchK int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{searcher: searcher, extractor: extractor, fetchK: fetchK, logger: logger}
}

// Answer retrieves the topK chunks for the query, restricted to packID when
// non-empty, and assembles a grounded answer. An empty retrieval yields a
// NotFound answer, not an error.
func (s *Service) Answer(query, packID string, topK int) (domain.GroundedAnswer, error) {
	var filter func(domain.ChunkMeta) bool
	if packID != "" {
		filter = func(m domain.ChunkMeta) bool { return m.PackID == packID }
	}

	results, err := s.searcher.Search(query, topK, s.fetchK, filter)
	if err != nil {
		return domain.GroundedAnswer{}, fmt.Errorf("search: %w", err)
	}
	if len(results) == 0 {
		s.logger.Debug("no chunks matched", "query", query, "pack", packID)
		return domain.GroundedAnswer{Status: domain.AnswerNotFound}, nil
	}

	chunks := make([]domain.Chunk, len(results))
	citations := make([]domain.Citation, len(results))
	texts := make([]string, len(results))
	for i, r := range results {
		chunks[i] = r.Chunk
		citations[i] = r.Chunk.Citation()
		texts[i] = r.Chunk.Text
	}
	context := strings.Join(texts, "\n\n")

	answer := domain.GroundedAnswer{
		Status:           domain.AnswerFound,
		Citations:        citations,
		SupportingChunks: chunks,
		Fields:           s.extractFields(context, chunks),
	}
	answer.Text = answerText(query, results, answer.Fields)
	return answer, nil
}

// answerText picks the answer body: the extracted value when the query
// targets a known field and extraction found it, otherwise the
// highest-ranked chunk's text as a free-form answer.
func answerText(query string, results []domain.SearchResult, fields []domain.FieldValue) string {
	if field, known := extract.FieldForQuestion(query); known {
		for _, fv := range fields {
			if fv.Field == field {
				return fv.Value
			}
		}
	}
	return results[0].Chunk.Text
}

// extractFields runs the extractor over the full grounding context for
// every known field, citing the chunk whose text supplied each match.
func (s *Service) extractFields(context string, chunks []domain.Chunk) []domain.FieldValue {
	var out []domain.FieldValue
	for _, field := range extract.Fields() {
		cand, ok := s.extractor.Extract(field, context)
		if !ok {
			continue
		}
		out = append(out, domain.FieldValue{
			Field:    field,
			Value:    cand.Value,
			Citation: citationFor(cand, chunks),
		})
	}
	return out
}

// citationFor locates the chunk containing the match offset. Chunks are
// joined with "\n\n" when the context is assembled.
func citationFor(cand domain.FieldCandidate, chunks []domain.Chunk) domain.Citation {
	offset := 0
	for _, ch := range chunks {
		end := offset + len(ch.Text)
		if cand.Start < end {
			return ch.Citation()
		}
		offset = end + len("\n\n")
	}
	return chunks[len(chunks)-1].Citation()
}

// FormatAnswer renders a grounded answer as the bullet list of every field
// found in the evidence, in the fixed field order. Used by the CLI and TUI.
func FormatAnswer(a domain.GroundedAnswer) string {
	if a.Status == domain.AnswerNotFound {
		return "No matching evidence found (try a broader question or a different pack)."
	}
	var b strings.Builder
	if len(a.Fields) == 0 {
		b.WriteString(a.Text)
		b.WriteString("\n")
	}
	for _, fv := range a.Fields {
		fmt.Fprintf(&b, "- %s: %s (%s p.%d)\n", extract.Label(fv.Field), fv.Value, fv.Citation.SourcePath, fv.Citation.PageNumber)
	}
	if len(a.SupportingChunks) > 0 {
		b.WriteString("\nEvidence:\n")
		for i, ch := range a.SupportingChunks {
			fmt.Fprintf(&b, "  [%d] %s p.%d: %s\n", i+1, ch.SourcePath, ch.PageNumber, extract.Snippet(ch.Text, snippetLen))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
