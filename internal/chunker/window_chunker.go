package chunker

import (
	"fmt"

	"courtpack/internal/domain"
)

// WindowChunker splits page text into fixed-size rune windows with overlap.
// Consecutive chunks from the same page share exactly `overlap` runes, so
// concatenating chunks with the overlap removed reconstructs the page text.
// The unit is runes, held fixed across the whole corpus.
type WindowChunker struct {
	size    int
	overlap int
}

// NewWindowChunker validates the window parameters. Overlap must be
// strictly smaller than the chunk size.
func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfig, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative, got %d", domain.ErrInvalidConfig, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", domain.ErrInvalidConfig, overlap, size)
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

// Chunk produces the ordered chunk sequence covering the page. A page
// shorter than the chunk size yields exactly one chunk equal to the full
// page; the final chunk may be shorter than the configured size.
func (c *WindowChunker) Chunk(page domain.PageDocument) ([]domain.Chunk, error) {
	runes := []rune(page.Text)
	n := len(runes)
	step := c.size - c.overlap

	var chunks []domain.Chunk
	for start, ordinal := 0, 0; ; start, ordinal = start+step, ordinal+1 {
		end := start + c.size
		last := end >= n
		if last {
			end = n
		}
		chunks = append(chunks, domain.Chunk{
			ID:         chunkID(page, ordinal),
			PackID:     page.PackID,
			SourcePath: page.SourcePath,
			PageNumber: page.PageNumber,
			Ordinal:    ordinal,
			Text:       string(runes[start:end]),
			Span:       domain.Span{Start: start, End: end},
		})
		if last {
			break
		}
	}
	return chunks, nil
}

func chunkID(page domain.PageDocument, ordinal int) string {
	return fmt.Sprintf("%s:%d:%d", page.PackID, page.PageNumber, ordinal)
}
