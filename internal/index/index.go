// Package index builds and queries the vector index over claim-document
// chunks. Scoring is brute-force cosine similarity over the full vector
// set; the index persists to a directory as a sqlite vector store plus a
// JSON manifest describing corpus identity.
package index

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"courtpack/internal/domain"
)

// Index holds embedded chunks and answers nearest-neighbor queries.
// Build is exclusive; Search calls are read-only and may run concurrently
// once a build or load has completed.
type Index struct {
	mu       sync.RWMutex
	embedder domain.Embedder
	chunks   []domain.Chunk
	vectors  [][]float64
	built    bool
	manifest Manifest
}

// New creates an empty index bound to an embedder. The same embedder embeds
// chunks at build time and queries at search time.
func New(embedder domain.Embedder) *Index {
	return &Index{embedder: embedder}
}

// Build embeds every chunk and replaces any prior index content. Chunk
// insertion order is preserved; it is the tie-break order for equal scores.
func (ix *Index) Build(chunks []domain.Chunk) error {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	if err := ix.embedder.Prepare(texts); err != nil {
		return fmt.Errorf("prepare embedder: %w", err)
	}
	vectors := make([][]float64, len(chunks))
	for i, ch := range chunks {
		vec, err := ix.embedder.Embed(ch.Text)
		if err != nil {
			return fmt.Errorf("embed chunk %s: %w", ch.ID, err)
		}
		vectors[i] = vec
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.chunks = append([]domain.Chunk(nil), chunks...)
	ix.vectors = vectors
	ix.manifest = newManifest(ix.embedder, ix.chunks)
	ix.built = true
	return nil
}

// Search embeds the query and returns the topK most similar chunks.
// The fetchK nearest candidates are collected first, in stable score order;
// the filter then restricts them before truncation to topK, so a minority
// pack is never starved out of its valid matches by the truncation.
func (ix *Index) Search(query string, topK, fetchK int, filter func(domain.ChunkMeta) bool) ([]domain.SearchResult, error) {
	if topK < 1 {
		return nil, fmt.Errorf("%w: top_k must be at least 1, got %d", domain.ErrInvalidConfig, topK)
	}
	if fetchK < topK {
		return nil, fmt.Errorf("%w: fetch_k %d must not be smaller than top_k %d", domain.ErrInvalidConfig, fetchK, topK)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.built {
		return nil, domain.ErrIndexNotBuilt
	}

	qvec, err := ix.embedder.Embed(query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	scores := make([]float64, len(ix.vectors))
	order := make([]int, len(ix.vectors))
	for i := range ix.vectors {
		scores[i] = cosine(qvec, ix.vectors[i])
		order[i] = i
	}
	// Stable sort keeps insertion order for equal scores, which makes
	// repeated searches over the same index deterministic.
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	if fetchK > len(order) {
		fetchK = len(order)
	}
	results := make([]domain.SearchResult, 0, topK)
	for _, i := range order[:fetchK] {
		if filter != nil && !filter(ix.chunks[i].Meta()) {
			continue
		}
		results = append(results, domain.SearchResult{Chunk: ix.chunks[i], Score: scores[i]})
		if len(results) == topK {
			break
		}
	}
	return results, nil
}

// Manifest returns a copy of the build manifest.
func (ix *Index) Manifest() Manifest {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.manifest
}

// Packs returns the distinct pack IDs in the index, sorted.
func (ix *Index) Packs() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	seen := make(map[string]struct{})
	var packs []string
	for _, ch := range ix.chunks {
		if _, dup := seen[ch.PackID]; dup {
			continue
		}
		seen[ch.PackID] = struct{}{}
		packs = append(packs, ch.PackID)
	}
	sort.Strings(packs)
	return packs
}

// Manifest records the corpus identity of a build so callers can detect a
// stale index and refuse mismatched embedding models.
type Manifest struct {
	BuildID        string    `json:"build_id"`
	BuiltAt        time.Time `json:"built_at"`
	EmbeddingModel string    `json:"embedding_model"`
	Dimension      int       `json:"dimension"`
	TotalChunks    int       `json:"total_chunks"`
	Sources        []Source  `json:"sources"`
}

// Source is one indexed file with its chunk count.
type Source struct {
	Path       string `json:"path"`
	PackID     string `json:"pack_id"`
	ChunkCount int    `json:"chunk_count"`
}

func newManifest(embedder domain.Embedder, chunks []domain.Chunk) Manifest {
	counts := make(map[string]*Source)
	var paths []string
	for _, ch := range chunks {
		src, seen := counts[ch.SourcePath]
		if !seen {
			src = &Source{Path: ch.SourcePath, PackID: ch.PackID}
			counts[ch.SourcePath] = src
			paths = append(paths, ch.SourcePath)
		}
		src.ChunkCount++
	}
	sort.Strings(paths)
	sources := make([]Source, len(paths))
	for i, p := range paths {
		sources[i] = *counts[p]
	}
	return Manifest{
		BuildID:        uuid.NewString(),
		BuiltAt:        time.Now().UTC(),
		EmbeddingModel: embedder.Name(),
		Dimension:      embedder.Dimension(),
		TotalChunks:    len(chunks),
		Sources:        sources,
	}
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
