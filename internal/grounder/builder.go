package grounder

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"courtpack/internal/domain"
	"courtpack/internal/index"
	"courtpack/internal/loader"
)

// Builder turns a corpus directory into a built vector index.
type Builder struct {
	chunker domain.Chunker
	index   *index.Index
	logger  *slog.Logger
}

// BuildStats summarizes one corpus build.
type BuildStats struct {
	Sources int
	Skipped int
	Pages   int
	Chunks  int
}

// NewBuilder wires a corpus builder.
func NewBuilder(chunker domain.Chunker, ix *index.Index, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{chunker: chunker, index: ix, logger: logger}
}

// BuildFromDir loads every PDF and text file under dir, chunks each page,
// and builds the index. An unreadable document is skipped with a warning;
// one bad file must not abort indexing of the rest of the corpus.
func (b *Builder) BuildFromDir(dir string) (BuildStats, error) {
	paths, err := corpusFiles(dir)
	if err != nil {
		return BuildStats{}, err
	}
	if len(paths) == 0 {
		return BuildStats{}, fmt.Errorf("%w: no .pdf or .txt documents under %s", domain.ErrNotFound, dir)
	}

	var stats BuildStats
	var chunks []domain.Chunk
	for _, path := range paths {
		pageChunks, pages, err := b.chunkDocument(path)
		var loadErr *domain.LoadError
		if errors.As(err, &loadErr) {
			b.logger.Warn("skipping unreadable document", "path", path, "error", err)
			stats.Skipped++
			continue
		}
		if err != nil {
			return BuildStats{}, err
		}
		stats.Sources++
		stats.Pages += pages
		chunks = append(chunks, pageChunks...)
	}
	if len(chunks) == 0 {
		return BuildStats{}, fmt.Errorf("%w: no extractable text in corpus under %s", domain.ErrNotFound, dir)
	}
	stats.Chunks = len(chunks)

	b.logger.Info("building index", "sources", stats.Sources, "pages", stats.Pages, "chunks", stats.Chunks)
	if err := b.index.Build(chunks); err != nil {
		return BuildStats{}, err
	}
	return stats, nil
}

// chunkDocument loads one source and chunks its non-empty pages. Pages with
// no extractable text are expected with scanned legal documents; they are
// counted but produce no chunks.
func (b *Builder) chunkDocument(path string) ([]domain.Chunk, int, error) {
	it, err := loader.Pages(path)
	if err != nil {
		return nil, 0, err
	}
	defer it.Close()

	var chunks []domain.Chunk
	pages := 0
	for it.Next() {
		page := it.Page()
		pages++
		if page.Text == "" {
			b.logger.Debug("page has no extractable text", "path", path, "page", page.PageNumber)
			continue
		}
		pageChunks, err := b.chunker.Chunk(page)
		if err != nil {
			return nil, 0, err
		}
		chunks = append(chunks, pageChunks...)
	}
	if err := it.Err(); err != nil {
		return nil, 0, &domain.LoadError{Path: path, Err: err}
	}
	return chunks, pages, nil
}

func corpusFiles(dir string) ([]string, error) {
	var paths []string
	for _, pattern := range []string{"*.pdf", "*.txt"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)
	return paths, nil
}
