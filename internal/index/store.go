package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"courtpack/internal/domain"
	"courtpack/internal/embedding"
)

const (
	manifestFile = "manifest.json"
	vectorsFile  = "vectors.db"

	stateKeyEmbedder = "embedder_state"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	pos         INTEGER PRIMARY KEY,
	id          TEXT NOT NULL,
	pack_id     TEXT NOT NULL,
	source_path TEXT NOT NULL,
	page        INTEGER NOT NULL,
	ordinal     INTEGER NOT NULL,
	span_start  INTEGER NOT NULL,
	span_end    INTEGER NOT NULL,
	text        TEXT NOT NULL,
	vector      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS state (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);`

// Save persists the index into dir: vectors.db holds the chunks and their
// embeddings in insertion order, manifest.json records corpus identity.
func (ix *Index) Save(dir string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.built {
		return domain.ErrIndexNotBuilt
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, vectorsFile))
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Rebuilding from scratch discards any prior content.
	for _, stmt := range []string{`DROP TABLE IF EXISTS chunks`, `DROP TABLE IF EXISTS state`, schema} {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	insert, err := tx.Prepare(`INSERT INTO chunks(pos,id,pack_id,source_path,page,ordinal,span_start,span_end,text,vector) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer insert.Close()
	for i, ch := range ix.chunks {
		vec, err := json.Marshal(ix.vectors[i])
		if err != nil {
			return err
		}
		if _, err := insert.Exec(i, ch.ID, ch.PackID, ch.SourcePath, ch.PageNumber, ch.Ordinal, ch.Span.Start, ch.Span.End, ch.Text, string(vec)); err != nil {
			return err
		}
	}

	if stateful, ok := ix.embedder.(embedding.Stateful); ok {
		blob, err := stateful.MarshalState()
		if err != nil {
			return fmt.Errorf("marshal embedder state: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO state(key,value) VALUES(?,?)`, stateKeyEmbedder, blob); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(ix.manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, manifestFile), append(data, '\n'), 0o644)
}

// Load reads a persisted index from dir. It refuses to load when the
// manifest's embedding model differs from the configured embedder, since
// vectors from different models are not comparable.
func Load(dir string, embedder domain.Embedder) (*Index, error) {
	manifest, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	if manifest.EmbeddingModel != embedder.Name() {
		return nil, fmt.Errorf("%w: index built with %q, configured embedder is %q",
			domain.ErrModelMismatch, manifest.EmbeddingModel, embedder.Name())
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, vectorsFile))
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if stateful, ok := embedder.(embedding.Stateful); ok {
		var blob []byte
		err := db.QueryRow(`SELECT value FROM state WHERE key=?`, stateKeyEmbedder).Scan(&blob)
		if err != nil {
			return nil, fmt.Errorf("read embedder state: %w", err)
		}
		if err := stateful.UnmarshalState(blob); err != nil {
			return nil, fmt.Errorf("restore embedder state: %w", err)
		}
	}

	rows, err := db.Query(`SELECT id,pack_id,source_path,page,ordinal,span_start,span_end,text,vector FROM chunks ORDER BY pos`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ix := New(embedder)
	for rows.Next() {
		var ch domain.Chunk
		var vecJSON string
		if err := rows.Scan(&ch.ID, &ch.PackID, &ch.SourcePath, &ch.PageNumber, &ch.Ordinal, &ch.Span.Start, &ch.Span.End, &ch.Text, &vecJSON); err != nil {
			return nil, err
		}
		var vec []float64
		if err := json.Unmarshal([]byte(vecJSON), &vec); err != nil {
			return nil, fmt.Errorf("decode vector for chunk %s: %w", ch.ID, err)
		}
		ix.chunks = append(ix.chunks, ch)
		ix.vectors = append(ix.vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	ix.manifest = *manifest
	ix.built = true
	return ix, nil
}

// ReadManifest reads just the manifest of a persisted index.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// VerifySources compares the manifest's recorded sources against the
// filesystem. A missing source file means retrieval may cite documents that
// no longer exist; the returned ErrStaleIndex is a warning for the caller,
// not a reason to refuse searching.
func (ix *Index) VerifySources() error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var missing []string
	for _, src := range ix.manifest.Sources {
		if _, err := os.Stat(src.Path); err != nil {
			missing = append(missing, src.Path)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %d source file(s) missing, first: %s", domain.ErrStaleIndex, len(missing), missing[0])
	}
	return nil
}
