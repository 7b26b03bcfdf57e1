// Package embedding provides the text embedders used to vectorize chunks
// and queries. The same embedder must be used at build and query time; the
// index records the embedder name in its manifest and refuses mismatches.
package embedding

// Stateful is implemented by embedders whose vectorization depends on
// corpus-derived state (vocabulary, IDF weights). The index persists this
// state alongside the vectors so a loaded index embeds queries exactly as
// it embedded chunks at build time.
type Stateful interface {
	MarshalState() ([]byte, error)
	UnmarshalState(data []byte) error
}
