// Package loader reads multi-page claim documents and emits one PageDocument
// per page. PDF sources are read page by page; plain-text sources count as a
// single page. The pack ID is derived from the file name stem.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"courtpack/internal/domain"
)

// PackID derives the pack identifier for a source file. Each source file is
// its own pack: one legal case per document.
func PackID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Pages opens a source file and returns a page iterator. Pages are produced
// lazily in page order; the iterator is finite and not restartable. A file
// that cannot be opened or parsed yields a LoadError.
func Pages(path string) (*PageIterator, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return openPDF(path)
	case ".txt":
		return openText(path)
	default:
		return nil, &domain.LoadError{Path: path, Err: fmt.Errorf("unsupported source type %q", filepath.Ext(path))}
	}
}

// PageIterator walks the pages of a single source document.
//
//	it, err := loader.Pages(path)
//	defer it.Close()
//	for it.Next() {
//	    page := it.Page()
//	}
//	err = it.Err()
type PageIterator struct {
	packID string
	path   string

	file  *os.File
	pdf   *pdf.Reader
	total int
	next  int // next 1-based page to read

	text    string // plain-text sources
	current domain.PageDocument
	err     error
}

// Next advances to the next page. It returns false when the document is
// exhausted or a fatal read error occurred; check Err afterwards.
func (it *PageIterator) Next() bool {
	if it.err != nil || it.next > it.total {
		return false
	}
	doc := domain.PageDocument{
		PackID:     it.packID,
		SourcePath: it.path,
		PageNumber: it.next,
	}
	if it.pdf != nil {
		doc.Text = it.extractPage(it.next)
	} else {
		doc.Text = it.text
	}
	it.current = doc
	it.next++
	return true
}

// Page returns the page produced by the last successful Next call.
func (it *PageIterator) Page() domain.PageDocument { return it.current }

// Err reports the first fatal error encountered while iterating.
func (it *PageIterator) Err() error { return it.err }

// Close releases the underlying file handle.
func (it *PageIterator) Close() error {
	if it.file == nil {
		return nil
	}
	f := it.file
	it.file = nil
	return f.Close()
}

// extractPage pulls plain text from one PDF page. Scanned or image-only
// pages commonly carry no extractable text; those yield an empty-text page
// rather than aborting the whole load.
func (it *PageIterator) extractPage(num int) string {
	p := it.pdf.Page(num)
	if p.V.IsNull() {
		return ""
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

func openPDF(path string) (*PageIterator, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, &domain.LoadError{Path: path, Err: err}
	}
	total := r.NumPage()
	if total == 0 {
		_ = f.Close()
		return nil, &domain.LoadError{Path: path, Err: fmt.Errorf("document has no pages")}
	}
	return &PageIterator{
		packID: PackID(path),
		path:   path,
		file:   f,
		pdf:    r,
		total:  total,
		next:   1,
	}, nil
}

func openText(path string) (*PageIterator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.LoadError{Path: path, Err: err}
	}
	return &PageIterator{
		packID: PackID(path),
		path:   path,
		total:  1,
		next:   1,
		text:   strings.TrimSpace(string(data)),
	}, nil
}
