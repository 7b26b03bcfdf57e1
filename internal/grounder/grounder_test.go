package grounder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtpack/internal/chunker"
	"courtpack/internal/domain"
	"courtpack/internal/embedding"
	"courtpack/internal/extract"
	"courtpack/internal/index"
)

func buildIndex(t *testing.T, chunks []domain.Chunk) *index.Index {
	t.Helper()
	ix := index.New(embedding.NewTFIDF())
	require.NoError(t, ix.Build(chunks))
	return ix
}

func newService(t *testing.T, chunks []domain.Chunk) *Service {
	t.Helper()
	return New(buildIndex(t, chunks), extract.NewRegex(), 50, nil)
}

func singlePageChunks(t *testing.T, pack, text string) []domain.Chunk {
	t.Helper()
	c, err := chunker.NewWindowChunker(500, 50)
	require.NoError(t, err)
	chunks, err := c.Chunk(domain.PageDocument{
		PackID:     pack,
		SourcePath: "data/" + pack + ".pdf",
		PageNumber: 1,
		Text:       text,
	})
	require.NoError(t, err)
	return chunks
}

func TestAnswer_SinglePageClaimReference(t *testing.T) {
	// One page, shorter than the chunk size: exactly one chunk, unchanged.
	chunks := singlePageChunks(t, "case-01", "Claim Reference: CLM-2024-001")
	require.Len(t, chunks, 1)

	svc := newService(t, chunks)
	ans, err := svc.Answer("What is the claim reference?", "", 3)
	require.NoError(t, err)

	assert.Equal(t, domain.AnswerFound, ans.Status)
	assert.Equal(t, "CLM-2024-001", ans.Text)
	require.Len(t, ans.SupportingChunks, 1)
	assert.Equal(t, chunks[0].ID, ans.SupportingChunks[0].ID)
	require.Len(t, ans.Citations, 1)
	assert.Equal(t, domain.Citation{SourcePath: "data/case-01.pdf", PageNumber: 1}, ans.Citations[0])
}

func TestAnswer_PackFilterRestrictsEvidence(t *testing.T) {
	chunks := append(
		singlePageChunks(t, "case-01", "Claim Reference: CLM-2024-001 total claimed £5,000.00"),
		singlePageChunks(t, "case-02", "Claim Reference: CLM-2024-002 total claimed £7,250.00")...,
	)
	svc := newService(t, chunks)

	ans, err := svc.Answer("What is the claim reference?", "case-02", 5)
	require.NoError(t, err)
	assert.Equal(t, "CLM-2024-002", ans.Text)
	for _, ch := range ans.SupportingChunks {
		assert.Equal(t, "case-02", ch.PackID)
	}
}

func TestAnswer_UnknownPackYieldsNotFound(t *testing.T) {
	svc := newService(t, singlePageChunks(t, "case-01", "Claim Reference: CLM-2024-001"))

	ans, err := svc.Answer("What is the claim reference?", "case-99", 3)
	require.NoError(t, err, "an empty retrieval is a valid result, not an error")
	assert.Equal(t, domain.AnswerNotFound, ans.Status)
	assert.Empty(t, ans.Text)
	assert.Empty(t, ans.SupportingChunks)
}

func TestAnswer_FreeFormFallsBackToTopChunk(t *testing.T) {
	chunks := singlePageChunks(t, "case-01", "The vehicle was recovered from the scene by the appointed agent")
	svc := newService(t, chunks)

	ans, err := svc.Answer("vehicle recovered scene", "", 3)
	require.NoError(t, err)
	assert.Equal(t, domain.AnswerFound, ans.Status)
	assert.Equal(t, chunks[0].Text, ans.Text)
}

func TestAnswer_KnownFieldAbsentFallsBackToTopChunk(t *testing.T) {
	// The question targets a known field, but the evidence carries no
	// policy number: the answer body is the top chunk, not an empty value.
	chunks := singlePageChunks(t, "case-01", "The policy holder reported the loss by telephone")
	svc := newService(t, chunks)

	ans, err := svc.Answer("What is the policy number?", "", 3)
	require.NoError(t, err)
	assert.Equal(t, domain.AnswerFound, ans.Status)
	assert.Equal(t, chunks[0].Text, ans.Text)
	assert.Empty(t, ans.Fields)
}

func TestAnswer_FieldsCarryCitations(t *testing.T) {
	text := "Claim Reference: CLM-2024-001\nPolicy Number: POL-00112233\nTotal Claimed: £12,500.00"
	svc := newService(t, singlePageChunks(t, "case-01", text))

	ans, err := svc.Answer("What is the total claimed amount?", "case-01", 3)
	require.NoError(t, err)
	assert.Equal(t, "£12,500.00", ans.Text)

	byField := map[string]domain.FieldValue{}
	for _, fv := range ans.Fields {
		byField[fv.Field] = fv
	}
	require.Contains(t, byField, extract.FieldClaimReference)
	require.Contains(t, byField, extract.FieldPolicyNumber)
	require.Contains(t, byField, extract.FieldTotalClaimed)
	assert.Equal(t, 1, byField[extract.FieldTotalClaimed].Citation.PageNumber)
}

func TestFormatAnswer(t *testing.T) {
	assert.Contains(t, FormatAnswer(domain.GroundedAnswer{Status: domain.AnswerNotFound}), "No matching evidence")

	a := domain.GroundedAnswer{
		Status: domain.AnswerFound,
		Text:   "CLM-2024-001",
		Fields: []domain.FieldValue{{
			Field:    extract.FieldClaimReference,
			Value:    "CLM-2024-001",
			Citation: domain.Citation{SourcePath: "data/case-01.pdf", PageNumber: 1},
		}},
	}
	out := FormatAnswer(a)
	assert.Contains(t, out, "- Claim reference: CLM-2024-001")
	assert.Contains(t, out, "data/case-01.pdf p.1")
}

func TestBuildFromDir_SkipsUnreadableDocuments(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "case-01.txt"),
		[]byte("Claim Reference: CLM-2024-001"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.pdf"),
		[]byte("this is not a pdf"), 0o644))

	c, err := chunker.NewWindowChunker(500, 50)
	require.NoError(t, err)
	ix := index.New(embedding.NewTFIDF())

	stats, err := NewBuilder(c, ix, nil).BuildFromDir(dir)
	require.NoError(t, err, "one bad file must not abort the corpus build")
	assert.Equal(t, 1, stats.Sources)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Chunks)
	assert.Equal(t, []string{"case-01"}, ix.Packs())
}

func TestBuildFromDir_EmptyDir(t *testing.T) {
	c, err := chunker.NewWindowChunker(500, 50)
	require.NoError(t, err)
	ix := index.New(embedding.NewTFIDF())

	_, err = NewBuilder(c, ix, nil).BuildFromDir(t.TempDir())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
