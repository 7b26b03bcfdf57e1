// Package eval replays the canonical question set against a ground-truth
// manifest and scores retrieval hit@k. A hit means the expected value
// appears verbatim (case/whitespace-normalized) in the retrieved supporting
// chunks, independent of what the extractor made of them: hit@k measures
// retrieval recall, not extractor precision.
package eval

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"courtpack/internal/domain"
	"courtpack/internal/extract"
)

// Answerer is the retrieval surface the evaluator drives.
type Answerer interface {
	Answer(query, packID string, topK int) (domain.GroundedAnswer, error)
}

// Params fixes the k-configuration for a run. With a fixed index and
// manifest, identical params must produce byte-identical reports.
type Params struct {
	TopK   int
	FetchK int
}

// Rate is a hit count with its ratio.
type Rate struct {
	Hits    int     `json:"hits"`
	Total   int     `json:"total"`
	HitRate float64 `json:"hit_rate"`
}

// CaseResult is the outcome of one (pack, field) triple.
type CaseResult struct {
	PackID         string `json:"pack_id"`
	Field          string `json:"field_name"`
	Hit            bool   `json:"hit"`
	RetrievedPages []int  `json:"retrieved_pages"`
}

// Report is the evaluation artifact.
type Report struct {
	TopK     int             `json:"top_k"`
	FetchK   int             `json:"fetch_k"`
	Overall  Rate            `json:"overall"`
	PerField map[string]Rate `json:"per_field"`
	PerPack  map[string]Rate `json:"per_pack"`
	Results  []CaseResult    `json:"raw_results"`
}

// Evaluator drives an Answerer over a ground-truth manifest.
type Evaluator struct {
	answerer Answerer
	params   Params
	logger   *slog.Logger
}

// New validates the k-parameters up front; they indicate a caller mistake,
// not a data condition, so they fail before any work begins.
func New(answerer Answerer, params Params, logger *slog.Logger) (*Evaluator, error) {
	if params.TopK < 1 {
		return nil, fmt.Errorf("%w: top_k must be at least 1, got %d", domain.ErrInvalidConfig, params.TopK)
	}
	if params.FetchK < params.TopK {
		return nil, fmt.Errorf("%w: fetch_k %d must not be smaller than top_k %d", domain.ErrInvalidConfig, params.FetchK, params.TopK)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{answerer: answerer, params: params, logger: logger}, nil
}

// Run evaluates every (pack, field) triple in the manifest, in sorted pack
// order and canonical field order, and aggregates hit rates.
func (e *Evaluator) Run(gt GroundTruth) (*Report, error) {
	report := &Report{
		TopK:     e.params.TopK,
		FetchK:   e.params.FetchK,
		PerField: make(map[string]Rate),
		PerPack:  make(map[string]Rate),
	}

	packs := make([]string, 0, len(gt))
	for pack := range gt {
		packs = append(packs, pack)
	}
	sort.Strings(packs)

	for _, pack := range packs {
		expected := canonicalize(gt[pack])
		for _, field := range extract.Fields() {
			values, present := expected[field]
			if !present {
				continue
			}
			question, ok := extract.QuestionFor(field)
			if !ok {
				continue
			}
			hit, pages, err := e.evaluateTriple(question, pack, values)
			if err != nil {
				return nil, fmt.Errorf("evaluate %s/%s: %w", pack, field, err)
			}
			record(report, pack, field, hit)
			report.Results = append(report.Results, CaseResult{
				PackID:         pack,
				Field:          field,
				Hit:            hit,
				RetrievedPages: pages,
			})
		}
	}

	finalize(report)
	e.logger.Info("evaluation complete",
		"triples", report.Overall.Total, "hits", report.Overall.Hits, "hit_rate", report.Overall.HitRate)
	return report, nil
}

// evaluateTriple issues one canonical question restricted to the pack and
// checks whether any expected variant appears in the supporting chunks.
// A NotFound retrieval is a recorded miss, never a crash.
func (e *Evaluator) evaluateTriple(question, pack string, values []string) (bool, []int, error) {
	ans, err := e.answerer.Answer(question, pack, e.params.TopK)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil, nil
		}
		return false, nil, err
	}
	if ans.Status == domain.AnswerNotFound {
		return false, nil, nil
	}

	var texts []string
	var pages []int
	seen := make(map[int]struct{})
	for _, ch := range ans.SupportingChunks {
		texts = append(texts, ch.Text)
		if _, dup := seen[ch.PageNumber]; !dup {
			seen[ch.PageNumber] = struct{}{}
			pages = append(pages, ch.PageNumber)
		}
	}
	evidence := normalize(strings.Join(texts, " "))

	for _, value := range values {
		for _, variant := range expectedVariants(value) {
			if v := normalize(variant); v != "" && strings.Contains(evidence, v) {
				return true, pages, nil
			}
		}
	}
	return false, pages, nil
}

func record(r *Report, pack, field string, hit bool) {
	h := 0
	if hit {
		h = 1
	}
	pf := r.PerField[field]
	pf.Hits += h
	pf.Total++
	r.PerField[field] = pf

	pp := r.PerPack[pack]
	pp.Hits += h
	pp.Total++
	r.PerPack[pack] = pp

	r.Overall.Hits += h
	r.Overall.Total++
}

func finalize(r *Report) {
	ratio := func(rate Rate) Rate {
		if rate.Total > 0 {
			rate.HitRate = float64(rate.Hits) / float64(rate.Total)
		}
		return rate
	}
	for k, v := range r.PerField {
		r.PerField[k] = ratio(v)
	}
	for k, v := range r.PerPack {
		r.PerPack[k] = ratio(v)
	}
	r.Overall = ratio(r.Overall)
}

// canonicalize maps manifest field names onto extractor field names. A
// manifest may carry a field under both its alias and its canonical name;
// their expected values merge, in sorted-key order so repeated runs see the
// same slice.
func canonicalize(fields map[string]Values) map[string][]string {
	names := make([]string, 0, len(fields))
	for field := range fields {
		names = append(names, field)
	}
	sort.Strings(names)
	out := make(map[string][]string, len(fields))
	for _, field := range names {
		canon := extract.CanonicalField(field)
		out[canon] = append(out[canon], fields[field]...)
	}
	return out
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " ")))
}

// expectedVariants widens a monetary expectation to the renderings claim
// packs use: £12,500.00, £12500.00, 12,500.00, 12500.00. Non-numeric
// values match only themselves.
func expectedVariants(value string) []string {
	trimmed := strings.TrimSpace(value)
	numeric := strings.ReplaceAll(strings.TrimPrefix(trimmed, "£"), ",", "")
	amount, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return []string{trimmed}
	}
	grouped := extract.FormatMoney(amount) // £x,xxx.xx
	plain := fmt.Sprintf("£%.2f", amount)
	return []string{
		trimmed,
		grouped,
		plain,
		strings.TrimPrefix(grouped, "£"),
		strings.TrimPrefix(plain, "£"),
	}
}

// GroundTruth maps pack_id to field name to expected value(s). It is
// consumed read-only.
type GroundTruth map[string]map[string]Values

// Values accepts a single string, a number, or an array of either in the
// manifest JSON.
type Values []string

// UnmarshalJSON flattens the accepted manifest shapes into a string slice.
func (v *Values) UnmarshalJSON(data []byte) error {
	var one any
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	flat, err := flatten(one)
	if err != nil {
		return err
	}
	*v = flat
	return nil
}

func flatten(raw any) ([]string, error) {
	switch t := raw.(type) {
	case string:
		return []string{t}, nil
	case float64:
		return []string{strconv.FormatFloat(t, 'f', -1, 64)}, nil
	case []any:
		var out []string
		for _, item := range t {
			flat, err := flatten(item)
			if err != nil {
				return nil, err
			}
			out = append(out, flat...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported ground-truth value %T", raw)
	}
}

// LoadGroundTruth reads the manifest JSON from path.
func LoadGroundTruth(path string) (GroundTruth, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var gt GroundTruth
	if err := json.Unmarshal(data, &gt); err != nil {
		return nil, fmt.Errorf("decode ground truth %s: %w", path, err)
	}
	return gt, nil
}

// WriteReport persists the evaluation artifact as indented JSON.
func WriteReport(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
