// Package extract pulls structured claim fields out of retrieved context
// text. Matching is regex-based and tuned to UK insurance claim packs, but
// the retrieval core only depends on the Extractor interface, so the rules
// here can be swapped without touching retrieval.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"courtpack/internal/domain"
)

const moneyPattern = `£\s?\d{1,3}(?:,\d{3})*(?:\.\d{2})?`

// labelled fields: a literal label followed by a value with a known shape.
var fieldPatterns = map[string][]*regexp.Regexp{
	FieldClaimReference: {
		regexp.MustCompile(`(?i)\bClaim Reference:\s*(?P<val>CLM(?:-[A-Z0-9]+)+)\b`),
		regexp.MustCompile(`(?i)\bCLM-[A-Z]{3}-\d{6}\b`),
	},
	FieldPolicyNumber: {
		regexp.MustCompile(`(?i)\bPolicy Number:\s*(?P<val>POL-\d{8})\b`),
		regexp.MustCompile(`(?i)\bPOL-\d{8}\b`),
	},
	FieldPoliceReference: {
		regexp.MustCompile(`(?i)\bPolice Reference:\s*(?P<val>PNC/\d{4}/\d{7})\b`),
		regexp.MustCompile(`(?i)\bPNC/\d{4}/\d{7}\b`),
	},
	FieldIncidentDate: {
		regexp.MustCompile(`(?i)\bIncident Date:\s*(?P<val>\d{4}-\d{2}-\d{2})\b`),
	},
	FieldIncidentTime: {
		regexp.MustCompile(`(?i)\bIncident Time:\s*(?P<val>\d{2}:\d{2})\b`),
	},
	FieldIncidentLocation: {
		regexp.MustCompile(`(?i)\bLocation:\s*(?P<val>[^\n]+)`),
	},
}

// money fields: a £ amount within reach of a label.
var moneyLabels = map[string][]string{
	FieldTotalClaimed:        {"Total Claimed"},
	FieldSuggestedReserve:    {"Suggested Reserve", "Reserve"},
	FieldSuggestedSettlement: {"Suggested Settlement Range", "Settlement"},
	FieldRepairEstimate:      {"Repair Estimate"},
	FieldHireCharges:         {"Total Hire Charges", "Hire Charges"},
	FieldGeneralDamages:      {"General Damages"},
	FieldSpecialDamages:      {"Special Damages"},
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	bulletRe     = regexp.MustCompile(`(?m)^[•\-*]\s*(.+)$`)

	moneyLabelRes = buildMoneyLabelRes()
)

func buildMoneyLabelRes() map[string][]*regexp.Regexp {
	out := make(map[string][]*regexp.Regexp, len(moneyLabels))
	for field, labels := range moneyLabels {
		res := make([]*regexp.Regexp, len(labels))
		for i, label := range labels {
			res[i] = regexp.MustCompile(`(?is)` + regexp.QuoteMeta(label) + `.{0,80}?(` + moneyPattern + `)`)
		}
		out[field] = res
	}
	return out
}

// Regex is the pattern-based Extractor implementation.
type Regex struct{}

// NewRegex returns the regex-based field extractor.
func NewRegex() *Regex { return &Regex{} }

// Extract finds the named field in the context. It is a pure function of
// its inputs; ok is false when the field is unknown or absent.
func (x *Regex) Extract(field, context string) (domain.FieldCandidate, bool) {
	if patterns, known := fieldPatterns[field]; known {
		return matchPatterns(context, patterns, field)
	}
	if res, known := moneyLabelRes[field]; known {
		return matchMoney(context, res)
	}
	switch field {
	case FieldInjuries:
		return matchBullets(context, `(?i)\bReported Injuries\b`, nil)
	case FieldFraudIndicators:
		keep := regexp.MustCompile(`(?i)claim|witness|hire|damage|notification|inconsistent|prior`)
		return matchBullets(context, `(?i)\bFraud\b|\bindicators?\b|\btriage\b`, keep)
	}
	return domain.FieldCandidate{}, false
}

func matchPatterns(context string, patterns []*regexp.Regexp, field string) (domain.FieldCandidate, bool) {
	for _, p := range patterns {
		loc := p.FindStringSubmatchIndex(context)
		if loc == nil {
			continue
		}
		start, end := loc[0], loc[1]
		if i := p.SubexpIndex("val"); i > 0 && loc[2*i] >= 0 {
			start, end = loc[2*i], loc[2*i+1]
		}
		value := clean(context[start:end])
		// the location pattern grabs the rest of the line; trim trailing
		// fields that ran into it
		if field == FieldIncidentLocation {
			if cut := strings.Index(value, "Incident"); cut > 0 {
				value = strings.TrimSpace(value[:cut])
			}
		}
		return domain.FieldCandidate{Value: value, Start: start, End: end}, true
	}
	return domain.FieldCandidate{}, false
}

func matchMoney(context string, res []*regexp.Regexp) (domain.FieldCandidate, bool) {
	for _, p := range res {
		loc := p.FindStringSubmatchIndex(context)
		if loc == nil {
			continue
		}
		start, end := loc[2], loc[3]
		return domain.FieldCandidate{Value: clean(context[start:end]), Start: start, End: end}, true
	}
	return domain.FieldCandidate{}, false
}

// matchBullets collects bullet lines from a section announced by the anchor
// pattern. keep, when non-nil, drops bullets that do not look on-topic.
func matchBullets(context, anchor string, keep *regexp.Regexp) (domain.FieldCandidate, bool) {
	anchorLoc := regexp.MustCompile(anchor).FindStringIndex(context)
	if anchorLoc == nil {
		return domain.FieldCandidate{}, false
	}
	matches := bulletRe.FindAllStringSubmatchIndex(context, -1)
	var values []string
	start, end := -1, -1
	for _, m := range matches {
		v := clean(context[m[2]:m[3]])
		if len(v) <= 3 {
			continue
		}
		if keep != nil && !keep.MatchString(v) {
			continue
		}
		values = append(values, v)
		if start < 0 {
			start = m[2]
		}
		end = m[3]
		if len(values) == 6 {
			break
		}
	}
	if len(values) == 0 {
		return domain.FieldCandidate{}, false
	}
	return domain.FieldCandidate{Value: strings.Join(values, "; "), Start: start, End: end}, true
}

func clean(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Snippet flattens and truncates text for citation display.
func Snippet(text string, max int) string {
	s := clean(text)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// FormatMoney renders an amount the way claim packs print it, e.g.
// £12,500.00.
func FormatMoney(amount float64) string {
	return "£" + addThousands(fmt.Sprintf("%.2f", amount))
}

func addThousands(s string) string {
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
