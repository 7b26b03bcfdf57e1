package extract

import "strings"

// Field names shared by the extractor, the grounder, and the evaluator.
const (
	FieldClaimReference      = "claim_reference"
	FieldPolicyNumber        = "policy_number"
	FieldPoliceReference     = "police_reference"
	FieldIncidentDate        = "incident_date"
	FieldIncidentTime        = "incident_time"
	FieldIncidentLocation    = "incident_location"
	FieldTotalClaimed        = "total_claimed"
	FieldRepairEstimate      = "repair_estimate"
	FieldHireCharges         = "hire_charges"
	FieldGeneralDamages      = "general_damages"
	FieldSpecialDamages      = "special_damages"
	FieldSuggestedReserve    = "suggested_reserve"
	FieldSuggestedSettlement = "suggested_settlement"
	FieldInjuries            = "injuries"
	FieldFraudIndicators     = "fraud_indicators"

	// FieldReserveRecommendation is the ground-truth manifest's name for
	// the suggested reserve.
	FieldReserveRecommendation = "reserve_recommendation"
)

type fieldInfo struct {
	name     string
	label    string
	question string
	keywords []string
}

// fieldOrder fixes the display order of extracted fields and carries the
// canonical question per field. Order matters: answers and reports list
// fields this way so repeated runs are comparable.
var fieldOrder = []fieldInfo{
	{FieldClaimReference, "Claim reference", "What is the claim reference?", []string{"claim reference"}},
	{FieldPolicyNumber, "Policy number", "What is the policy number?", []string{"policy number"}},
	{FieldIncidentDate, "Incident date", "On what date did the incident occur?", []string{"incident date", "date did the incident", "what date"}},
	{FieldIncidentTime, "Incident time", "What time did the incident occur?", []string{"incident time", "what time"}},
	{FieldIncidentLocation, "Incident location", "Where did the incident occur?", []string{"incident location", "where did the incident", "where"}},
	{FieldPoliceReference, "Police reference", "What is the police reference?", []string{"police reference"}},
	{FieldTotalClaimed, "Total claimed", "What is the total claimed amount?", []string{"total claimed"}},
	{FieldRepairEstimate, "Repair estimate", "What is the repair estimate?", []string{"repair estimate"}},
	{FieldHireCharges, "Hire charges", "What are the hire charges?", []string{"hire charges"}},
	{FieldGeneralDamages, "General damages", "What are the general damages?", []string{"general damages"}},
	{FieldSpecialDamages, "Special damages", "What are the special damages?", []string{"special damages"}},
	{FieldSuggestedReserve, "Suggested reserve", "What is the suggested reserve?", []string{"suggested reserve", "reserve"}},
	{FieldSuggestedSettlement, "Suggested settlement", "What is the suggested settlement?", []string{"settlement"}},
	{FieldInjuries, "Injuries", "What injuries were reported?", []string{"injuries", "injury"}},
	{FieldFraudIndicators, "Fraud indicators", "What fraud indicators were flagged?", []string{"fraud"}},
}

// manifestAliases maps ground-truth manifest field names onto extractor
// field names where they differ.
var manifestAliases = map[string]string{
	FieldReserveRecommendation: FieldSuggestedReserve,
}

// Fields returns all extractable field names in display order.
func Fields() []string {
	out := make([]string, len(fieldOrder))
	for i, f := range fieldOrder {
		out[i] = f.name
	}
	return out
}

// Label returns the human-readable label for a field, or the field name
// itself when unknown.
func Label(field string) string {
	for _, f := range fieldOrder {
		if f.name == field {
			return f.label
		}
	}
	return field
}

// QuestionFor returns the canonical natural-language question for a field.
// Ok is false for fields with no canonical question.
func QuestionFor(field string) (string, bool) {
	if alias, mapped := manifestAliases[field]; mapped {
		field = alias
	}
	for _, f := range fieldOrder {
		if f.name == field {
			return f.question, true
		}
	}
	return "", false
}

// FieldForQuestion maps a free-form query onto a known field when the query
// mentions the field's identifying phrase. Ok is false for queries that do
// not target a known field.
func FieldForQuestion(query string) (string, bool) {
	q := strings.ToLower(query)
	for _, f := range fieldOrder {
		for _, kw := range f.keywords {
			if strings.Contains(q, kw) {
				return f.name, true
			}
		}
	}
	return "", false
}

// CanonicalField normalizes a manifest field name to its extractor name.
func CanonicalField(field string) string {
	if alias, mapped := manifestAliases[field]; mapped {
		return alias
	}
	return field
}
