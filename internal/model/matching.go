package model

// MatchMethod tags which tier produced the winning match.
type MatchMethod string

const (
	MatchExact      MatchMethod = "exact"
	MatchNormalized MatchMethod = "normalized"
	MatchFuzzy      MatchMethod = "fuzzy"
	MatchNone       MatchMethod = "none"
)

// TierEvidence records the outcome of one comparison tier. Evidence maps the
// algorithm or transformation applied to what it produced, for diagnostics.
type TierEvidence struct {
	Attempted  bool              `json:"attempted"`
	Matched    bool              `json:"matched"`
	Confidence float64           `json:"confidence"`
	Evidence   map[string]string `json:"evidence,omitempty"`
}

// MatchingResult is the full trace of one (price entry, candidate set)
// evaluation. Created once per evaluation and never mutated afterwards; the
// pipeline's first stage consumes it.
type MatchingResult struct {
	EntryCode string `json:"entry_code"`
	VehicleID string `json:"vehicle_id,omitempty"` // empty when no match

	Tier1 TierEvidence `json:"tier_1"`
	Tier2 TierEvidence `json:"tier_2"`
	Tier3 TierEvidence `json:"tier_3"`

	FinalMethod       MatchMethod `json:"final_matching_method"`
	OverallConfidence float64     `json:"overall_confidence"`
	RequiresReview    bool        `json:"requires_human_review"`
	Issues            []string    `json:"issues,omitempty"`
}

// BestAttemptedConfidence returns the highest tier confidence recorded,
// whether or not any tier cleared its threshold. Used for failure triage.
func (r MatchingResult) BestAttemptedConfidence() float64 {
	best := r.Tier1.Confidence
	if r.Tier2.Confidence > best {
		best = r.Tier2.Confidence
	}
	if r.Tier3.Confidence > best {
		best = r.Tier3.Confidence
	}
	return best
}
