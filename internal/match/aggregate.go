package match

import (
	"github.com/arcticline/pricebook-cli/internal/config"
	"github.com/arcticline/pricebook-cli/internal/model"
)

// OverallConfidence returns the authoritative confidence for a matching
// result: the confidence of whichever tier produced the final method, not a
// blend. Escalation means only the winning tier's score counts; with no
// winner the best attempted confidence is reported for triage.
func OverallConfidence(r model.MatchingResult) float64 {
	switch r.FinalMethod {
	case model.MatchExact:
		return r.Tier1.Confidence
	case model.MatchNormalized:
		return r.Tier2.Confidence
	case model.MatchFuzzy:
		return r.Tier3.Confidence
	default:
		return r.BestAttemptedConfidence()
	}
}

// RequiresReview reports whether a human must look at the match: always when
// nothing matched, and otherwise whenever the overall confidence sits below
// the auto-accept threshold.
func RequiresReview(overall float64, matched bool, cfg config.MatchingConfig) bool {
	if !matched {
		return true
	}
	return overall < cfg.AutoAcceptThreshold
}
