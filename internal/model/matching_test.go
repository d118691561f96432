package model

import "testing"

func TestBestAttemptedConfidence(t *testing.T) {
	r := MatchingResult{
		Tier1: TierEvidence{Attempted: true, Confidence: 0},
		Tier2: TierEvidence{Attempted: true, Confidence: 0.42},
		Tier3: TierEvidence{Attempted: true, Confidence: 0.31},
	}
	if got := r.BestAttemptedConfidence(); got != 0.42 {
		t.Errorf("BestAttemptedConfidence = %v, want 0.42", got)
	}

	if got := (MatchingResult{}).BestAttemptedConfidence(); got != 0 {
		t.Errorf("zero result = %v, want 0", got)
	}
}

func TestModelCode(t *testing.T) {
	e := PriceEntry{Code: "ABCD", Model: "MXZ"}
	if got := e.ModelCode(); got != "ABCD" {
		t.Errorf("ModelCode = %q, want ABCD", got)
	}

	e.Code = ""
	if got := e.ModelCode(); got != "MXZ" {
		t.Errorf("ModelCode without code = %q, want MXZ", got)
	}
}
