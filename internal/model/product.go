package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConfidenceLevel is the terminal HIGH/MEDIUM/LOW classification of a merged
// specification, driving auto-accept vs. manual review.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// ClassifyConfidence maps a 0-1 score to its level: HIGH ≥0.9, MEDIUM ≥0.7,
// LOW otherwise.
func ClassifyConfidence(score float64) ConfidenceLevel {
	switch {
	case score >= 0.9:
		return ConfidenceHigh
	case score >= 0.7:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// OptionType tags a detected spring option.
type OptionType string

const (
	OptionTrackUpgrade       OptionType = "track_upgrade"
	OptionSuspensionUpgrade  OptionType = "suspension_upgrade"
	OptionComfortUpgrade     OptionType = "comfort_upgrade"
	OptionPerformanceUpgrade OptionType = "performance_upgrade"
	OptionWeatherProtection  OptionType = "weather_protection"
	OptionStorageUpgrade     OptionType = "storage_upgrade"
	OptionColorChange        OptionType = "color_change"
)

// SpringOption is a seasonally-limited or configuration-specific enhancement
// detected from a model code or customization set.
type SpringOption struct {
	Type        OptionType       `json:"type"`
	Description string           `json:"description"`
	Confidence  float64          `json:"confidence"`
	PriceImpact *decimal.Decimal `json:"price_impact,omitempty"`
}

// ProductSpecification is the system's output of record: the fully merged,
// confidence-scored product. Immutable once the final validation stage
// freezes it.
type ProductSpecification struct {
	ProcessingID string `json:"processing_id"`
	EntryCode    string `json:"entry_code"`
	VehicleID    string `json:"vehicle_id,omitempty"`
	Brand        string `json:"brand"`
	ModelYear    int    `json:"model_year"`
	DisplayName  string `json:"display_name"`

	Specs         map[string]any `json:"specs"`
	SpringOptions []SpringOption `json:"spring_options,omitempty"`

	ConfidenceScore float64         `json:"confidence_score"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level"`
	RequiresReview  bool            `json:"requires_human_review"`

	CompletedStages []string  `json:"completed_stages"`
	ValidationNotes []string  `json:"validation_notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// RunStatus represents the current state of a reconciliation run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusMatching  RunStatus = "matching"
	RunStatusInherited RunStatus = "inheriting"
	RunStatusComplete  RunStatus = "complete"
	RunStatusFailed    RunStatus = "failed"
)

// ReconciliationRun records one batch reconciliation of a price list against
// a catalog.
type ReconciliationRun struct {
	ID            string        `json:"id"`
	PriceSource   string        `json:"price_source"`
	CatalogSource string        `json:"catalog_source"`
	Status        RunStatus     `json:"status"`
	Summary       *BatchSummary `json:"summary,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// MatchFailure identifies one price entry that produced no acceptable match,
// with its best attempted confidence for triage.
type MatchFailure struct {
	EntryCode      string         `json:"entry_code"`
	ModelCode      string         `json:"model_code"`
	BestConfidence float64        `json:"best_confidence"`
	Reasons        []string       `json:"reasons"`
	Result         MatchingResult `json:"result"`
}

// BatchSummary aggregates the outcome of a batch for reporting.
type BatchSummary struct {
	VehiclesExtracted int            `json:"vehicles_extracted"`
	EntriesProcessed  int            `json:"entries_processed"`
	Matched           int            `json:"matched"`
	Failed            int            `json:"failed"`
	ReviewRequired    int            `json:"review_required"`
	Failures          []MatchFailure `json:"failures,omitempty"`
}

// MatchSuccessRate returns matched/processed, or 0 for an empty batch.
func (s BatchSummary) MatchSuccessRate() float64 {
	if s.EntriesProcessed == 0 {
		return 0
	}
	return float64(s.Matched) / float64(s.EntriesProcessed)
}
