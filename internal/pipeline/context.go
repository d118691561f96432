package pipeline

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/arcticline/pricebook-cli/internal/model"
)

// Sentinel errors for the pipeline's failure taxonomy. They are recorded as
// validation notes and never abort a batch.
var (
	// ErrMissingBaseModel marks a run whose first stage produced no base
	// model; the run still completes with LOW confidence.
	ErrMissingBaseModel = eris.New("pipeline: no base model matched")

	// ErrInconsistentSpecification marks contradictory merged fields found
	// during final validation.
	ErrInconsistentSpecification = eris.New("pipeline: inconsistent specification")
)

// Stage names the five pipeline stages.
type Stage string

const (
	StageBaseMatch     Stage = "base_model_matching"
	StageInherit       Stage = "specification_inheritance"
	StageCustomize     Stage = "customization_processing"
	StageSpringOptions Stage = "spring_options_enhancement"
	StageValidate      Stage = "final_validation"
)

// StageResult is the uniform outcome every stage returns. Confidence is the
// updated overall confidence the pipeline stores into the context; Signal is
// the stage's own 0-1 evidence strength (neutral 0.5 when a stage found
// nothing, which is valid).
type StageResult struct {
	Stage      Stage
	Success    bool
	Fatal      bool
	Confidence float64
	Signal     float64
	Detections int
	Notes      []string
}

// Context is the unit of work state threaded through all five stages. It is
// owned exclusively by one pipeline run and mutated in place; the candidate
// slice it was built from is shared read-only data and is never touched.
type Context struct {
	ProcessingID string
	Entry        model.PriceEntry

	BaseModel   *model.CatalogVehicle
	MatchResult *model.MatchingResult

	InheritedSpecs map[string]any
	Customizations map[string]any
	SpringOptions  []model.SpringOption

	Confidence      float64
	CompletedStages []string
	StageSignals    map[string]float64
	Notes           []string
}

// recordSignal stores a stage's evidence strength for diagnostics.
func (c *Context) recordSignal(stage Stage, signal float64) {
	if c.StageSignals == nil {
		c.StageSignals = make(map[string]float64, 5)
	}
	c.StageSignals[string(stage)] = signal
}

// note appends a validation note.
func (c *Context) note(format string, args ...any) {
	c.Notes = append(c.Notes, fmt.Sprintf(format, args...))
}
