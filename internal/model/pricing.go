package model

import (
	"github.com/shopspring/decimal"
)

// PriceEntry is one sellable configuration row from the price list, keyed by
// a short pricebook code. The extraction layer fills the raw source-language
// fields; the normalized variants are populated before matching. Entries are
// immutable once handed to the matcher.
type PriceEntry struct {
	Code         string `json:"code"` // 4-char pricebook code
	Model        string `json:"model"`
	Package      string `json:"package,omitempty"`
	Engine       string `json:"engine,omitempty"`
	Track        string `json:"track,omitempty"`
	Starter      string `json:"starter,omitempty"`
	Display      string `json:"display,omitempty"`
	SpringOption string `json:"spring_option,omitempty"`
	Color        string `json:"color,omitempty"`

	NormalizedModel   string `json:"normalized_model,omitempty"`
	NormalizedPackage string `json:"normalized_package,omitempty"`
	NormalizedEngine  string `json:"normalized_engine,omitempty"`

	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	ModelYear int             `json:"model_year"`
	Brand     string          `json:"brand"`

	SourceFile           string  `json:"source_file,omitempty"`
	SourcePage           int     `json:"source_page,omitempty"`
	ExtractionConfidence float64 `json:"extraction_confidence"`
}

// ModelCode returns the identifier used for customization parsing and
// failure triage. Falls back to the raw model string when the pricebook
// code is absent.
func (e PriceEntry) ModelCode() string {
	if e.Code != "" {
		return e.Code
	}
	return e.Model
}

// SpecGroups holds the nested specification groups of a catalog vehicle.
type SpecGroups struct {
	Engine        map[string]string `json:"engine,omitempty"`
	Dimensions    map[string]string `json:"dimensions,omitempty"`
	Suspension    map[string]string `json:"suspension,omitempty"`
	Features      []string          `json:"features,omitempty"`
	Colors        []string          `json:"colors,omitempty"`
	SpringOptions []string          `json:"spring_options,omitempty"`
}

// CatalogVehicle is one named model-with-package description from the
// catalog, holding the full base specification. Many price entries may
// reference the same vehicle. The candidate slice handed to a batch is
// read-only shared data; pipeline runs must never mutate it.
type CatalogVehicle struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	ModelFamily string     `json:"model_family"`
	PackageName string     `json:"package_name,omitempty"`
	Specs       SpecGroups `json:"specs"`

	SourceCatalog     string  `json:"source_catalog,omitempty"`
	SourcePage        int     `json:"source_page,omitempty"`
	ExtractionQuality float64 `json:"extraction_quality"`
}
