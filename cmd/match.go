package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/arcticline/pricebook-cli/internal/input"
	"github.com/arcticline/pricebook-cli/internal/match"
	"github.com/arcticline/pricebook-cli/internal/model"
	"github.com/arcticline/pricebook-cli/internal/normalize"
	"github.com/arcticline/pricebook-cli/internal/scorer"
)

var (
	matchCatalog string
	matchCode    string
	matchModel   string
	matchPackage string
	matchEngine  string
	matchTrack   string
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match a single price entry and print the tier evidence",
	Long:  "Runs only the tiered matcher for one hand-built entry. Useful for debugging why an entry resolves to the wrong vehicle or none at all.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		candidates, err := input.LoadCatalog(ctx, matchCatalog, inputOptions())
		if err != nil {
			return eris.Wrap(err, "load catalog")
		}

		entry := model.PriceEntry{
			Code:    matchCode,
			Model:   matchModel,
			Package: matchPackage,
			Engine:  matchEngine,
			Track:   matchTrack,
		}
		entry.NormalizedModel = normalize.ModelName(entry.Model)
		entry.NormalizedPackage = normalize.PackageName(entry.Package)
		entry.NormalizedEngine = normalize.EngineSpec(entry.Engine)

		sc, err := scorer.New(cfg.Scorer)
		if err != nil {
			cmd.PrintErrf("scorer init failed, tier 3 degraded: %v\n", err)
		}

		m := match.New(cfg.Matching, sc)
		vehicle, result := m.Match(ctx, entry, candidates)

		out := struct {
			Result  model.MatchingResult  `json:"result"`
			Matched *model.CatalogVehicle `json:"matched_vehicle,omitempty"`
		}{Result: result, Matched: vehicle}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	matchCmd.Flags().StringVar(&matchCatalog, "catalog", "", "catalog extract source (required)")
	matchCmd.Flags().StringVar(&matchCode, "code", "", "pricebook code")
	matchCmd.Flags().StringVar(&matchModel, "model", "", "model name (required)")
	matchCmd.Flags().StringVar(&matchPackage, "package", "", "package name")
	matchCmd.Flags().StringVar(&matchEngine, "engine", "", "engine spec")
	matchCmd.Flags().StringVar(&matchTrack, "track", "", "track description")
	_ = matchCmd.MarkFlagRequired("catalog")
	_ = matchCmd.MarkFlagRequired("model")
	rootCmd.AddCommand(matchCmd)
}
