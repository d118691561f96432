package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arcticline/pricebook-cli/internal/input"
	"github.com/arcticline/pricebook-cli/internal/match"
	"github.com/arcticline/pricebook-cli/internal/model"
	"github.com/arcticline/pricebook-cli/internal/pipeline"
	"github.com/arcticline/pricebook-cli/internal/scorer"
)

var (
	reconcilePrices  string
	reconcileCatalog string
	reconcileSheet   string
	reconcileOut     string
	reconcileNoStore bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile a price list against a catalog extract",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		opts := inputOptions()
		opts.Sheet = reconcileSheet

		entries, err := input.LoadPriceEntries(ctx, reconcilePrices, opts)
		if err != nil {
			return eris.Wrap(err, "load price list")
		}
		candidates, err := input.LoadCatalog(ctx, reconcileCatalog, opts)
		if err != nil {
			return eris.Wrap(err, "load catalog")
		}

		sc, err := scorer.New(cfg.Scorer)
		if err != nil {
			zap.L().Warn("scorer init failed, tier 3 matching degraded", zap.Error(err))
		}
		p := pipeline.New(cfg, match.New(cfg.Matching, sc))

		var run *model.ReconciliationRun
		if !reconcileNoStore {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			run, err = st.CreateRun(ctx, reconcilePrices, reconcileCatalog)
			if err != nil {
				return eris.Wrap(err, "create run")
			}
			if err := st.UpdateRunStatus(ctx, run.ID, model.RunStatusMatching); err != nil {
				return eris.Wrap(err, "update run status")
			}

			result, err := p.RunBatch(ctx, entries, candidates)
			if err != nil {
				_ = st.UpdateRunStatus(ctx, run.ID, model.RunStatusFailed)
				return eris.Wrap(err, "run batch")
			}
			if err := st.SaveSpecifications(ctx, run.ID, result.Specs); err != nil {
				return eris.Wrap(err, "save specifications")
			}
			if err := st.CompleteRun(ctx, run.ID, &result.Summary); err != nil {
				return eris.Wrap(err, "complete run")
			}

			return reportBatch(run.ID, result)
		}

		result, err := p.RunBatch(ctx, entries, candidates)
		if err != nil {
			return eris.Wrap(err, "run batch")
		}
		return reportBatch("", result)
	},
}

func reportBatch(runID string, result *pipeline.BatchResult) error {
	s := result.Summary

	rows := [][]string{
		{"Vehicles extracted", fmt.Sprintf("%d", s.VehiclesExtracted)},
		{"Entries processed", fmt.Sprintf("%d", s.EntriesProcessed)},
		{"Matched", fmt.Sprintf("%d", s.Matched)},
		{"Failed", fmt.Sprintf("%d", s.Failed)},
		{"Review required", fmt.Sprintf("%d", s.ReviewRequired)},
		{"Match rate", fmt.Sprintf("%.1f%%", s.MatchSuccessRate()*100)},
	}
	fmt.Println(renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))

	if len(s.Failures) > 0 {
		failureRows := make([][]string, 0, len(s.Failures))
		for _, f := range s.Failures {
			failureRows = append(failureRows, []string{
				f.EntryCode,
				f.ModelCode,
				fmt.Sprintf("%.2f", f.BestConfidence),
				strings.Join(f.Reasons, "; "),
			})
		}
		fmt.Println(renderTable(
			[]string{"Code", "Model", "Best Conf", "Reasons"},
			failureRows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
		))
	}

	if runID != "" {
		fmt.Printf("Run stored as %s\n", runID)
	}

	if reconcileOut != "" {
		f, err := os.Create(reconcileOut)
		if err != nil {
			return eris.Wrap(err, "create output file")
		}
		defer f.Close() //nolint:errcheck

		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Specs); err != nil {
			return eris.Wrap(err, "write output file")
		}
		zap.L().Info("specifications written",
			zap.String("path", reconcileOut),
			zap.Int("specs", len(result.Specs)),
		)
	}

	return nil
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcilePrices, "prices", "", "price list source: path or URL, .json/.csv/.xlsx (required)")
	reconcileCmd.Flags().StringVar(&reconcileCatalog, "catalog", "", "catalog extract source: path or URL, JSON (required)")
	reconcileCmd.Flags().StringVar(&reconcileSheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	reconcileCmd.Flags().StringVar(&reconcileOut, "out", "", "write product specifications to a JSON file")
	reconcileCmd.Flags().BoolVar(&reconcileNoStore, "no-store", false, "skip persisting the run")
	_ = reconcileCmd.MarkFlagRequired("prices")
	_ = reconcileCmd.MarkFlagRequired("catalog")
	rootCmd.AddCommand(reconcileCmd)
}
