// Package input loads price lists and catalog extracts from local files or
// remote sources and maps them into domain records.
package input

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/arcticline/pricebook-cli/internal/fetcher"
	"github.com/arcticline/pricebook-cli/internal/model"
	"github.com/arcticline/pricebook-cli/internal/normalize"
)

// Options configures source fetching and sheet selection.
type Options struct {
	Timeout     time.Duration
	FTPUser     string
	FTPPassword string
	Sheet       string // XLSX sheet name; empty selects the first sheet
}

// LoadPriceEntries reads a price list from a local path or an http/ftp URL.
// JSON sources carry an array of entries; CSV and XLSX sources are mapped by
// header row. Normalized model, package, and engine fields are populated
// before returning.
func LoadPriceEntries(ctx context.Context, source string, opts Options) ([]model.PriceEntry, error) {
	var entries []model.PriceEntry

	switch format(source) {
	case "json":
		rc, err := open(ctx, source, opts)
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		entryCh, errCh := fetcher.DecodeJSONArray[model.PriceEntry](ctx, rc)
		for e := range entryCh {
			entries = append(entries, e)
		}
		if err := <-errCh; err != nil {
			return nil, eris.Wrapf(err, "input: decode price list %s", source)
		}

	case "csv":
		rc, err := open(ctx, source, opts)
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		header, rows, err := fetcher.ReadCSV(rc, fetcher.CSVOptions{HasHeader: true, TrimSpace: true})
		if err != nil {
			return nil, eris.Wrapf(err, "input: read price list %s", source)
		}
		entries, err = mapRows(header, rows, source)
		if err != nil {
			return nil, err
		}

	case "xlsx":
		rows, err := xlsxRows(ctx, source, opts)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, eris.Errorf("input: empty price list %s", source)
		}
		entries, err = mapRows(rows[0], rows[1:], source)
		if err != nil {
			return nil, err
		}

	default:
		return nil, eris.Errorf("input: unsupported price list format %q", source)
	}

	for i := range entries {
		e := &entries[i]
		e.NormalizedModel = normalize.ModelName(e.Model)
		e.NormalizedPackage = normalize.PackageName(e.Package)
		e.NormalizedEngine = normalize.EngineSpec(e.Engine)
		if e.SourceFile == "" {
			e.SourceFile = source
		}
		if e.ExtractionConfidence == 0 {
			e.ExtractionConfidence = 1.0
		}
	}

	zap.L().Info("price list loaded",
		zap.String("source", source),
		zap.Int("entries", len(entries)),
	)
	return entries, nil
}

// LoadCatalog reads catalog vehicles from a JSON extract, local or remote.
func LoadCatalog(ctx context.Context, source string, opts Options) ([]model.CatalogVehicle, error) {
	if format(source) != "json" {
		return nil, eris.Errorf("input: catalog must be a JSON extract, got %q", source)
	}

	rc, err := open(ctx, source, opts)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var vehicles []model.CatalogVehicle
	vehicleCh, errCh := fetcher.DecodeJSONArray[model.CatalogVehicle](ctx, rc)
	for v := range vehicleCh {
		if v.SourceCatalog == "" {
			v.SourceCatalog = source
		}
		vehicles = append(vehicles, v)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrapf(err, "input: decode catalog %s", source)
	}

	zap.L().Info("catalog loaded",
		zap.String("source", source),
		zap.Int("vehicles", len(vehicles)),
	)
	return vehicles, nil
}

func format(source string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(stripQuery(source)), "."))
	switch ext {
	case "json", "csv", "xlsx":
		return ext
	}
	return ""
}

func stripQuery(source string) string {
	if i := strings.IndexByte(source, '?'); i >= 0 {
		return source[:i]
	}
	return source
}

// open returns a reader for the source, dispatching on URL scheme. Bare paths
// are treated as local files.
func open(ctx context.Context, source string, opts Options) (io.ReadCloser, error) {
	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" || u.Scheme == "file" {
		f, err := os.Open(strings.TrimPrefix(source, "file://"))
		if err != nil {
			return nil, eris.Wrapf(err, "input: open %s", source)
		}
		return f, nil
	}

	var f fetcher.Fetcher
	switch u.Scheme {
	case "http", "https":
		f = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: opts.Timeout})
	case "ftp":
		f = fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Timeout:  opts.Timeout,
			User:     opts.FTPUser,
			Password: opts.FTPPassword,
		})
	default:
		return nil, eris.Errorf("input: unsupported scheme %q", u.Scheme)
	}
	return f.Download(ctx, source)
}

// xlsxRows loads an XLSX source. Remote workbooks are buffered in memory since
// the xlsx reader needs random access.
func xlsxRows(ctx context.Context, source string, opts Options) ([][]string, error) {
	xopts := fetcher.XLSXOptions{SheetName: opts.Sheet}

	u, err := url.Parse(source)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https" || u.Scheme == "ftp") {
		rc, err := open(ctx, source, opts)
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, eris.Wrapf(err, "input: read %s", source)
		}
		return fetcher.ParseXLSX(data, xopts)
	}

	return fetcher.ReadXLSX(source, xopts)
}

// columnAliases maps header names to canonical entry fields.
var columnAliases = map[string]string{
	"code":          "code",
	"pricebook":     "code",
	"sku":           "code",
	"model":         "model",
	"package":       "package",
	"pkg":           "package",
	"engine":        "engine",
	"track":         "track",
	"starter":       "starter",
	"display":       "display",
	"name":          "display",
	"spring":        "spring_option",
	"spring_option": "spring_option",
	"color":         "color",
	"colour":        "color",
	"price":         "price",
	"msrp":          "price",
	"currency":      "currency",
	"year":          "model_year",
	"model_year":    "model_year",
	"brand":         "brand",
	"make":          "brand",
}

func mapRows(header []string, rows [][]string, source string) ([]model.PriceEntry, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.ReplaceAll(key, " ", "_")
		if field, ok := columnAliases[key]; ok {
			cols[field] = i
		}
	}
	if _, ok := cols["model"]; !ok {
		return nil, eris.Errorf("input: price list %s is missing a model column", source)
	}

	cell := func(row []string, field string) string {
		i, ok := cols[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	entries := make([]model.PriceEntry, 0, len(rows))
	for n, row := range rows {
		if len(row) == 0 || cell(row, "model") == "" {
			continue
		}

		e := model.PriceEntry{
			Code:         cell(row, "code"),
			Model:        cell(row, "model"),
			Package:      cell(row, "package"),
			Engine:       cell(row, "engine"),
			Track:        cell(row, "track"),
			Starter:      cell(row, "starter"),
			Display:      cell(row, "display"),
			SpringOption: cell(row, "spring_option"),
			Color:        cell(row, "color"),
			Currency:     cell(row, "currency"),
			Brand:        cell(row, "brand"),
		}

		if raw := cell(row, "price"); raw != "" {
			price, err := parsePrice(raw)
			if err != nil {
				return nil, eris.Wrapf(err, "input: row %d of %s", n+2, source)
			}
			e.Price = price
		}
		if raw := cell(row, "model_year"); raw != "" {
			year, err := strconv.Atoi(raw)
			if err != nil {
				return nil, eris.Wrapf(err, "input: row %d of %s: model year", n+2, source)
			}
			e.ModelYear = year
		}

		entries = append(entries, e)
	}
	return entries, nil
}

// parsePrice tolerates thousands separators and currency suffixes commonly
// seen in exported price lists ("18 299,00 €", "17,499.00").
func parsePrice(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimRight(s, "€$£ ")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")

	// European decimal comma: drop dot separators, turn comma into a dot.
	if i := strings.LastIndexByte(s, ','); i >= 0 && len(s)-i <= 3 {
		s = strings.ReplaceAll(s, ".", "")
		s = s[:i] + "." + s[i+1:]
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, eris.Wrapf(err, "parse price %q", raw)
	}
	return d, nil
}
