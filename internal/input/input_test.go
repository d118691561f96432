package input

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadPriceEntriesJSON(t *testing.T) {
	raw := `[
		{"code": "TNAB", "model": "MXZ", "package": "X-RS", "engine": "850 E-TEC", "price": "15999", "currency": "EUR", "model_year": 2026, "brand": "SKI-DOO"},
		{"code": "RAVB", "model": "Rave RE", "price": "17499", "currency": "EUR", "model_year": 2026, "brand": "LYNX"}
	]`
	path := writeTemp(t, "prices.json", raw)

	entries, err := LoadPriceEntries(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	e := entries[0]
	assert.Equal(t, "TNAB", e.Code)
	assert.Equal(t, "MXZ", e.NormalizedModel)
	assert.Equal(t, "X RS", e.NormalizedPackage)
	assert.Equal(t, "850 ETEC", e.NormalizedEngine)
	assert.Equal(t, path, e.SourceFile)
	assert.Equal(t, 1.0, e.ExtractionConfidence)
	assert.Equal(t, "15999", e.Price.String())
}

func TestLoadPriceEntriesCSV(t *testing.T) {
	raw := "Code,Model,Package,Engine,MSRP,Currency,Year,Make\n" +
		"TNAB,MXZ,X-RS,850 E-TEC,\"18 299,00 €\",EUR,2026,SKI-DOO\n" +
		",,,,,,,\n" +
		"RAVB,Rave RE,,,\"17,499.00\",EUR,2025,LYNX\n"
	path := writeTemp(t, "prices.csv", raw)

	entries, err := LoadPriceEntries(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, entries, 2) // blank row skipped

	assert.Equal(t, "TNAB", entries[0].Code)
	assert.Equal(t, "18299", entries[0].Price.String())
	assert.Equal(t, 2026, entries[0].ModelYear)
	assert.Equal(t, "SKI-DOO", entries[0].Brand)

	assert.Equal(t, "RAVB", entries[1].Code)
	assert.Equal(t, "17499", entries[1].Price.String())
	assert.Equal(t, 2025, entries[1].ModelYear)
}

func TestLoadPriceEntriesMissingModelColumn(t *testing.T) {
	path := writeTemp(t, "prices.csv", "Code,MSRP\nTNAB,15999\n")

	_, err := LoadPriceEntries(context.Background(), path, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing a model column")
}

func TestLoadPriceEntriesBadPrice(t *testing.T) {
	path := writeTemp(t, "prices.csv", "Model,Price\nMXZ,not-a-number\n")

	_, err := LoadPriceEntries(context.Background(), path, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestLoadPriceEntriesUnsupportedFormat(t *testing.T) {
	path := writeTemp(t, "prices.txt", "whatever")

	_, err := LoadPriceEntries(context.Background(), path, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported price list format")
}

func TestLoadCatalog(t *testing.T) {
	raw := `[
		{"id": "veh-mxz-xrs", "display_name": "MXZ X-RS 850 E-TEC", "model_family": "MXZ", "extraction_quality": 0.9},
		{"id": "veh-rave", "display_name": "Lynx Rave RE", "model_family": "Rave", "source_catalog": "2026-lineup"}
	]`
	path := writeTemp(t, "catalog.json", raw)

	vehicles, err := LoadCatalog(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, vehicles, 2)

	assert.Equal(t, "veh-mxz-xrs", vehicles[0].ID)
	assert.Equal(t, path, vehicles[0].SourceCatalog)     // default filled
	assert.Equal(t, "2026-lineup", vehicles[1].SourceCatalog) // explicit kept
}

func TestLoadCatalogRejectsNonJSON(t *testing.T) {
	path := writeTemp(t, "catalog.csv", "id\nveh-1\n")

	_, err := LoadCatalog(context.Background(), path, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a JSON extract")
}

func TestFormat(t *testing.T) {
	cases := []struct {
		source, want string
	}{
		{"prices.json", "json"},
		{"prices.CSV", "csv"},
		{"dir/prices.xlsx", "xlsx"},
		{"https://example.com/prices.xlsx?token=abc", "xlsx"},
		{"prices.txt", ""},
		{"prices", ""},
	}
	for _, c := range cases {
		if got := format(c.source); got != c.want {
			t.Errorf("format(%q) = %q, want %q", c.source, got, c.want)
		}
	}
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"15999", "15999"},
		{"15999.50", "15999.5"},
		{"18 299,00 €", "18299"},
		{"17,499.00", "17499"},
		{"12.499,95", "12499.95"},
		{"9 999", "9999"},
	}
	for _, c := range cases {
		d, err := parsePrice(c.in)
		require.NoError(t, err, "parsePrice(%q)", c.in)
		assert.Equal(t, c.want, d.String(), "parsePrice(%q)", c.in)
	}

	_, err := parsePrice("abc")
	require.Error(t, err)
}

func TestMapRowsHeaderAliases(t *testing.T) {
	header := []string{"SKU", "Model", "Pkg", "Spring Option", "Colour"}
	rows := [][]string{{"TNAB", "MXZ", "X-RS", "Cobra track", "Black"}}

	entries, err := mapRows(header, rows, "test.csv")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "TNAB", e.Code)
	assert.Equal(t, "X-RS", e.Package)
	assert.Equal(t, "Cobra track", e.SpringOption)
	assert.Equal(t, "Black", e.Color)
}
