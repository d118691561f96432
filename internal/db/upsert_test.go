package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
)

func TestSanitizeTable(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"product_specs", `"product_specs"`},
		{"public.runs", `"public"."runs"`},
	}
	for _, c := range cases {
		if got := sanitizeTable(c.in); got != c.want {
			t.Errorf("sanitizeTable(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestQuoteAndJoin(t *testing.T) {
	got := quoteAndJoin([]string{"run_id", "entry_code"})
	want := `"run_id", "entry_code"`
	if got != want {
		t.Errorf("quoteAndJoin = %q, want %q", got, want)
	}
}

func TestBulkUpsert(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	cols := []string{"run_id", "entry_code", "spec"}
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_product_specs"}, cols).WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "product_specs" (.+) ON CONFLICT \("run_id", "entry_code"\) DO UPDATE SET "spec" = EXCLUDED."spec"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "product_specs",
		Columns:      cols,
		ConflictKeys: []string{"run_id", "entry_code"},
	}, [][]any{{"run-1", "TNAB", []byte(`{}`)}})
	if err != nil {
		t.Fatalf("BulkUpsert: %v", err)
	}
	if n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestBulkUpsertNoRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "product_specs",
		Columns:      []string{"id"},
		ConflictKeys: []string{"id"},
	}, nil)
	if err != nil {
		t.Fatalf("BulkUpsert: %v", err)
	}
	if n != 0 {
		t.Errorf("rows = %d, want 0", n)
	}
}

func TestBulkUpsertValidation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	rows := [][]any{{"x"}}

	if _, err := BulkUpsert(context.Background(), mock, UpsertConfig{Table: "t", ConflictKeys: []string{"id"}}, rows); err == nil {
		t.Error("expected error for missing columns")
	}
	if _, err := BulkUpsert(context.Background(), mock, UpsertConfig{Table: "t", Columns: []string{"id"}}, rows); err == nil {
		t.Error("expected error for missing conflict keys")
	}
}
