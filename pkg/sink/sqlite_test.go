package sink

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/backendex/backendex/pkg/export"
)

func TestSQLiteSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.db")
	s, err := NewSQLiteSink(path, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := s.Begin(ctx); err != nil {
		t.Fatal(err)
	}
	if s.RunID() == "" {
		t.Error("run id not allocated")
	}

	rows := []export.Backend{
		{Application: "AppA", Tier: "T1", Type: "JDBC", Name: "ordersdb"},
		{Application: "AppA", Tier: "T1", Type: "HTTP", Name: "checkout"},
	}
	if err := s.Append(ctx, rows); err != nil {
		t.Fatal(err)
	}
	runID := s.RunID()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	got := make([]export.Backend, 0, 2)
	result, err := db.Query(`
		SELECT run_id, application_name, tier_name, backend_type, backend_name
		FROM backends ORDER BY id`)
	if err != nil {
		t.Fatal(err)
	}
	defer result.Close()

	for result.Next() {
		var gotRunID string
		var b export.Backend
		if err := result.Scan(&gotRunID, &b.Application, &b.Tier, &b.Type, &b.Name); err != nil {
			t.Fatal(err)
		}
		if gotRunID != runID {
			t.Errorf("run_id = %q, want %q", gotRunID, runID)
		}
		got = append(got, b)
	}
	if err := result.Err(); err != nil {
		t.Fatal(err)
	}

	if len(got) != len(rows) {
		t.Fatalf("got %d rows, want %d", len(got), len(rows))
	}
	for i := range rows {
		if got[i] != rows[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], rows[i])
		}
	}
}

func TestSQLiteSinkAccumulatesRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.db")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		s, err := NewSQLiteSink(path, zerolog.Nop())
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Begin(ctx); err != nil {
			t.Fatal(err)
		}
		err = s.Append(ctx, []export.Backend{
			{Application: "AppA", Tier: "T1", Type: "JDBC", Name: "ordersdb"},
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Close(); err != nil {
			t.Fatal(err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM backends`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("count = %d, want rows from both runs", count)
	}

	var runs int
	if err := db.QueryRow(`SELECT COUNT(DISTINCT run_id) FROM backends`).Scan(&runs); err != nil {
		t.Fatal(err)
	}
	if runs != 2 {
		t.Errorf("distinct runs = %d, want 2", runs)
	}
}

func TestSQLiteSinkRequiresPath(t *testing.T) {
	if _, err := NewSQLiteSink("", zerolog.Nop()); err == nil {
		t.Error("expected error for empty path")
	}
}
