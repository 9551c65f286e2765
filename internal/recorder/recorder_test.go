package recorder

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"locator/internal/position"
)

type fakeSource struct {
	est position.Estimate
	err error
}

func (f fakeSource) GetCurrentPosition() (position.Estimate, error) { return f.est, f.err }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestRecorder_RecordOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "positions.csv")
	src := fakeSource{est: position.Estimate{
		Position:   position.Point{X: 7, Y: 3},
		Distances:  [3]float64{5.385165, 6.708204, 5.385165},
		Iterations: 5,
		Selection:  position.SelectReflection,
	}}

	r, err := NewRecorder(src, path, testLogger())
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	r.now = func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) }

	if err := r.RecordOnce(); err != nil {
		t.Fatalf("RecordOnce: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	rows := readRows(t, path)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	want := []string{"2026-10-17T12:00:00Z", "7.000000", "3.000000", "5.385165", "6.708204", "5.385165", "5", "reflection"}
	if fmt.Sprint(rows[0]) != fmt.Sprint(header) {
		t.Errorf("header = %v", rows[0])
	}
	if fmt.Sprint(rows[1]) != fmt.Sprint(want) {
		t.Errorf("row = %v, want %v", rows[1], want)
	}
}

func TestRecorder_SkipsFailedEstimates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.csv")
	r, err := NewRecorder(fakeSource{err: position.ErrNotEnoughStations}, path, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := r.Start(ctx, 5*time.Millisecond); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if rows := readRows(t, path); len(rows) != 1 {
		t.Errorf("rows = %d, want header only", len(rows))
	}
}
