package persist

import (
	"bytes"
	"testing"
	"time"

	"evocore/internal/ctxstore"
)

func buildStore(t *testing.T) *ctxstore.Store {
	t.Helper()
	dims := []ctxstore.Dimension{
		{Name: "market", Values: []string{"bull", "bear"}},
		{Name: "volatility", Values: []string{"low", "high"}},
	}
	store, err := ctxstore.New(dims, 3)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := store.Learn([]string{"bull", "low"}, []float64{0.1, 0.2, 0.3}, 1.5, now); err != nil {
		t.Fatal(err)
	}
	if err := store.Learn([]string{"bull", "low"}, []float64{0.2, 0.3, 0.4}, 2.0, now.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := store.Learn([]string{"bear", "high"}, []float64{-0.1, -0.2, -0.3}, -0.5, now); err != nil {
		t.Fatal(err)
	}
	return store
}

func assertStoresEqual(t *testing.T, got, want *ctxstore.Store) {
	t.Helper()
	if got.ParamCount() != want.ParamCount() {
		t.Fatalf("param count: got %d want %d", got.ParamCount(), want.ParamCount())
	}
	wantKeys := want.Keys()
	gotKeys := got.Keys()
	if len(wantKeys) != len(gotKeys) {
		t.Fatalf("key count: got %d want %d", len(gotKeys), len(wantKeys))
	}
	for _, key := range wantKeys {
		wantEntry, _ := want.GetByKey(key)
		gotEntry, ok := got.GetByKey(key)
		if !ok {
			t.Fatalf("missing key %q after round-trip", key)
		}
		if gotEntry.TotalExperiences != wantEntry.TotalExperiences {
			t.Fatalf("key %q experiences: got %d want %d", key, gotEntry.TotalExperiences, wantEntry.TotalExperiences)
		}
		if gotEntry.BestFitness != wantEntry.BestFitness {
			t.Fatalf("key %q best fitness: got %v want %v", key, gotEntry.BestFitness, wantEntry.BestFitness)
		}
		for i := 0; i < wantEntry.Params.Len(); i++ {
			ws, gs := wantEntry.Params.At(i), gotEntry.Params.At(i)
			if ws.Mean != gs.Mean || ws.Variance != gs.Variance || ws.SumWeights != gs.SumWeights || ws.Count != gs.Count {
				t.Fatalf("key %q param %d mismatch: got %+v want %+v", key, i, gs, ws)
			}
		}
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	store := buildStore(t)
	var buf bytes.Buffer
	if err := SaveBinary(&buf, store); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadBinary(&buf)
	if err != nil {
		t.Fatal(err)
	}
	assertStoresEqual(t, loaded, store)
}

func TestBinaryRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBufferString("XXXX")
	if _, err := LoadBinary(buf); err == nil {
		t.Fatal("expected format error for bad magic")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	store := buildStore(t)
	var buf bytes.Buffer
	if err := SaveJSON(&buf, store); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadJSON(&buf)
	if err != nil {
		t.Fatal(err)
	}
	assertStoresEqual(t, loaded, store)
}

func TestCSVHeaderAndRows(t *testing.T) {
	store := buildStore(t)
	var buf bytes.Buffer
	if err := SaveCSV(&buf, store); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	wantHeader := "context,param_0_mean,param_0_std,param_1_mean,param_1_std,param_2_mean,param_2_std,experiences,confidence,avg_fitness,best_fitness\n"
	if out[:len(wantHeader)] != wantHeader {
		t.Fatalf("header mismatch:\ngot  %q\nwant %q", out[:len(wantHeader)], wantHeader)
	}
}
