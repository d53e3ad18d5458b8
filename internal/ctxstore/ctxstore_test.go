package ctxstore

import (
	"math/rand"
	"testing"
	"time"

	"evocore/internal/wstat"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dims := []Dimension{
		{Name: "phase", Values: []string{"EARLY", "MID", "LATE"}},
	}
	s, err := New(dims, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestBuildKeyAndParseKeyRoundTrip(t *testing.T) {
	dims := []Dimension{{Name: "phase", Values: nil}, {Name: "mode", Values: nil}}
	key := BuildKey(dims, []string{"EARLY", "gt"})
	if key != "EARLY:gt" {
		t.Fatalf("BuildKey = %q, want EARLY:gt", key)
	}
	values := ParseKey(key)
	if len(values) != 2 || values[0] != "EARLY" || values[1] != "gt" {
		t.Fatalf("ParseKey = %v, want [EARLY gt]", values)
	}
}

func TestLearnRejectsWrongParamCount(t *testing.T) {
	s := newTestStore(t)
	if err := s.Learn([]string{"EARLY"}, []float64{0.1}, 10, time.Now()); err == nil {
		t.Fatalf("expected an error for a param count mismatch")
	}
}

func TestLearnAccumulatesAndQueries(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	if err := s.Learn([]string{"EARLY"}, []float64{0.1, 0.5}, 10, now); err != nil {
		t.Fatalf("Learn: %v", err)
	}
	if err := s.Learn([]string{"EARLY"}, []float64{0.2, 0.6}, 20, now.Add(time.Minute)); err != nil {
		t.Fatalf("Learn: %v", err)
	}
	if err := s.Learn([]string{"MID"}, []float64{0.3, 0.4}, 5, now); err != nil {
		t.Fatalf("Learn: %v", err)
	}

	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}

	stats, ok := s.Get([]string{"EARLY"})
	if !ok {
		t.Fatalf("expected an EARLY entry")
	}
	if stats.TotalExperiences != 2 {
		t.Fatalf("TotalExperiences = %d, want 2", stats.TotalExperiences)
	}
	if stats.BestFitness != 20 {
		t.Fatalf("BestFitness = %v, want 20", stats.BestFitness)
	}

	results := s.QueryBest("", 1, 10)
	if len(results) != 2 {
		t.Fatalf("QueryBest returned %d rows, want 2", len(results))
	}
	if results[0].Stats.BestFitness < results[1].Stats.BestFitness {
		t.Fatalf("QueryBest not sorted descending by best fitness: %+v", results)
	}
}

func TestValidateValuesRejectsUndeclaredValue(t *testing.T) {
	s := newTestStore(t)
	if err := s.ValidateValues([]string{"UNKNOWN"}); err == nil {
		t.Fatalf("expected an error for an undeclared dimension value")
	}
	if err := s.ValidateValues([]string{"EARLY"}); err != nil {
		t.Fatalf("ValidateValues: %v", err)
	}
}

func TestSampleFallsBackToUniformForUnknownKey(t *testing.T) {
	s := newTestStore(t)
	rng := rand.New(rand.NewSource(1))
	values := s.Sample(rng, []string{"LATE"}, 0.0)
	if len(values) != 2 {
		t.Fatalf("Sample returned %d values, want 2", len(values))
	}
	for _, v := range values {
		if v < 0 || v > 1 {
			t.Fatalf("Sample value %v out of the default [0,1] fallback range", v)
		}
	}
}

func TestRestoreInstallsEntryDirectly(t *testing.T) {
	s := newTestStore(t)
	entry := Stats{
		Key:              BuildKey(s.Dimensions(), []string{"MID"}),
		Params:           wstat.NewArray(2),
		TotalExperiences: 7,
		BestFitness:      42,
	}
	s.Restore(entry)

	got, ok := s.Get([]string{"MID"})
	if !ok {
		t.Fatalf("expected the restored entry to be retrievable")
	}
	if got.TotalExperiences != 7 || got.BestFitness != 42 {
		t.Fatalf("restored entry mismatch: %+v", got)
	}
}
