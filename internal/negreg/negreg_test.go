package negreg

import (
	"math/rand"
	"testing"

	"evocore/internal/genome"
	"evocore/internal/model"
)

func makeGenome(t *testing.T, size int, fill byte) genome.Genome {
	t.Helper()
	g, err := genome.New(size)
	if err != nil {
		t.Fatalf("genome.New: %v", err)
	}
	for i := 0; i < size; i++ {
		g.Write(i, []byte{fill})
	}
	return g
}

func TestClassifySeverityThresholds(t *testing.T) {
	th := DefaultThresholds()
	cases := []struct {
		delta float64
		want  model.Severity
	}{
		{0.1, model.SeverityNone},
		{-0.05, model.SeverityNone},
		{-0.10, model.SeverityMild},
		{-0.20, model.SeverityMild},
		{-0.25, model.SeverityModerate},
		{-0.40, model.SeverityModerate},
		{-0.50, model.SeveritySevere},
		{-0.80, model.SeveritySevere},
		{-0.90, model.SeverityFatal},
		{-1.0, model.SeverityFatal},
	}
	for _, c := range cases {
		if got := th.Classify(c.delta); got != c.want {
			t.Errorf("Classify(%v) = %v, want %v", c.delta, got, c.want)
		}
	}
}

func TestRecordFailureIgnoresNonNegativeDelta(t *testing.T) {
	r := New()
	g := makeGenome(t, 16, 0xAA)
	rec, err := r.RecordFailure(g, 0.5, 1)
	if err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if rec.ID != "" {
		t.Fatalf("expected no record for non-negative delta, got %+v", rec)
	}
	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", r.Len())
	}
}

func TestRecordFailureCreatesAndEscalates(t *testing.T) {
	r := New()
	g := makeGenome(t, 16, 0xAA)
	first, err := r.RecordFailure(g, -0.3, 1)
	if err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if first.Severity != model.SeverityModerate {
		t.Fatalf("Severity = %v, want Moderate", first.Severity)
	}
	if first.RepeatCount != 1 {
		t.Fatalf("RepeatCount = %d, want 1", first.RepeatCount)
	}

	second, err := r.RecordFailure(g, -0.3, 2)
	if err != nil {
		t.Fatalf("RecordFailure repeat: %v", err)
	}
	if second.RepeatCount != 2 {
		t.Fatalf("RepeatCount after repeat = %d, want 2", second.RepeatCount)
	}
	if second.Penalty <= first.Penalty {
		t.Fatalf("expected penalty escalation: first=%v second=%v", first.Penalty, second.Penalty)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (similar genome should match, not duplicate)", r.Len())
	}
}

func TestCheckPenaltyAndIsForbidden(t *testing.T) {
	r := New()
	g := makeGenome(t, 16, 0xFF)
	if _, err := r.RecordFailure(g, -0.95, 1); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	penalty, found := r.CheckPenalty(g.Bytes())
	if !found || penalty < 0.9 {
		t.Fatalf("CheckPenalty = %v,%v want high penalty found", penalty, found)
	}
	if !r.IsForbidden(g.Bytes()) {
		t.Fatalf("expected fatal-severity genome to be forbidden")
	}

	unrelated := makeGenome(t, 16, 0x00)
	if r.IsForbidden(unrelated.Bytes()) {
		t.Fatalf("unrelated genome should not be forbidden")
	}
}

func TestAdjustFitnessScalesDown(t *testing.T) {
	r := New()
	g := makeGenome(t, 16, 0x11)
	if _, err := r.RecordFailure(g, -0.5, 1); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	adjusted := r.AdjustFitness(g.Bytes(), 1.0)
	if adjusted >= 1.0 {
		t.Fatalf("AdjustFitness should reduce fitness for a matching record, got %v", adjusted)
	}
	unrelated := makeGenome(t, 16, 0xEE)
	if got := r.AdjustFitness(unrelated.Bytes(), 1.0); got != 1.0 {
		t.Fatalf("AdjustFitness should leave unrelated fitness unchanged, got %v", got)
	}
}

func TestDecayReducesPenaltyOverGenerations(t *testing.T) {
	r := New().WithDecayHalfLife(10)
	g := makeGenome(t, 16, 0x77)
	rec, _ := r.RecordFailure(g, -0.9, 1)
	before := rec.Penalty
	r.Decay(11)
	after, _ := r.CheckPenalty(g.Bytes())
	if after >= before {
		t.Fatalf("expected decay to reduce penalty: before=%v after=%v", before, after)
	}
}

func TestPruneRemovesBelowThreshold(t *testing.T) {
	r := New()
	g1 := makeGenome(t, 16, 0x01)
	g2 := makeGenome(t, 16, 0x02)
	r.RecordFailure(g1, -0.9, 1)
	r.RecordFailure(g2, -0.12, 1)
	removed := r.Prune(0.5)
	if removed != 1 {
		t.Fatalf("Prune removed %d, want 1", removed)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() after prune = %d, want 1", r.Len())
	}
}

func TestCapacityEnforcedWithDistinctPatterns(t *testing.T) {
	r := New().WithCapacity(4).WithSimilarityThreshold(1.0)
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 4; i++ {
		g, _ := genome.New(32)
		g.Randomize(rng)
		if _, err := r.RecordFailure(g, -0.9, i); err != nil {
			t.Fatalf("RecordFailure %d: %v", i, err)
		}
	}
	if r.Len() != 4 {
		t.Fatalf("Len() = %d, want 4 at capacity", r.Len())
	}
}
