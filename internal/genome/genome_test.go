package genome

import (
	"context"
	"math/rand"
	"testing"

	"evocore/internal/model"
)

func TestCrossoverXORPreservation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	p1, _ := New(32)
	p2, _ := New(32)
	_ = p1.Randomize(rng)
	_ = p2.Randomize(rng)

	c1, c2, err := Crossover(rng, p1, p2)
	if err != nil {
		t.Fatalf("crossover: %v", err)
	}
	for i := 0; i < 32; i++ {
		gotXOR := c1.data[i] ^ c2.data[i]
		wantXOR := p1.data[i] ^ p2.data[i]
		if gotXOR != wantXOR {
			t.Fatalf("byte %d: XOR mismatch got %x want %x", i, gotXOR, wantXOR)
		}
	}
}

func TestMutationRateOneFlipsNearlyAllBytes(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	g, _ := New(10000)
	_ = g.Randomize(rng)
	before := g.Clone()

	if err := Mutate(rng, &g, 1.0); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	changed := 0
	for i := 0; i < g.size; i++ {
		if g.data[i] != before.data[i] {
			changed++
		}
	}
	frac := float64(changed) / float64(g.size)
	// at rate 1.0, ~255/256 of bytes are expected to differ (uniform
	// replacement can coincidentally reproduce the same byte).
	if frac < 0.95 {
		t.Fatalf("expected ~99%% of bytes to change, got %.2f%%", frac*100)
	}
}

func TestMutationRateZeroChangesNothing(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	g, _ := New(1000)
	_ = g.Randomize(rng)
	before := g.Clone()

	if err := Mutate(rng, &g, 0.0); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	for i := 0; i < g.size; i++ {
		if g.data[i] != before.data[i] {
			t.Fatalf("byte %d changed at rate 0", i)
		}
	}
}

func TestDistanceHamming(t *testing.T) {
	a, _ := New(4)
	b, _ := New(4)
	a.data = []byte{1, 2, 3, 4}
	b.data = []byte{1, 0, 3, 0}
	if got := Distance(a, b); got != 2 {
		t.Fatalf("distance = %d, want 2", got)
	}
}

func TestPopulationSortStability(t *testing.T) {
	pop, err := NewPopulation(5)
	if err != nil {
		t.Fatal(err)
	}
	g, _ := New(4)
	fitnesses := []float64{3, model.UnevaluatedFitness, 1, 5, model.UnevaluatedFitness}
	for _, f := range fitnesses {
		if err := pop.Add(g, f); err != nil {
			t.Fatal(err)
		}
	}
	pop.Sort()
	for i := 0; i < pop.Size()-1; i++ {
		fi := pop.At(i).Fitness
		fj := pop.At(i + 1).Fitness
		if !(fi >= fj || model.IsUnevaluated(fj)) {
			t.Fatalf("sort violated at %d: fi=%v fj=%v", i, fi, fj)
		}
	}
	if pop.BestIndex() != 0 {
		t.Fatalf("best index after sort = %d, want 0", pop.BestIndex())
	}
}

func TestPopulationAddFailsAtCapacity(t *testing.T) {
	pop, _ := NewPopulation(1)
	g, _ := New(4)
	if err := pop.Add(g, 1.0); err != nil {
		t.Fatal(err)
	}
	if err := pop.Add(g, 1.0); err == nil {
		t.Fatal("expected ErrFull")
	}
}

func TestPopulationEvaluateOnlySentinels(t *testing.T) {
	pop, _ := NewPopulation(3)
	g, _ := New(4)
	_ = pop.Add(g, 5.0)
	_ = pop.Add(g, model.UnevaluatedFitness)
	_ = pop.Add(g, model.UnevaluatedFitness)

	calls := 0
	n, err := pop.Evaluate(context.Background(), func(_ context.Context, _ Genome, _ any) (float64, error) {
		calls++
		return 1.0, nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || calls != 2 {
		t.Fatalf("evaluate count = %d calls = %d, want 2", n, calls)
	}
}

func TestTournamentSelectClampsK(t *testing.T) {
	pop, _ := NewPopulation(2)
	g, _ := New(4)
	_ = pop.Add(g, 1.0)
	_ = pop.Add(g, 2.0)
	rng := rand.New(rand.NewSource(4))
	if _, err := pop.TournamentSelect(rng, 100); err != nil {
		t.Fatalf("tournament select: %v", err)
	}
}
