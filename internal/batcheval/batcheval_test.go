package batcheval

import (
	"context"
	"errors"
	"testing"

	"evocore/internal/genome"
)

func makeGenomes(n int) []genome.Genome {
	out := make([]genome.Genome, n)
	for i := range out {
		g, _ := genome.New(4)
		_, _ = g.Write(0, []byte{byte(i), byte(i), byte(i), byte(i)})
		out[i] = g
	}
	return out
}

func TestEvaluateOrderingSerial(t *testing.T) {
	genomes := makeGenomes(5)
	out := make([]float64, len(genomes))
	e := New(nil)
	_, err := e.Evaluate(context.Background(), genomes, func(_ context.Context, g genome.Genome) (float64, error) {
		return float64(g.Bytes()[0]), nil
	}, out)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out {
		if int(v) != i {
			t.Fatalf("index %d: got %v want %d", i, v, i)
		}
	}
}

func TestEvaluateOrderingParallel(t *testing.T) {
	genomes := makeGenomes(50)
	out := make([]float64, len(genomes))
	e := New(nil)
	_, err := e.Evaluate(context.Background(), genomes, func(_ context.Context, g genome.Genome) (float64, error) {
		return float64(g.Bytes()[0]), nil
	}, out)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out {
		if int(v) != i {
			t.Fatalf("index %d: got %v want %d", i, v, i)
		}
	}
}

type failingAccelerator struct{}

func (failingAccelerator) EvaluateBatch(_ context.Context, _ []genome.Genome, _ FitnessFunc, _ []float64) error {
	return errors.New("accelerator unavailable")
}

func TestAcceleratorFallsBackToCPUOnFailure(t *testing.T) {
	genomes := makeGenomes(20)
	out := make([]float64, len(genomes))
	e := New(failingAccelerator{})
	result, err := e.Evaluate(context.Background(), genomes, func(_ context.Context, g genome.Genome) (float64, error) {
		return float64(g.Bytes()[0]), nil
	}, out)
	if err != nil {
		t.Fatal(err)
	}
	if result.UsedAccelerator {
		t.Fatal("expected fallback, UsedAccelerator should be false")
	}
	for i, v := range out {
		if int(v) != i {
			t.Fatalf("index %d: got %v want %d", i, v, i)
		}
	}
}

type successAccelerator struct{}

func (successAccelerator) EvaluateBatch(ctx context.Context, genomes []genome.Genome, fn FitnessFunc, out []float64) error {
	for i, g := range genomes {
		fit, err := fn(ctx, g)
		if err != nil {
			return err
		}
		out[i] = fit
	}
	return nil
}

func TestAcceleratorUsedWhenEnabled(t *testing.T) {
	genomes := makeGenomes(5)
	out := make([]float64, len(genomes))
	e := New(successAccelerator{})
	result, err := e.Evaluate(context.Background(), genomes, func(_ context.Context, g genome.Genome) (float64, error) {
		return float64(g.Bytes()[0]), nil
	}, out)
	if err != nil {
		t.Fatal(err)
	}
	if !result.UsedAccelerator {
		t.Fatal("expected accelerator to be used")
	}
}

func TestSetEnabledDisablesAccelerator(t *testing.T) {
	genomes := makeGenomes(5)
	out := make([]float64, len(genomes))
	e := New(successAccelerator{})
	e.SetEnabled(false)
	result, err := e.Evaluate(context.Background(), genomes, func(_ context.Context, g genome.Genome) (float64, error) {
		return float64(g.Bytes()[0]), nil
	}, out)
	if err != nil {
		t.Fatal(err)
	}
	if result.UsedAccelerator {
		t.Fatal("expected accelerator disabled")
	}
}
