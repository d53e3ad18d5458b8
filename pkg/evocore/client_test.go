package evocore

import (
	"context"
	"testing"

	"evocore/internal/ctxstore"
	"evocore/internal/genome"
	"evocore/internal/model"
)

func sphereFitness(_ context.Context, g genome.Genome, _ any) (float64, error) {
	sum := 0.0
	for _, b := range g.Bytes() {
		x := (float64(b)/255.0)*2 - 1
		sum += x * x
	}
	return -sum, nil
}

func TestRunAttachesStoresAndPersistsSnapshot(t *testing.T) {
	ctx := context.Background()
	client, err := NewClient(ctx, Options{StoreKind: "memory"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	req := RunRequest{
		RunID:          "run-1",
		PopulationSize: 30,
		GenomeSize:     8,
		Generations:    20,
		TournamentSize: 3,
		Fitness:        sphereFitness,
		Seed:           11,
		ContextDimensions: []ctxstore.Dimension{
			{Name: "phase", Values: []string{"EARLY", "MID", "LATE"}},
		},
		ContextParamCount: 2,
		TemporalGrain:     model.GrainHour,
		TemporalRetention: 10,
		NegativeRegistry:  true,
	}

	result, err := client.Run(ctx, req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Generations != req.Generations {
		t.Fatalf("Generations = %d, want %d", result.Generations, req.Generations)
	}
	if result.ContextStore == nil {
		t.Fatalf("expected a context store to be attached")
	}
	if result.TemporalStore == nil {
		t.Fatalf("expected a temporal store to be attached")
	}
	if result.NegRegistry == nil {
		t.Fatalf("expected a negative registry to be attached")
	}

	restored, err := client.LoadContextSnapshot(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadContextSnapshot: %v", err)
	}
	if restored.Len() != result.ContextStore.Len() {
		t.Fatalf("restored snapshot length = %d, want %d", restored.Len(), result.ContextStore.Len())
	}
}

func TestRunRequiresFitness(t *testing.T) {
	ctx := context.Background()
	client, err := NewClient(ctx, Options{StoreKind: "memory"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	_, err = client.Run(ctx, RunRequest{PopulationSize: 4, GenomeSize: 4, Generations: 1})
	if err == nil {
		t.Fatalf("expected an error when no fitness function or domain is supplied")
	}
}

func TestRunWithDomainRegistration(t *testing.T) {
	ctx := context.Background()
	client, err := NewClient(ctx, Options{StoreKind: "memory"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	domain := &DomainRegistration{
		Name:       "sphere",
		Version:    "1",
		GenomeSize: 8,
		Fitness:    sphereFitness,
	}

	result, err := client.Run(ctx, RunRequest{
		PopulationSize: 10,
		GenomeSize:     8,
		Generations:    5,
		Domain:         domain,
		Seed:           3,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Generations != 5 {
		t.Fatalf("Generations = %d, want 5", result.Generations)
	}
}
