// Package evocore is the public facade over the evolutionary optimization
// core: a Client wraps a persistence backend and exposes Run plus context
// snapshot load through a Client/Options/RunRequest shape.
package evocore

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"

	"evocore/internal/ctxstore"
	"evocore/internal/driver"
	"evocore/internal/ecerr"
	"evocore/internal/genome"
	"evocore/internal/model"
	"evocore/internal/negreg"
	"evocore/internal/persist"
	"evocore/internal/temporal"
)

// Options configures a Client's persistence backend.
type Options struct {
	StoreKind string // "memory" or "sqlite"
	StorePath string // used only by the sqlite backend
}

func (o Options) storeKind() string {
	if o.StoreKind == "" {
		return persist.DefaultStoreKind()
	}
	return o.StoreKind
}

// Client owns one persistence backend and runs evolution requests against
// it.
type Client struct {
	store persist.Store
}

// NewClient opens (and initializes) the configured persistence backend.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	store, err := persist.NewStore(opts.storeKind(), opts.StorePath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return &Client{store: store}, nil
}

// Close releases the underlying persistence backend, if it supports it.
func (c *Client) Close() error {
	return persist.CloseIfSupported(c.store)
}

// DomainRegistration is the caller-facing form of the "Domain
// registration" interface: {name, version, genome_size, {random_init,
// mutate, crossover, diversity}, fitness, user_ctx, serialize_genome}.
type DomainRegistration struct {
	Name       string
	Version    string
	GenomeSize int

	RandomInit func(rng *rand.Rand, g *genome.Genome) error
	Mutate     func(rng *rand.Rand, g *genome.Genome, rate float64) error
	Crossover  func(rng *rand.Rand, p1, p2 genome.Genome) (genome.Genome, genome.Genome, error)
	Diversity  func(a, b genome.Genome) float64

	Fitness         func(ctx context.Context, g genome.Genome, userCtx any) (float64, error)
	UserCtx         any
	SerializeGenome func(g genome.Genome) ([]byte, error)
}

func (d *DomainRegistration) toInternal() *driver.Domain {
	if d == nil {
		return nil
	}
	return &driver.Domain{
		Name:            d.Name,
		Version:         d.Version,
		GenomeSize:      d.GenomeSize,
		RandomInit:      d.RandomInit,
		Mutate:          d.Mutate,
		Crossover:       d.Crossover,
		Diversity:       d.Diversity,
		Fitness:         d.Fitness,
		UserCtx:         d.UserCtx,
		SerializeGenome: d.SerializeGenome,
	}
}

// RunRequest configures one inner-loop evolution run, mirroring the
// teacher's flat RunRequest config struct.
type RunRequest struct {
	RunID string

	PopulationSize      int
	GenomeSize          int
	Generations         int
	TournamentSize      int
	ExperimentationRate float64
	StagnationBoost     float64
	StagnationExpansion float64
	Seed                int64

	Domain  *DomainRegistration
	Fitness func(ctx context.Context, g genome.Genome, userCtx any) (float64, error)
	UserCtx any

	ContextDimensions []ctxstore.Dimension
	ContextParamCount int
	TemporalGrain     model.BucketGrain
	TemporalRetention int
	NegativeRegistry  bool
	OnGeneration      driver.EventSink
}

// RunResult summarizes a completed run.
type RunResult struct {
	Generations   int
	BestFitness   float64
	AvgFitness    float64
	BestGenome    genome.Genome
	ContextStore  *ctxstore.Store
	TemporalStore *temporal.Store
	NegRegistry   *negreg.Registry
}

// Run drives the inner evolution loop for req.Generations generations and
// returns a summary, persisting the context store snapshot under req.RunID
// when a RunID is supplied and a context store is configured.
func (c *Client) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if req.Fitness == nil && (req.Domain == nil || req.Domain.Fitness == nil) {
		return nil, fmt.Errorf("%w: a fitness function or domain fitness is required", ecerr.ErrNullArgument)
	}
	cfg := driver.Config{
		PopulationSize:           req.PopulationSize,
		GenomeSize:               req.GenomeSize,
		MaxGenerations:           req.Generations,
		TournamentK:              req.TournamentSize,
		ExperimentationRate:      req.ExperimentationRate,
		OptimizationMutationRate: 0.5,
		VarianceMutationRate:     2.0,
		StagnationBoost:          req.StagnationBoost,
		StagnationExpansion:      req.StagnationExpansion,
	}
	if cfg.TournamentK == 0 {
		cfg.TournamentK = 3
	}
	if cfg.CrossoverRate == 0 {
		cfg.CrossoverRate = 0.9
	}
	if cfg.StagnationBoost == 0 {
		cfg.StagnationBoost = 3.0
	}
	if cfg.StagnationExpansion == 0 {
		cfg.StagnationExpansion = 1.5
	}

	var opts []driver.Option
	if req.Domain != nil {
		opts = append(opts, driver.WithDomain(req.Domain.toInternal()))
	}

	var ctxStore *ctxstore.Store
	if len(req.ContextDimensions) > 0 && req.ContextParamCount > 0 {
		var err error
		ctxStore, err = ctxstore.New(req.ContextDimensions, req.ContextParamCount)
		if err != nil {
			return nil, err
		}
		opts = append(opts, driver.WithContextStore(ctxStore))
	}

	var temporalStore *temporal.Store
	if req.TemporalRetention > 0 && req.ContextParamCount > 0 {
		var err error
		temporalStore, err = temporal.New(req.TemporalGrain, req.TemporalRetention, req.ContextParamCount)
		if err != nil {
			return nil, err
		}
		opts = append(opts, driver.WithTemporalStore(temporalStore))
	}

	var negRegistry *negreg.Registry
	if req.NegativeRegistry {
		negRegistry = negreg.New()
		opts = append(opts, driver.WithNegativeRegistry(negRegistry))
	}

	if req.OnGeneration != nil {
		opts = append(opts, driver.WithEventSink(req.OnGeneration))
	}

	fitness := req.Fitness
	if fitness == nil {
		fitness = req.Domain.Fitness
	}

	drv, err := driver.New(cfg, fitness, req.UserCtx, req.Seed, opts...)
	if err != nil {
		return nil, err
	}

	for g := 0; g < req.Generations; g++ {
		if _, err := drv.RunGeneration(ctx); err != nil {
			return nil, err
		}
	}

	pop := drv.Population()
	result := &RunResult{
		Generations:   pop.Generation(),
		BestFitness:   pop.BestFitness(),
		AvgFitness:    pop.AvgFitness(),
		ContextStore:  ctxStore,
		TemporalStore: temporalStore,
		NegRegistry:   negRegistry,
	}
	if pop.Size() > 0 {
		result.BestGenome = pop.At(0).Genome
	}

	if req.RunID != "" && ctxStore != nil {
		if err := c.saveContextSnapshot(ctx, req.RunID, ctxStore); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (c *Client) saveContextSnapshot(ctx context.Context, runID string, store *ctxstore.Store) error {
	var buf bytes.Buffer
	if err := persist.SaveBinary(&buf, store); err != nil {
		return err
	}
	return c.store.SaveContextSnapshot(ctx, runID, buf.Bytes())
}

// LoadContextSnapshot restores a previously saved context store by run ID.
func (c *Client) LoadContextSnapshot(ctx context.Context, runID string) (*ctxstore.Store, error) {
	data, ok, err := c.store.GetContextSnapshot(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: run %q", ecerr.ErrNotFound, runID)
	}
	return persist.LoadBinary(bytes.NewReader(data))
}
