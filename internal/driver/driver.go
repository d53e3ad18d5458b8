// Package driver implements the evolution driver: the per-generation loop
// that glues the genome/population, batch evaluator, context store,
// temporal store, negative registry, and adaptive scheduler together,
// plus the outer meta-evolution loop ("each meta-individual is evaluated
// by running the inner loop for a fixed number of generations").
package driver

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"evocore/internal/batcheval"
	"evocore/internal/ctxstore"
	"evocore/internal/ecerr"
	"evocore/internal/genome"
	"evocore/internal/model"
	"evocore/internal/negreg"
	"evocore/internal/scheduler"
	"evocore/internal/temporal"
)

// FitnessFunc scores one genome, receiving the caller-supplied user
// context. Higher is better; callers embed
// minimization by negating.
type FitnessFunc func(ctx context.Context, g genome.Genome, userCtx any) (float64, error)

// EventSink receives one Event per generation, in the shape of a
// trace-update hook; nil disables event emission.
type EventSink func(Event)

// Event summarizes one completed generation for an external observer
// (logger, TUI, metrics sink).
type Event struct {
	Generation      int
	Phase           model.Phase
	BestFitness     float64
	AvgFitness      float64
	Diversity       float64
	MutationRate    float64
	PopulationSize  int
	Stagnant        bool
	DiversityAction model.DiversityAction
}

// Config bundles the driver's tunable knobs.
type Config struct {
	PopulationSize           int
	FinalPopulationSize      int // scheduler's LATE-phase population target; defaults to PopulationSize/2
	GenomeSize               int
	MaxGenerations           int
	TournamentK              int
	ExperimentationRate      float64 // probability of random reinit instead of crossover
	CrossoverRate            float64 // probability of sexual crossover instead of asexual clone-and-mutate
	InitialMutationRate      float64 // scheduler's starting mutation rate before decay/boosts
	OptimizationMutationRate float64 // multiplier applied to the scheduler's mutation_rate on the exploit branch
	VarianceMutationRate     float64 // multiplier applied to the scheduler's mutation_rate on the explore branch
	StagnationThreshold      int     // non-improving generations before the scheduler and trigger_recovery treat a run as stagnant
	StagnationBoost          float64 // mutation-rate multiplier on trigger_recovery
	StagnationExpansion      float64 // population growth factor on trigger_recovery
}

// DefaultConfig returns spec-reasonable defaults for every Config field
// not otherwise specified.
func DefaultConfig() Config {
	return Config{
		PopulationSize:           100,
		FinalPopulationSize:      50,
		GenomeSize:               16,
		MaxGenerations:           100,
		TournamentK:              3,
		ExperimentationRate:      0.05,
		CrossoverRate:            0.9,
		InitialMutationRate:      0.5,
		OptimizationMutationRate: 0.5,
		VarianceMutationRate:     2.0,
		StagnationThreshold:      20,
		StagnationBoost:          3.0,
		StagnationExpansion:      1.5,
	}
}

// Driver owns one run of the inner evolutionary loop.
type Driver struct {
	cfg    Config
	domain *Domain

	population *genome.Population
	scheduler  *scheduler.Scheduler
	evaluator  *batcheval.Evaluator
	ctxStore   *ctxstore.Store
	temporal   *temporal.Store
	negReg     *negreg.Registry

	fitness FitnessFunc
	userCtx any
	rng     *rand.Rand
	sink    EventSink

	mutationBoost float64 // multiplier raised by trigger_recovery and INCREASE_MUTATION; never reset, so boosts accumulate for the rest of the run
}

// Option configures optional Driver collaborators.
type Option func(*Driver)

// WithDomain registers domain-specific genome operators.
func WithDomain(d *Domain) Option { return func(drv *Driver) { drv.domain = d } }

// WithContextStore attaches a context-learning store.
func WithContextStore(s *ctxstore.Store) Option { return func(drv *Driver) { drv.ctxStore = s } }

// WithTemporalStore attaches a temporal-learning store.
func WithTemporalStore(s *temporal.Store) Option { return func(drv *Driver) { drv.temporal = s } }

// WithNegativeRegistry attaches a negative-learning registry.
func WithNegativeRegistry(r *negreg.Registry) Option { return func(drv *Driver) { drv.negReg = r } }

// WithAccelerator attaches a batch-evaluation accelerator.
func WithAccelerator(a batcheval.Accelerator) Option {
	return func(drv *Driver) { drv.evaluator = batcheval.New(a) }
}

// WithEventSink attaches a per-generation observer.
func WithEventSink(sink EventSink) Option { return func(drv *Driver) { drv.sink = sink } }

// New builds a Driver with an initial random population, ready to run
// generations. fitness and userCtx are ignored where a Domain with its
// own Fitness/UserCtx is supplied via WithDomain.
func New(cfg Config, fitness FitnessFunc, userCtx any, seed int64, opts ...Option) (*Driver, error) {
	if fitness == nil {
		return nil, fmt.Errorf("%w: fitness function", ecerr.ErrNullArgument)
	}
	if cfg.PopulationSize <= 0 || cfg.GenomeSize <= 0 {
		return nil, fmt.Errorf("%w: population size and genome size must be > 0", ecerr.ErrInvalidArgument)
	}
	pop, err := genome.NewPopulation(cfg.PopulationSize)
	if err != nil {
		return nil, err
	}

	finalPop := cfg.FinalPopulationSize
	if finalPop <= 0 {
		finalPop = cfg.PopulationSize / 2
		if finalPop == 0 {
			finalPop = cfg.PopulationSize
		}
	}
	initialMutationRate := cfg.InitialMutationRate
	if initialMutationRate == 0 {
		initialMutationRate = DefaultConfig().InitialMutationRate
	}
	stagnationThreshold := cfg.StagnationThreshold
	if stagnationThreshold <= 0 {
		stagnationThreshold = DefaultConfig().StagnationThreshold
	}
	sched := scheduler.New().
		WithPopulationRange(cfg.PopulationSize, finalPop).
		WithInitialMutationRate(initialMutationRate).
		WithStagnationThreshold(stagnationThreshold)

	drv := &Driver{
		cfg:           cfg,
		population:    pop,
		scheduler:     sched,
		evaluator:     batcheval.New(nil),
		fitness:       fitness,
		userCtx:       userCtx,
		rng:           rand.New(rand.NewSource(seed)),
		mutationBoost: 1.0,
	}
	for _, opt := range opts {
		opt(drv)
	}

	for i := 0; i < cfg.PopulationSize; i++ {
		g, err := genome.New(cfg.GenomeSize)
		if err != nil {
			return nil, err
		}
		if err := drv.domain.randomInit(drv.rng, &g); err != nil {
			return nil, err
		}
		if err := pop.Add(g, model.UnevaluatedFitness); err != nil {
			return nil, err
		}
	}
	return drv, nil
}

// Population exposes the driver's current population for inspection.
func (d *Driver) Population() *genome.Population { return d.population }

func (d *Driver) batchFitness(ctx context.Context, g genome.Genome) (float64, error) {
	if d.domain != nil && d.domain.Fitness != nil {
		fit, err := d.domain.Fitness(ctx, g, d.domain.UserCtx)
		if err != nil {
			return 0, err
		}
		return d.adjustFitness(g, fit), nil
	}
	fit, err := d.fitness(ctx, g, d.userCtx)
	if err != nil {
		return 0, err
	}
	return d.adjustFitness(g, fit), nil
}

func (d *Driver) adjustFitness(g genome.Genome, fit float64) float64 {
	if d.negReg == nil {
		return fit
	}
	return d.negReg.AdjustFitness(g.Bytes(), fit)
}

// evaluateUnevaluated scores every sentinel-fitness individual via the
// batch evaluator, writing results back into the population in place.
func (d *Driver) evaluateUnevaluated(ctx context.Context) error {
	individuals := d.population.All()
	pending := make([]int, 0, len(individuals))
	genomes := make([]genome.Genome, 0, len(individuals))
	for i, ind := range individuals {
		if model.IsUnevaluated(ind.Fitness) {
			pending = append(pending, i)
			genomes = append(genomes, ind.Genome)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	out := make([]float64, len(genomes))
	if _, err := d.evaluator.Evaluate(ctx, genomes, d.batchFitness, out); err != nil {
		return err
	}
	reference := d.population.BestFitness()
	for j, idx := range pending {
		ind := d.population.At(idx)
		ind.Fitness = out[j]
		d.population.Set(idx, ind)
		if d.negReg != nil && !math.IsInf(reference, -1) {
			if _, err := d.negReg.RecordFailure(ind.Genome, relativeDelta(out[j], reference), d.population.Generation()); err != nil {
				return err
			}
		}
	}
	return nil
}

// relativeDelta expresses fit's fractional change from reference (the
// population's best-known fitness so far), so the negative registry's
// severity thresholds (e.g. -0.10 = 10% worse) apply regardless of a
// domain's fitness scale.
func relativeDelta(fit, reference float64) float64 {
	scale := math.Abs(reference)
	if scale < 1e-9 {
		scale = 1e-9
	}
	return (fit - reference) / scale
}

// diversityScore samples random pairs from the population and averages
// their normalized distance (domain Diversity callback if registered,
// else byte-level Hamming), giving a cheap O(sample) diversity estimate
// in [0,1].
func (d *Driver) diversityScore() float64 {
	n := d.population.Size()
	if n < 2 {
		return 0
	}
	const samples = 30
	total := 0.0
	count := 0
	for i := 0; i < samples; i++ {
		a := d.population.At(d.rng.Intn(n)).Genome
		b := d.population.At(d.rng.Intn(n)).Genome
		total += d.domain.diversity(a, b)
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// triggerRecovery boosts the mutation rate and expands the population
// ceiling, then resets the scheduler's stagnation streak.
func (d *Driver) triggerRecovery() {
	d.mutationBoost *= d.cfg.StagnationBoost
	growth := int(float64(d.population.Capacity()) * (d.cfg.StagnationExpansion - 1))
	d.population.GrowCapacity(growth)
	d.scheduler.ResetStagnation()
}

// applyDiversityIntervention acts on the scheduler's diversity action by
// injecting fresh random genomes or leaving the next generation's
// mutation rate boosted.
func (d *Driver) applyDiversityIntervention(action model.DiversityAction) error {
	var fraction float64
	switch action {
	case model.DiversityActionAddRandom20:
		fraction = 0.20
	case model.DiversityActionAddRandom10:
		fraction = 0.10
	case model.DiversityActionIncreaseMutate:
		d.mutationBoost *= 1.5
		return nil
	default:
		return nil
	}
	count := int(float64(d.cfg.PopulationSize) * fraction)
	for i := 0; i < count && i < d.population.Size(); i++ {
		g, err := genome.New(d.cfg.GenomeSize)
		if err != nil {
			return err
		}
		if err := d.domain.randomInit(d.rng, &g); err != nil {
			return err
		}
		worst := d.population.Size() - 1 - i
		d.population.Set(worst, genome.Individual{Genome: g, Fitness: model.UnevaluatedFitness})
	}
	return nil
}

// RunGeneration advances the inner loop by one generation: evaluate,
// update stats, consult the scheduler, cull, breed up to the target
// population size, apply diversity interventions, and recover from
// stagnation if detected.
func (d *Driver) RunGeneration(ctx context.Context) (Event, error) {
	if err := d.evaluateUnevaluated(ctx); err != nil {
		return Event{}, err
	}
	d.population.Sort()

	diversity := d.diversityScore()
	d.scheduler.Update(d.population.BestFitness(), d.population.AvgFitness(), diversity)
	progress := 0.0
	if d.cfg.MaxGenerations > 0 {
		progress = float64(d.population.Generation()) / float64(d.cfg.MaxGenerations)
	}
	snap := d.scheduler.ApplyToMeta(progress)

	mutationRate := snap.MutationRate * d.mutationBoost
	if mutationRate > 1 {
		mutationRate = 1
	}

	cullCount := int(float64(d.population.Size()) * snap.SelectionPressure)
	for i := 0; i < cullCount; i++ {
		if d.population.Size() == 0 {
			break
		}
		if err := d.population.Remove(d.population.Size() - 1); err != nil {
			return Event{}, err
		}
	}

	target := snap.PopulationSize
	if target > d.population.Capacity() {
		target = d.population.Capacity()
	}
	for d.population.Size() < target {
		if err := d.breedOne(mutationRate, target); err != nil {
			return Event{}, err
		}
	}

	if err := d.applyDiversityIntervention(snap.DiversityAction); err != nil {
		return Event{}, err
	}

	if d.scheduler.IsStagnant() {
		d.triggerRecovery()
	}

	d.population.IncGeneration()
	d.learnGeneration(snap.Phase, mutationRate, snap.SelectionPressure)

	ev := Event{
		Generation:      d.population.Generation(),
		Phase:           snap.Phase,
		BestFitness:     d.population.BestFitness(),
		AvgFitness:      d.population.AvgFitness(),
		Diversity:       diversity,
		MutationRate:    mutationRate,
		PopulationSize:  d.population.Size(),
		Stagnant:        snap.Stagnant,
		DiversityAction: snap.DiversityAction,
	}
	if d.sink != nil {
		d.sink(ev)
	}
	return ev, nil
}

// learnGeneration folds this generation's outcome into the optional
// context and temporal stores, keyed by the scheduler's phase: the
// context store learns (mutation_rate, selection_pressure) for the
// "phase" dimension, and the temporal store tracks the same pair across
// time buckets, both weighted by the population's best fitness.
func (d *Driver) learnGeneration(phase model.Phase, mutationRate, selectionPressure float64) {
	best := d.population.BestFitness()
	if d.ctxStore != nil {
		_ = d.ctxStore.Learn([]string{phase.String()}, []float64{mutationRate, selectionPressure}, best, time.Now())
	}
	if d.temporal != nil {
		now := time.Now()
		_ = d.temporal.Learn(phase.String(), []float64{mutationRate, selectionPressure}, best, now, now)
	}
}

// breedOne adds one (or two, if room allows) offspring to the population:
// with probability ExperimentationRate a fresh random genome, otherwise two
// tournament-selected parents combined via crossover (probability
// CrossoverRate) or cloned asexually, then mutated. The mutation branch
// (optimization vs. variance rate) is chosen by an even coin flip.
// baseMutationRate is the scheduler's phase rate already scaled by
// mutationBoost; only the exploit/explore branch factor is applied here.
func (d *Driver) breedOne(baseMutationRate float64, target int) error {
	if d.rng.Float64() < d.cfg.ExperimentationRate {
		g, err := genome.New(d.cfg.GenomeSize)
		if err != nil {
			return err
		}
		if err := d.domain.randomInit(d.rng, &g); err != nil {
			return err
		}
		return d.population.Add(g, model.UnevaluatedFitness)
	}

	p1, err := d.population.TournamentSelect(d.rng, d.cfg.TournamentK)
	if err != nil {
		return err
	}
	p2, err := d.population.TournamentSelect(d.rng, d.cfg.TournamentK)
	if err != nil {
		return err
	}

	var c1, c2 genome.Genome
	if d.rng.Float64() < d.cfg.CrossoverRate {
		c1, c2, err = d.domain.crossover(d.rng, p1, p2)
		if err != nil {
			return err
		}
	} else {
		c1, c2 = p1.Clone(), p2.Clone()
	}

	branchMultiplier := d.cfg.OptimizationMutationRate
	if d.rng.Float64() < 0.5 {
		branchMultiplier = d.cfg.VarianceMutationRate
	}
	rate := baseMutationRate * branchMultiplier
	if rate > 1 {
		rate = 1
	}
	if rate < 0 {
		rate = 0
	}

	if err := d.domain.mutate(d.rng, &c1, rate); err != nil {
		return err
	}
	if err := d.population.Add(c1, model.UnevaluatedFitness); err != nil {
		return err
	}
	if d.population.Size() < target {
		if err := d.domain.mutate(d.rng, &c2, rate); err != nil {
			return err
		}
		if err := d.population.Add(c2, model.UnevaluatedFitness); err != nil {
			return err
		}
	}
	return nil
}
