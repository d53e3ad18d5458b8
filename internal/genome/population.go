package genome

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"evocore/internal/ecerr"
	"evocore/internal/model"
)

// Individual pairs a genome with its fitness score.
type Individual struct {
	Genome  Genome
	Fitness float64
}

// Population is an ordered sequence of individuals with size <= capacity.
// It caches best/avg/worst fitness and a generation counter.
type Population struct {
	individuals []Individual
	capacity    int
	generation  int

	bestIndex   int
	bestFitness float64
	avgFitness  float64
	worstFit    float64
}

// NewPopulation allocates an empty population with the given capacity.
func NewPopulation(capacity int) (*Population, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be > 0", ecerr.ErrInvalidArgument)
	}
	return &Population{
		individuals: make([]Individual, 0, capacity),
		capacity:    capacity,
		bestIndex:   -1,
		bestFitness: math.Inf(-1),
	}, nil
}

// Size returns the current number of individuals.
func (p *Population) Size() int { return len(p.individuals) }

// Capacity returns the current capacity (raised only by GrowCapacity).
func (p *Population) Capacity() int { return p.capacity }

// Generation returns the generation counter.
func (p *Population) Generation() int { return p.generation }

// IncGeneration advances the generation counter by one.
func (p *Population) IncGeneration() { p.generation++ }

// At returns the individual at index i.
func (p *Population) At(i int) Individual { return p.individuals[i] }

// Set overwrites the individual at index i.
func (p *Population) Set(i int, ind Individual) { p.individuals[i] = ind }

// All returns a read-only view of the individuals slice.
func (p *Population) All() []Individual { return p.individuals }

// Add clones g (copy semantics) and appends it with the given fitness.
// Fails with ErrFull if the population is at capacity.
func (p *Population) Add(g Genome, fitness float64) error {
	if len(p.individuals) >= p.capacity {
		return fmt.Errorf("%w: population at capacity %d", ecerr.ErrFull, p.capacity)
	}
	p.individuals = append(p.individuals, Individual{Genome: g.Clone(), Fitness: fitness})
	return nil
}

// GrowCapacity raises the population's capacity ceiling by delta, allowing
// Add to succeed beyond the original capacity (used by stagnation-recovery
// population expansion).
func (p *Population) GrowCapacity(delta int) {
	if delta > 0 {
		p.capacity += delta
	}
}

// Remove deletes the individual at index i, shifting the remainder left to
// preserve order (O(n)).
func (p *Population) Remove(i int) error {
	if i < 0 || i >= len(p.individuals) {
		return fmt.Errorf("%w: index %d out of range", ecerr.ErrInvalidArgument, i)
	}
	p.individuals = append(p.individuals[:i], p.individuals[i+1:]...)
	return nil
}

// FitnessFunc scores a genome, receiving a caller-supplied context value.
type FitnessFunc func(ctx context.Context, g Genome, userCtx any) (float64, error)

// Evaluate applies fn to every individual whose fitness is the unevaluated
// sentinel, returning the number evaluated.
func (p *Population) Evaluate(ctx context.Context, fn FitnessFunc, userCtx any) (int, error) {
	if fn == nil {
		return 0, fmt.Errorf("%w: fitness function", ecerr.ErrNullArgument)
	}
	count := 0
	for i := range p.individuals {
		if !model.IsUnevaluated(p.individuals[i].Fitness) {
			continue
		}
		fit, err := fn(ctx, p.individuals[i].Genome, userCtx)
		if err != nil {
			return count, err
		}
		p.individuals[i].Fitness = fit
		count++
	}
	return count, nil
}

// UpdateStats recomputes best/avg/worst, ignoring unevaluated sentinels.
// best_fitness is -Inf if every individual is a sentinel.
func (p *Population) UpdateStats() {
	p.bestIndex = -1
	p.bestFitness = math.Inf(-1)
	p.worstFit = math.Inf(1)
	sum := 0.0
	count := 0
	for i, ind := range p.individuals {
		if model.IsUnevaluated(ind.Fitness) {
			continue
		}
		sum += ind.Fitness
		count++
		if ind.Fitness > p.bestFitness {
			p.bestFitness = ind.Fitness
			p.bestIndex = i
		}
		if ind.Fitness < p.worstFit {
			p.worstFit = ind.Fitness
		}
	}
	if count > 0 {
		p.avgFitness = sum / float64(count)
	} else {
		p.avgFitness = 0
		p.worstFit = math.Inf(-1)
	}
}

// BestIndex, BestFitness, AvgFitness, WorstFitness return the cached stats
// from the last UpdateStats/Sort call.
func (p *Population) BestIndex() int        { return p.bestIndex }
func (p *Population) BestFitness() float64  { return p.bestFitness }
func (p *Population) AvgFitness() float64   { return p.avgFitness }
func (p *Population) WorstFitness() float64 { return p.worstFit }

// Sort orders individuals descending by fitness, with unevaluated
// sentinels sorted last. After Sort, BestIndex is 0.
func (p *Population) Sort() {
	sort.SliceStable(p.individuals, func(i, j int) bool {
		fi, fj := p.individuals[i].Fitness, p.individuals[j].Fitness
		ui, uj := model.IsUnevaluated(fi), model.IsUnevaluated(fj)
		if ui && uj {
			return false
		}
		if ui {
			return false
		}
		if uj {
			return true
		}
		return fi > fj
	})
	p.UpdateStats()
	if len(p.individuals) > 0 && !model.IsUnevaluated(p.individuals[0].Fitness) {
		p.bestIndex = 0
		p.bestFitness = p.individuals[0].Fitness
	}
}

// TournamentSelect draws k indices uniformly (with replacement) and returns
// the genome with the largest valid fitness among them. k is clamped to
// Size().
func (p *Population) TournamentSelect(rng *rand.Rand, k int) (Genome, error) {
	if rng == nil {
		return Genome{}, fmt.Errorf("%w: rng", ecerr.ErrNullArgument)
	}
	if len(p.individuals) == 0 {
		return Genome{}, fmt.Errorf("%w: population", ecerr.ErrEmpty)
	}
	if k <= 0 {
		k = 1
	}
	if k > len(p.individuals) {
		k = len(p.individuals)
	}

	bestIdx := rng.Intn(len(p.individuals))
	bestFit := p.individuals[bestIdx].Fitness
	for i := 1; i < k; i++ {
		idx := rng.Intn(len(p.individuals))
		fit := p.individuals[idx].Fitness
		if model.IsUnevaluated(bestFit) || (!model.IsUnevaluated(fit) && fit > bestFit) {
			bestIdx = idx
			bestFit = fit
		}
	}
	return p.individuals[bestIdx].Genome, nil
}
