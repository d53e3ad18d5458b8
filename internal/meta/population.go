package meta

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"evocore/internal/ecerr"
)

// historyCapacity is the fixed size of each MetaIndividual's fitness ring.
const historyCapacity = 10

// convergenceMinGenerations is the minimum number of recorded fitness
// samples before Converged will evaluate a trend.
const convergenceMinGenerations = 5

// MetaIndividual is one candidate MetaParams plus its rolling fitness
// history.
type MetaIndividual struct {
	ID      string
	Params  MetaParams
	history []float64 // chronological ring, oldest first, capacity historyCapacity
}

// NewMetaIndividual wraps params in a fresh MetaIndividual with an empty
// fitness history.
func NewMetaIndividual(params MetaParams) MetaIndividual {
	return MetaIndividual{ID: uuid.NewString(), Params: params}
}

// RecordFitness appends one meta_evaluate score, evicting the oldest
// sample once the ring is at capacity.
func (m *MetaIndividual) RecordFitness(score float64) {
	m.history = append(m.history, score)
	if len(m.history) > historyCapacity {
		m.history = m.history[1:]
	}
}

// LatestFitness returns the most recently recorded score, or 0 if none.
func (m MetaIndividual) LatestFitness() float64 {
	if len(m.history) == 0 {
		return 0
	}
	return m.history[len(m.history)-1]
}

// History returns the chronological fitness ring.
func (m MetaIndividual) History() []float64 {
	return m.history
}

// MetaPopulation is a fixed-capacity population of MetaIndividuals, with a
// cached best index refreshed by Sort.
type MetaPopulation struct {
	individuals []MetaIndividual
	capacity    int
	bestIndex   int
}

// NewMetaPopulation builds a MetaPopulation of the given capacity with
// uniform-random MetaParams.
func NewMetaPopulation(rng *rand.Rand, capacity int) (*MetaPopulation, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be > 0", ecerr.ErrInvalidArgument)
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: rng", ecerr.ErrNullArgument)
	}
	individuals := make([]MetaIndividual, capacity)
	for i := range individuals {
		individuals[i] = NewMetaIndividual(RandomParams(rng))
	}
	return &MetaPopulation{individuals: individuals, capacity: capacity}, nil
}

// Len returns the population's size.
func (mp *MetaPopulation) Len() int { return len(mp.individuals) }

// At returns the individual at index i.
func (mp *MetaPopulation) At(i int) MetaIndividual { return mp.individuals[i] }

// Set replaces the individual at index i.
func (mp *MetaPopulation) Set(i int, ind MetaIndividual) { mp.individuals[i] = ind }

// All returns the underlying slice (caller must not retain beyond one
// generation without cloning).
func (mp *MetaPopulation) All() []MetaIndividual { return mp.individuals }

// Best returns the individual at the cached best index.
func (mp *MetaPopulation) Best() MetaIndividual { return mp.individuals[mp.bestIndex] }

// EvaluateOptions bundles the inputs to the meta fitness formula:
// 0.5*best + 0.2*avg + 0.2*(100*diversity, 1.2x banded bonus for
// 0.3<d<0.5) + 0.1*(1000/gens).
type EvaluateOptions struct {
	BestFitness float64
	AvgFitness  float64
	Diversity   float64 // normalized [0,1]
	Generations int     // inner-loop generations the meta-individual ran for
}

// diversityTerm scores a raw diversity value, applying a 1.2x bonus in the
// 0.3-0.5 band.
func diversityTerm(diversity float64) float64 {
	score := 100 * diversity
	if diversity > 0.3 && diversity < 0.5 {
		score *= 1.2
	}
	return score
}

// Evaluate computes the meta fitness score for one individual's observed
// run outcome and records it into the individual's history.
func (m *MetaIndividual) Evaluate(opts EvaluateOptions) float64 {
	efficiency := 0.0
	if opts.Generations > 0 {
		efficiency = 1000 / float64(opts.Generations)
	}
	score := 0.5*opts.BestFitness + 0.2*opts.AvgFitness + 0.2*diversityTerm(opts.Diversity) + 0.1*efficiency
	m.RecordFitness(score)
	return score
}

// Sort orders individuals descending by LatestFitness and refreshes the
// cached best index.
func (mp *MetaPopulation) Sort() {
	sort.SliceStable(mp.individuals, func(i, j int) bool {
		return mp.individuals[i].LatestFitness() > mp.individuals[j].LatestFitness()
	})
	mp.bestIndex = 0
}

// tournamentSelect picks the fittest of k uniformly-drawn individuals.
func (mp *MetaPopulation) tournamentSelect(rng *rand.Rand, k int) MetaIndividual {
	if k > len(mp.individuals) {
		k = len(mp.individuals)
	}
	best := mp.individuals[rng.Intn(len(mp.individuals))]
	for i := 1; i < k; i++ {
		candidate := mp.individuals[rng.Intn(len(mp.individuals))]
		if candidate.LatestFitness() > best.LatestFitness() {
			best = candidate
		}
	}
	return best
}

// crossoverParams performs uniform field-level crossover between two
// MetaParams via reflection-free, explicit field blending (average with
// random bias).
func crossoverParams(rng *rand.Rand, a, b MetaParams) MetaParams {
	bias := rng.Float64()
	blend := func(x, y float64) float64 { return x*bias + y*(1-bias) }
	return MetaParams{
		MutationRate:        blend(a.MutationRate, b.MutationRate),
		CrossoverRate:       blend(a.CrossoverRate, b.CrossoverRate),
		TournamentSize:      blend(a.TournamentSize, b.TournamentSize),
		ExplorationFactor:   blend(a.ExplorationFactor, b.ExplorationFactor),
		StagnationThreshold: blend(a.StagnationThreshold, b.StagnationThreshold),
		TargetPopulation:    blend(a.TargetPopulation, b.TargetPopulation),
		MinPopulation:       blend(a.MinPopulation, b.MinPopulation),
		MaxPopulation:       blend(a.MaxPopulation, b.MaxPopulation),
		DecayHalfLife:       blend(a.DecayHalfLife, b.DecayHalfLife),
		SimilarityThreshold: blend(a.SimilarityThreshold, b.SimilarityThreshold),
		RepeatMultiplier:    blend(a.RepeatMultiplier, b.RepeatMultiplier),
		ElitismRate:         blend(a.ElitismRate, b.ElitismRate),
		CullRatio:           blend(a.CullRatio, b.CullRatio),
		EliteBreedRatio:     blend(a.EliteBreedRatio, b.EliteBreedRatio),
		AverageBreedRatio:   blend(a.AverageBreedRatio, b.AverageBreedRatio),
		WeakBreedRatio:      blend(a.WeakBreedRatio, b.WeakBreedRatio),
		MetaMutationRate:    blend(a.MetaMutationRate, b.MetaMutationRate),
		MetaCrossoverRate:   blend(a.MetaCrossoverRate, b.MetaCrossoverRate),
	}
}

// selectByClass picks a parent from one of three performance classes (top,
// middle, bottom third of the sorted population), weighting the classes by
// the given elite/average/weak ratios. A non-positive total falls back to a
// plain tournament select.
func (mp *MetaPopulation) selectByClass(rng *rand.Rand, elite, average, weak float64) MetaIndividual {
	n := len(mp.individuals)
	total := elite + average + weak
	if total <= 0 {
		return mp.tournamentSelect(rng, 3)
	}
	third := n / 3
	if third == 0 {
		third = 1
	}
	roll := rng.Float64() * total
	switch {
	case roll < elite:
		return mp.individuals[rng.Intn(third)]
	case roll < elite+average:
		lo, hi := third, 2*third
		if hi <= lo || hi > n {
			hi = n
		}
		return mp.individuals[lo+rng.Intn(hi-lo)]
	default:
		lo := 2 * third
		if lo >= n {
			lo = n - 1
		}
		return mp.individuals[lo+rng.Intn(n-lo)]
	}
}

// Evolve sorts by fitness, preserves the top ElitismRate unchanged, and
// regenerates the bottom CullRatio by breeding parents drawn from the
// elite/average/weak classes per the corresponding *BreedRatio weights,
// crossing them with probability MetaCrossoverRate and mutating the result
// at MetaMutationRate. Both ratios and rates are read from the current best
// individual's own params, so the meta-population self-adapts its
// reproduction alongside the parameters it searches over.
func (mp *MetaPopulation) Evolve(rng *rand.Rand) {
	mp.Sort()
	best := mp.Best().Params
	n := len(mp.individuals)

	eliteCount := int(float64(n) * best.ElitismRate)
	cullCount := int(float64(n) * best.CullRatio)
	if cullCount < 1 {
		cullCount = 1
	}
	if cullCount > n-eliteCount {
		cullCount = n - eliteCount
	}
	regenStart := n - cullCount
	if regenStart < eliteCount {
		regenStart = eliteCount
	}

	for i := regenStart; i < n; i++ {
		p1 := mp.selectByClass(rng, best.EliteBreedRatio, best.AverageBreedRatio, best.WeakBreedRatio)
		p2 := mp.selectByClass(rng, best.EliteBreedRatio, best.AverageBreedRatio, best.WeakBreedRatio)
		var child MetaParams
		if rng.Float64() < best.MetaCrossoverRate {
			child = crossoverParams(rng, p1.Params, p2.Params)
		} else {
			child = p1.Params
		}
		_ = Mutate(rng, &child, best.MetaMutationRate)
		mp.individuals[i] = NewMetaIndividual(child)
	}
	mp.bestIndex = 0
}

// Converged reports whether the best individual's fitness history has
// flattened: the OLS slope over its history magnitude falls below
// threshold, once at least convergenceMinGenerations samples exist.
func (mp *MetaPopulation) Converged(threshold float64) bool {
	best := mp.Best()
	if len(best.history) < convergenceMinGenerations {
		return false
	}
	xs := make([]float64, len(best.history))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, slope := stat.LinearRegression(xs, best.history, nil, false)
	if slope < 0 {
		slope = -slope
	}
	return slope < threshold
}
