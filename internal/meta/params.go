// Package meta implements meta-evolution: a genetic algorithm over the
// inner GA's own operating parameters (MetaParams), plus the process-wide
// online-learning buckets that track which parameter regions have
// historically paid off.
package meta

import (
	"fmt"
	"math/rand"

	"evocore/internal/ecerr"
)

// paramRange bounds one MetaParams field for clamping and random init.
type paramRange struct {
	min, max float64
}

// MetaParams is the full set of parameters that control one run of the
// inner evolutionary loop, the meta-population's own reproduction, and the
// negative-learning registry it wires into that run. Every field has a
// validated range (see Validate).
type MetaParams struct {
	// Inner-loop knobs.
	MutationRate        float64
	CrossoverRate        float64
	TournamentSize       float64
	ExplorationFactor    float64
	StagnationThreshold  float64

	// Inner-loop population sizing: TargetPopulation is clamped into
	// [MinPopulation, MaxPopulation] before becoming the driver's
	// EARLY-phase population size.
	TargetPopulation float64
	MinPopulation    float64
	MaxPopulation    float64

	// Negative-learning registry knobs.
	DecayHalfLife       float64
	SimilarityThreshold float64
	RepeatMultiplier    float64

	// Meta-population's own reproduction: how much of the sorted
	// population survives untouched (ElitismRate) versus gets replaced
	// each generation (CullRatio), the performance-class weighting used
	// to pick parents for replacement (*BreedRatio), and the meta-level
	// mutation/crossover rates applied to the replacement children.
	ElitismRate       float64
	CullRatio         float64
	EliteBreedRatio   float64
	AverageBreedRatio float64
	WeakBreedRatio    float64
	MetaMutationRate  float64
	MetaCrossoverRate float64
}

var fieldRanges = map[string]paramRange{
	"MutationRate":        {0.001, 0.5},
	"CrossoverRate":       {0.0, 1.0},
	"TournamentSize":      {2, 20},
	"ExplorationFactor":   {0.0, 1.0},
	"StagnationThreshold": {5, 200},
	"TargetPopulation":    {10, 1000},
	"MinPopulation":       {10, 500},
	"MaxPopulation":       {50, 2000},
	"DecayHalfLife":       {1, 500},
	"SimilarityThreshold": {0.0, 1.0},
	"RepeatMultiplier":    {0.01, 5.0},
	"ElitismRate":         {0.0, 0.5},
	"CullRatio":           {0.1, 0.8},
	"EliteBreedRatio":     {0.0, 1.0},
	"AverageBreedRatio":   {0.0, 1.0},
	"WeakBreedRatio":      {0.0, 1.0},
	"MetaMutationRate":    {0.001, 0.5},
	"MetaCrossoverRate":   {0.0, 1.0},
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RandomParams draws a uniform-random MetaParams within every field's
// validated range.
func RandomParams(rng *rand.Rand) MetaParams {
	r := func(name string) float64 {
		rr := fieldRanges[name]
		return rr.min + rng.Float64()*(rr.max-rr.min)
	}
	return MetaParams{
		MutationRate:        r("MutationRate"),
		CrossoverRate:       r("CrossoverRate"),
		TournamentSize:      r("TournamentSize"),
		ExplorationFactor:   r("ExplorationFactor"),
		StagnationThreshold: r("StagnationThreshold"),
		TargetPopulation:    r("TargetPopulation"),
		MinPopulation:       r("MinPopulation"),
		MaxPopulation:       r("MaxPopulation"),
		DecayHalfLife:       r("DecayHalfLife"),
		SimilarityThreshold: r("SimilarityThreshold"),
		RepeatMultiplier:    r("RepeatMultiplier"),
		ElitismRate:         r("ElitismRate"),
		CullRatio:           r("CullRatio"),
		EliteBreedRatio:     r("EliteBreedRatio"),
		AverageBreedRatio:   r("AverageBreedRatio"),
		WeakBreedRatio:      r("WeakBreedRatio"),
		MetaMutationRate:    r("MetaMutationRate"),
		MetaCrossoverRate:   r("MetaCrossoverRate"),
	}
}

// Validate clamps every field into its documented range in place, and
// ensures MinPopulation <= MaxPopulation so callers can clamp
// TargetPopulation between them without flipping the bounds.
func (p *MetaParams) Validate() {
	p.MutationRate = clamp(p.MutationRate, fieldRanges["MutationRate"].min, fieldRanges["MutationRate"].max)
	p.CrossoverRate = clamp(p.CrossoverRate, fieldRanges["CrossoverRate"].min, fieldRanges["CrossoverRate"].max)
	p.TournamentSize = clamp(p.TournamentSize, fieldRanges["TournamentSize"].min, fieldRanges["TournamentSize"].max)
	p.ExplorationFactor = clamp(p.ExplorationFactor, fieldRanges["ExplorationFactor"].min, fieldRanges["ExplorationFactor"].max)
	p.StagnationThreshold = clamp(p.StagnationThreshold, fieldRanges["StagnationThreshold"].min, fieldRanges["StagnationThreshold"].max)
	p.TargetPopulation = clamp(p.TargetPopulation, fieldRanges["TargetPopulation"].min, fieldRanges["TargetPopulation"].max)
	p.MinPopulation = clamp(p.MinPopulation, fieldRanges["MinPopulation"].min, fieldRanges["MinPopulation"].max)
	p.MaxPopulation = clamp(p.MaxPopulation, fieldRanges["MaxPopulation"].min, fieldRanges["MaxPopulation"].max)
	if p.MinPopulation > p.MaxPopulation {
		p.MinPopulation, p.MaxPopulation = p.MaxPopulation, p.MinPopulation
	}
	p.DecayHalfLife = clamp(p.DecayHalfLife, fieldRanges["DecayHalfLife"].min, fieldRanges["DecayHalfLife"].max)
	p.SimilarityThreshold = clamp(p.SimilarityThreshold, fieldRanges["SimilarityThreshold"].min, fieldRanges["SimilarityThreshold"].max)
	p.RepeatMultiplier = clamp(p.RepeatMultiplier, fieldRanges["RepeatMultiplier"].min, fieldRanges["RepeatMultiplier"].max)
	p.ElitismRate = clamp(p.ElitismRate, fieldRanges["ElitismRate"].min, fieldRanges["ElitismRate"].max)
	p.CullRatio = clamp(p.CullRatio, fieldRanges["CullRatio"].min, fieldRanges["CullRatio"].max)
	p.EliteBreedRatio = clamp(p.EliteBreedRatio, fieldRanges["EliteBreedRatio"].min, fieldRanges["EliteBreedRatio"].max)
	p.AverageBreedRatio = clamp(p.AverageBreedRatio, fieldRanges["AverageBreedRatio"].min, fieldRanges["AverageBreedRatio"].max)
	p.WeakBreedRatio = clamp(p.WeakBreedRatio, fieldRanges["WeakBreedRatio"].min, fieldRanges["WeakBreedRatio"].max)
	p.MetaMutationRate = clamp(p.MetaMutationRate, fieldRanges["MetaMutationRate"].min, fieldRanges["MetaMutationRate"].max)
	p.MetaCrossoverRate = clamp(p.MetaCrossoverRate, fieldRanges["MetaCrossoverRate"].min, fieldRanges["MetaCrossoverRate"].max)
}

// Mutate perturbs each field independently with probability rate by
// multiplying it by 1+U(-0.1,+0.1), then re-validates every field into its
// declared range.
func Mutate(rng *rand.Rand, p *MetaParams, rate float64) error {
	if rng == nil {
		return fmt.Errorf("%w: rng", ecerr.ErrNullArgument)
	}
	jitter := func(name string, v float64) float64 {
		if rng.Float64() >= rate {
			return v
		}
		return v * (1 + (rng.Float64()*0.2 - 0.1))
	}
	p.MutationRate = jitter("MutationRate", p.MutationRate)
	p.CrossoverRate = jitter("CrossoverRate", p.CrossoverRate)
	p.TournamentSize = jitter("TournamentSize", p.TournamentSize)
	p.ExplorationFactor = jitter("ExplorationFactor", p.ExplorationFactor)
	p.StagnationThreshold = jitter("StagnationThreshold", p.StagnationThreshold)
	p.TargetPopulation = jitter("TargetPopulation", p.TargetPopulation)
	p.MinPopulation = jitter("MinPopulation", p.MinPopulation)
	p.MaxPopulation = jitter("MaxPopulation", p.MaxPopulation)
	p.DecayHalfLife = jitter("DecayHalfLife", p.DecayHalfLife)
	p.SimilarityThreshold = jitter("SimilarityThreshold", p.SimilarityThreshold)
	p.RepeatMultiplier = jitter("RepeatMultiplier", p.RepeatMultiplier)
	p.ElitismRate = jitter("ElitismRate", p.ElitismRate)
	p.CullRatio = jitter("CullRatio", p.CullRatio)
	p.EliteBreedRatio = jitter("EliteBreedRatio", p.EliteBreedRatio)
	p.AverageBreedRatio = jitter("AverageBreedRatio", p.AverageBreedRatio)
	p.WeakBreedRatio = jitter("WeakBreedRatio", p.WeakBreedRatio)
	p.MetaMutationRate = jitter("MetaMutationRate", p.MetaMutationRate)
	p.MetaCrossoverRate = jitter("MetaCrossoverRate", p.MetaCrossoverRate)
	p.Validate()
	return nil
}
