package driver

import (
	"context"
	"math/rand"

	"evocore/internal/meta"
	"evocore/internal/negreg"
)

// MetaConfig bundles the outer meta-evolution loop's settings.
type MetaConfig struct {
	GenomeSize         int
	GenerationsPerEval int // inner-loop generations run to score each meta-individual
}

// metaParamsToConfig translates one MetaIndividual's parameters into an
// inner-loop Config, clamping TargetPopulation into [MinPopulation,
// MaxPopulation] to get the EARLY-phase population size and scaling the
// LATE-phase target off the same range.
func metaParamsToConfig(p meta.MetaParams, genomeSize, maxGenerations int) Config {
	cfg := DefaultConfig()

	target := p.TargetPopulation
	if target < p.MinPopulation {
		target = p.MinPopulation
	}
	if target > p.MaxPopulation {
		target = p.MaxPopulation
	}
	cfg.PopulationSize = int(target)
	if cfg.PopulationSize < 2 {
		cfg.PopulationSize = 2
	}
	cfg.FinalPopulationSize = int(p.MinPopulation)
	if cfg.FinalPopulationSize < 2 {
		cfg.FinalPopulationSize = 2
	}

	cfg.GenomeSize = genomeSize
	cfg.MaxGenerations = maxGenerations
	cfg.TournamentK = int(p.TournamentSize)
	cfg.ExperimentationRate = p.ExplorationFactor
	cfg.CrossoverRate = p.CrossoverRate
	cfg.InitialMutationRate = p.MutationRate
	cfg.StagnationThreshold = int(p.StagnationThreshold)
	return cfg
}

// metaParamsToRegistry builds the negative-learning registry one
// meta-individual's run should use, sourced from its own knobs.
func metaParamsToRegistry(p meta.MetaParams) *negreg.Registry {
	return negreg.New().
		WithDecayHalfLife(int(p.DecayHalfLife)).
		WithSimilarityThreshold(p.SimilarityThreshold).
		WithRepeatMultiplier(p.RepeatMultiplier)
}

// RunMetaGeneration evaluates every individual in pop by running a fresh
// inner Driver for metaCfg.GenerationsPerEval generations with that
// individual's translated parameters and registry, records the resulting
// meta-fitness, and evolves pop for the next round.
func RunMetaGeneration(ctx context.Context, pop *meta.MetaPopulation, metaCfg MetaConfig, fitness FitnessFunc, userCtx any, rng *rand.Rand) error {
	for i := 0; i < pop.Len(); i++ {
		ind := pop.At(i)
		cfg := metaParamsToConfig(ind.Params, metaCfg.GenomeSize, metaCfg.GenerationsPerEval)
		reg := metaParamsToRegistry(ind.Params)

		seed := rng.Int63()
		drv, err := New(cfg, fitness, userCtx, seed, WithNegativeRegistry(reg))
		if err != nil {
			return err
		}
		for g := 0; g < metaCfg.GenerationsPerEval; g++ {
			if _, err := drv.RunGeneration(ctx); err != nil {
				return err
			}
		}

		diversity := drv.diversityScore()
		ind.Evaluate(meta.EvaluateOptions{
			BestFitness: drv.population.BestFitness(),
			AvgFitness:  drv.population.AvgFitness(),
			Diversity:   diversity,
			Generations: metaCfg.GenerationsPerEval,
		})
		pop.Set(i, ind)
	}
	pop.Evolve(rng)
	return nil
}
