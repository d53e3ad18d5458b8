package driver

import (
	"context"
	"math/rand"

	"evocore/internal/genome"
)

// Domain lets a caller register domain-specific genome operators as the
// external "Domain registration" interface. When non-nil, the driver
// calls these instead of the generic byte-level operators in package
// genome; fields left nil fall back to the generic behavior.
type Domain struct {
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

func (d *Domain) mutate(rng *rand.Rand, g *genome.Genome, rate float64) error {
	if d != nil && d.Mutate != nil {
		return d.Mutate(rng, g, rate)
	}
	return genome.Mutate(rng, g, rate)
}

func (d *Domain) crossover(rng *rand.Rand, p1, p2 genome.Genome) (genome.Genome, genome.Genome, error) {
	if d != nil && d.Crossover != nil {
		return d.Crossover(rng, p1, p2)
	}
	return genome.Crossover(rng, p1, p2)
}

func (d *Domain) diversity(a, b genome.Genome) float64 {
	if d != nil && d.Diversity != nil {
		return d.Diversity(a, b)
	}
	dist := genome.Distance(a, b)
	size := a.Size()
	if b.Size() > size {
		size = b.Size()
	}
	if size == 0 {
		return 0
	}
	return float64(dist) / float64(size)
}

func (d *Domain) randomInit(rng *rand.Rand, g *genome.Genome) error {
	if d != nil && d.RandomInit != nil {
		return d.RandomInit(rng, g)
	}
	return g.Randomize(rng)
}
