package main

import (
	"context"
	"fmt"
	"math"

	"evocore/internal/genome"
)

// benchmarkFitness returns a named synthetic fitness function, mirroring the
// teacher's built-in --scape registry (xor, flatland, ...).
func benchmarkFitness(name string) (func(context.Context, genome.Genome, any) (float64, error), error) {
	switch name {
	case "sphere":
		return sphereFitness, nil
	case "rastrigin":
		return rastriginFitness, nil
	default:
		return nil, fmt.Errorf("unknown benchmark: %s", name)
	}
}

func toCoords(g genome.Genome) []float64 {
	bytes := g.Bytes()
	coords := make([]float64, len(bytes))
	for i, b := range bytes {
		coords[i] = (float64(b)/255.0)*2 - 1
	}
	return coords
}

func sphereFitness(_ context.Context, g genome.Genome, _ any) (float64, error) {
	sum := 0.0
	for _, x := range toCoords(g) {
		sum += x * x
	}
	return -sum, nil
}

// rastriginFitness scores the negated Rastrigin function, a standard
// multimodal benchmark with many local optima around the global minimum.
func rastriginFitness(_ context.Context, g genome.Genome, _ any) (float64, error) {
	coords := toCoords(g)
	const a = 10.0
	sum := a * float64(len(coords))
	for _, x := range coords {
		v := x * 5.12
		sum += v*v - a*math.Cos(2*math.Pi*v)
	}
	return -sum, nil
}
