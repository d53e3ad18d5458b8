package wstat

import (
	"math"
	"math/rand"
	"testing"
)

func TestUpdateMatchesWeightedMean(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	ws := []float64{1, 2, 1, 3, 2}

	var s Stats
	for i := range xs {
		s.Update(xs[i], ws[i])
	}

	var wsum, wx float64
	for i := range xs {
		wsum += ws[i]
		wx += ws[i] * xs[i]
	}
	want := wx / wsum

	if math.Abs(s.Mean-want) > 1e-9*5 {
		t.Fatalf("mean = %v, want %v", s.Mean, want)
	}
	if s.Variance < 0 {
		t.Fatalf("variance must be non-negative, got %v", s.Variance)
	}
}

func TestMergeMatchesSequentialUpdate(t *testing.T) {
	xs := []float64{1, 5, 2, 8, 3, 9, 4}
	ws := []float64{1, 1, 2, 1, 1, 3, 1}

	var sequential Stats
	for i := range xs {
		sequential.Update(xs[i], ws[i])
	}

	var a, b Stats
	mid := len(xs) / 2
	for i := 0; i < mid; i++ {
		a.Update(xs[i], ws[i])
	}
	for i := mid; i < len(xs); i++ {
		b.Update(xs[i], ws[i])
	}
	a.Merge(b)

	if math.Abs(a.Mean-sequential.Mean) > 1e-9*10 {
		t.Fatalf("merged mean %v, want %v", a.Mean, sequential.Mean)
	}
	if math.Abs(a.Variance-sequential.Variance) > 1e-6 {
		t.Fatalf("merged variance %v, want %v", a.Variance, sequential.Variance)
	}
}

func TestWeightFloor(t *testing.T) {
	var s Stats
	s.Update(10, 0)
	if s.SumWeights < minWeight {
		t.Fatalf("weight should be floored to %v, got %v", minWeight, s.SumWeights)
	}
}

func TestSampleFallsBackToMeanWhenStdTiny(t *testing.T) {
	var s Stats
	s.Update(7, 1)
	s.Update(7, 1)
	s.Update(7, 1)
	if got := s.Sample(rand.New(rand.NewSource(1))); got != 7 {
		t.Fatalf("sample = %v, want 7", got)
	}
}

func TestConfidenceSaturates(t *testing.T) {
	var s Stats
	for i := 0; i < 400; i++ {
		s.Update(1, 1)
	}
	if got := s.Confidence(100); got != 1 {
		t.Fatalf("confidence = %v, want 1", got)
	}
}

func TestArraySampleFallsBackUniformBelowThreeSamples(t *testing.T) {
	a := NewArray(2)
	a.Update([]float64{5, 5}, nil, 1)
	lo := []float64{0, 0}
	hi := []float64{10, 10}
	out := a.Sample(rand.New(rand.NewSource(2)), lo, hi, 0)
	if out[0] < 0 || out[0] > 10 {
		t.Fatalf("expected uniform fallback within bounds, got %v", out[0])
	}
}
