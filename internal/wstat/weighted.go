// Package wstat implements the numerically-stable online weighted
// mean/variance primitive (West's algorithm) used throughout evocore's
// learning layer, plus its fixed-length array variant for tracking one
// stat per evolutionary parameter.
package wstat

import (
	"math"
	"math/rand"
)

// minWeight floors every update weight to avoid division degeneracies.
const minWeight = 1e-4

// Stats holds West's online weighted mean/variance accumulator for a
// single scalar, plus running min/max.
type Stats struct {
	Mean         float64
	Variance     float64
	SumWeights   float64
	M2           float64
	Count        int
	Min          float64
	Max          float64
	SumWeightedX float64
}

// New returns a zero-valued Stats ready for Update.
func New() Stats {
	return Stats{}
}

// Reset clears the accumulator back to its zero state.
func (s *Stats) Reset() {
	*s = Stats{}
}

// Update folds one observation into the accumulator using West's
// recurrence: W' = W + w, delta = x - mean, mean += (w/W')*delta,
// m2 += W*w*delta^2/W'. Weights below minWeight are floored.
func (s *Stats) Update(value, weight float64) {
	if weight < minWeight {
		weight = minWeight
	}
	if s.Count == 0 {
		s.Min = value
		s.Max = value
	} else {
		if value < s.Min {
			s.Min = value
		}
		if value > s.Max {
			s.Max = value
		}
	}

	newSumWeights := s.SumWeights + weight
	delta := value - s.Mean
	if newSumWeights > 0 {
		s.Mean += (weight / newSumWeights) * delta
		s.M2 += s.SumWeights * weight * delta * delta / newSumWeights
	}
	s.SumWeights = newSumWeights
	s.SumWeightedX += weight * value
	s.Count++

	if s.Count >= 2 && s.SumWeights > 0 {
		s.Variance = s.M2 / s.SumWeights
	} else {
		s.Variance = 0
	}
}

// Std returns the standard deviation derived from Variance.
func (s Stats) Std() float64 {
	if s.Variance <= 0 {
		return 0
	}
	return math.Sqrt(s.Variance)
}

// HasData reports whether at least minSamples observations were folded in.
func (s Stats) HasData(minSamples int) bool {
	return s.Count >= minSamples
}

// Confidence returns sqrt(Count/maxSamples), saturating at 1.
func (s Stats) Confidence(maxSamples int) float64 {
	if maxSamples <= 0 {
		return 0
	}
	c := math.Sqrt(float64(s.Count) / float64(maxSamples))
	if c > 1 {
		return 1
	}
	if c < 0 {
		return 0
	}
	return c
}

// Sample draws one Gaussian via Box-Muller using the current (mean, std).
// When std is below minWeight it returns the mean deterministically.
func (s Stats) Sample(rng *rand.Rand) float64 {
	std := s.Std()
	if std < minWeight {
		return s.Mean
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	u1 := rng.Float64()
	u2 := rng.Float64()
	if u1 <= 0 {
		u1 = minWeight
	}
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return s.Mean + std*z
}

// Merge combines other into s using the weighted parallel recurrence:
// m2 = m2a + m2b + wa*wb/(wa+wb) * (meanB-meanA)^2, where wa and wb are the
// two sum_weights. The result is identical to updating s with other's raw
// samples in original order.
func (s *Stats) Merge(other Stats) {
	if other.Count == 0 {
		return
	}
	if s.Count == 0 {
		*s = other
		return
	}

	wa, wb := s.SumWeights, other.SumWeights
	delta := other.Mean - s.Mean
	totalWeight := wa + wb

	var newMean float64
	if totalWeight > 0 {
		newMean = s.Mean + delta*wb/totalWeight
	} else {
		newMean = s.Mean
	}
	newM2 := s.M2 + other.M2
	if totalWeight > 0 {
		newM2 += wa * wb / totalWeight * delta * delta
	}

	s.Mean = newMean
	s.M2 = newM2
	s.SumWeights = totalWeight
	s.Count += other.Count
	s.SumWeightedX += other.SumWeightedX
	if other.Min < s.Min {
		s.Min = other.Min
	}
	if other.Max > s.Max {
		s.Max = other.Max
	}
	if s.Count >= 2 && s.SumWeights > 0 {
		s.Variance = s.M2 / s.SumWeights
	} else {
		s.Variance = 0
	}
}

// Clone returns an independent copy.
func (s Stats) Clone() Stats {
	return s
}

// FromComponents reconstructs a Stats from its persisted components (mean,
// variance, sum_weights, count), as used when deserializing a context or
// temporal store. Min/Max/SumWeightedX are not part of the persisted
// format: Min and Max are set to mean, and SumWeightedX is left zero.
func FromComponents(mean, variance, sumWeights float64, count int) Stats {
	return Stats{
		Mean:       mean,
		Variance:   variance,
		SumWeights: sumWeights,
		M2:         variance * sumWeights,
		Count:      count,
		Min:        mean,
		Max:        mean,
	}
}
