package meta

import "sync"

// bucketCount is the number of discretized bins each online-learning axis
// is divided into.
const bucketCount = 20

// emaAlpha is the exponential-moving-average smoothing factor applied to
// each bucket's running fitness estimate.
const emaAlpha = 0.1

// OnlineLearningBuckets tracks, across the whole process (not per-run),
// which mutation-rate and exploration-factor regions have historically
// produced good fitness, via 20 EMA-smoothed buckets per axis. Exposed as
// an explicit owned object rather than a package-level global, per the
// design note that hidden global state should be avoided in favor of a
// caller-held handle.
type OnlineLearningBuckets struct {
	mu sync.RWMutex

	mutationRateEMA  [bucketCount]float64
	mutationRateSeen [bucketCount]bool
	explorationEMA   [bucketCount]float64
	explorationSeen  [bucketCount]bool
}

// NewOnlineLearningBuckets returns an empty bucket set.
func NewOnlineLearningBuckets() *OnlineLearningBuckets {
	return &OnlineLearningBuckets{}
}

func bucketIndex(value, lo, hi float64) int {
	if hi <= lo {
		return 0
	}
	idx := int((value - lo) / (hi - lo) * bucketCount)
	if idx < 0 {
		idx = 0
	}
	if idx >= bucketCount {
		idx = bucketCount - 1
	}
	return idx
}

// RecordMutationRate folds one observed fitness outcome into the bucket
// covering the given mutation rate (assumed in the MutationRate field
// range).
func (b *OnlineLearningBuckets) RecordMutationRate(rate, fitness float64) {
	r := fieldRanges["MutationRate"]
	idx := bucketIndex(rate, r.min, r.max)
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mutationRateSeen[idx] {
		b.mutationRateEMA[idx] = fitness
		b.mutationRateSeen[idx] = true
	} else {
		b.mutationRateEMA[idx] += emaAlpha * (fitness - b.mutationRateEMA[idx])
	}
}

// RecordExplorationFactor folds one observed fitness outcome into the
// bucket covering the given exploration factor.
func (b *OnlineLearningBuckets) RecordExplorationFactor(factor, fitness float64) {
	r := fieldRanges["ExplorationFactor"]
	idx := bucketIndex(factor, r.min, r.max)
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.explorationSeen[idx] {
		b.explorationEMA[idx] = fitness
		b.explorationSeen[idx] = true
	} else {
		b.explorationEMA[idx] += emaAlpha * (fitness - b.explorationEMA[idx])
	}
}

// BestMutationRate returns the midpoint of the highest-EMA mutation-rate
// bucket, and whether any bucket has been observed yet.
func (b *OnlineLearningBuckets) BestMutationRate() (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return bestBucketValue(b.mutationRateEMA[:], b.mutationRateSeen[:], fieldRanges["MutationRate"])
}

// BestExplorationFactor returns the midpoint of the highest-EMA
// exploration-factor bucket, and whether any bucket has been observed yet.
func (b *OnlineLearningBuckets) BestExplorationFactor() (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return bestBucketValue(b.explorationEMA[:], b.explorationSeen[:], fieldRanges["ExplorationFactor"])
}

func bestBucketValue(ema []float64, seen []bool, r paramRange) (float64, bool) {
	best := -1
	for i := range ema {
		if !seen[i] {
			continue
		}
		if best == -1 || ema[i] > ema[best] {
			best = i
		}
	}
	if best == -1 {
		return 0, false
	}
	width := (r.max - r.min) / bucketCount
	return r.min + width*(float64(best)+0.5), true
}
