// Package temporal implements the time-bucketed learning store: organic
// mean, weighted mean, least-squares trend, and regime-change detection
// over a chronological ring of buckets per context key.
package temporal

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"evocore/internal/ecerr"
	"evocore/internal/model"
	"evocore/internal/wstat"
	"gonum.org/v1/gonum/stat"
)

// Bucket is one time-bounded aggregation window.
type Bucket struct {
	Start       time.Time
	End         time.Time
	Complete    bool
	Params      wstat.Array
	SampleCount int
	AvgFitness  float64
	BestFitness float64
}

// list is a fixed-capacity, chronologically-ordered ring of buckets.
type list struct {
	buckets  []Bucket
	capacity int
}

// Store maps context keys to a bounded chronological bucket ring.
type Store struct {
	grain      model.BucketGrain
	retention  int
	paramCount int
	lists      map[string]*list
}

// New creates a Store with the given bucket grain, per-key retention
// (ring capacity), and parameter count.
func New(grain model.BucketGrain, retention, paramCount int) (*Store, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("%w: retention must be > 0", ecerr.ErrInvalidArgument)
	}
	if paramCount <= 0 {
		return nil, fmt.Errorf("%w: paramCount must be > 0", ecerr.ErrInvalidArgument)
	}
	return &Store{
		grain:      grain,
		retention:  retention,
		paramCount: paramCount,
		lists:      make(map[string]*list),
	}, nil
}

// FloorToGrain rounds t down to the bucket grain boundary, calendar-aware
// for month/year.
func FloorToGrain(t time.Time, grain model.BucketGrain) time.Time {
	t = t.UTC()
	switch grain {
	case model.GrainMinute:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
	case model.GrainHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	case model.GrainDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case model.GrainWeek:
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(d.Weekday()) + 6) % 7 // Monday-start week
		return d.AddDate(0, 0, -offset)
	case model.GrainMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case model.GrainYear:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	default:
		return t
	}
}

func bucketEnd(start time.Time, grain model.BucketGrain) time.Time {
	switch grain {
	case model.GrainMinute:
		return start.Add(time.Minute)
	case model.GrainHour:
		return start.Add(time.Hour)
	case model.GrainDay:
		return start.AddDate(0, 0, 1)
	case model.GrainWeek:
		return start.AddDate(0, 0, 7)
	case model.GrainMonth:
		return start.AddDate(0, 1, 0)
	case model.GrainYear:
		return start.AddDate(1, 0, 0)
	default:
		return start.Add(time.Minute)
	}
}

func (s *Store) listFor(key string) *list {
	l, ok := s.lists[key]
	if !ok {
		l = &list{capacity: s.retention}
		s.lists[key] = l
	}
	return l
}

// Learn folds one observation into the bucket for t (rounded to the grain),
// creating it if necessary and evicting the oldest bucket if the ring is
// at capacity. Buckets whose end lies more than one grain duration before
// now are marked complete.
func (s *Store) Learn(key string, params []float64, fitness float64, t, now time.Time) error {
	if len(params) != s.paramCount {
		return fmt.Errorf("%w: expected %d params, got %d", ecerr.ErrInvalidArgument, s.paramCount, len(params))
	}
	l := s.listFor(key)
	start := FloorToGrain(t, s.grain)

	var target *Bucket
	for i := range l.buckets {
		if l.buckets[i].Start.Equal(start) {
			target = &l.buckets[i]
			break
		}
	}
	if target == nil {
		if len(l.buckets) >= l.capacity {
			l.buckets = l.buckets[1:]
		}
		l.buckets = append(l.buckets, Bucket{
			Start:       start,
			End:         bucketEnd(start, s.grain),
			Params:      wstat.NewArray(s.paramCount),
			BestFitness: fitness,
		})
		target = &l.buckets[len(l.buckets)-1]
	}

	target.Params.Update(params, nil, fitness)
	target.SampleCount++
	target.AvgFitness += (fitness - target.AvgFitness) / float64(target.SampleCount)
	if fitness > target.BestFitness || target.SampleCount == 1 {
		target.BestFitness = fitness
	}

	grainDuration := bucketEnd(start, s.grain).Sub(start)
	for i := range l.buckets {
		if l.buckets[i].End.Before(now.Add(-grainDuration)) {
			l.buckets[i].Complete = true
		}
	}
	return nil
}

// Buckets returns the chronological bucket ring for key.
func (s *Store) Buckets(key string) []Bucket {
	l, ok := s.lists[key]
	if !ok {
		return nil
	}
	out := make([]Bucket, len(l.buckets))
	copy(out, l.buckets)
	return out
}

// OrganicMean returns the arithmetic mean, across buckets, of each
// parameter's bucket mean — equal weight per time period regardless of
// sample counts. Requires >= 2 buckets.
func (s *Store) OrganicMean(key string) ([]float64, float64, bool) {
	buckets := s.Buckets(key)
	if len(buckets) < 2 {
		return nil, 0, false
	}
	sums := make([]float64, s.paramCount)
	totalCount := 0
	for _, b := range buckets {
		for i := 0; i < s.paramCount; i++ {
			sums[i] += b.Params.At(i).Mean
		}
		totalCount += b.SampleCount
	}
	means := make([]float64, s.paramCount)
	for i := range sums {
		means[i] = sums[i] / float64(len(buckets))
	}
	confidence := confidenceFromCount(totalCount, 10)
	return means, confidence, true
}

func confidenceFromCount(count, maxSamples int) float64 {
	st := wstat.Stats{Count: count}
	return st.Confidence(maxSamples)
}

// WeightedMean merges all bucket distributions, weighted by per-bucket
// sample count, and returns the resulting per-parameter mean.
func (s *Store) WeightedMean(key string) ([]float64, bool) {
	buckets := s.Buckets(key)
	if len(buckets) == 0 {
		return nil, false
	}
	out := make([]float64, s.paramCount)
	totalCount := 0
	for _, b := range buckets {
		for i := 0; i < s.paramCount; i++ {
			out[i] += float64(b.SampleCount) * b.Params.At(i).Mean
		}
		totalCount += b.SampleCount
	}
	if totalCount > 0 {
		for i := range out {
			out[i] /= float64(totalCount)
		}
	}
	return out, true
}

// TrendDirection classifies a slope against the +-0.01 threshold.
type TrendDirection int

const (
	TrendFlat TrendDirection = iota
	TrendUp
	TrendDown
)

// Trend computes, per parameter, the least-squares slope of the sequence
// of bucket means indexed by bucket position (requires >= 3 buckets), via
// gonum's ordinary least squares regression.
func (s *Store) Trend(key string) ([]float64, []TrendDirection, bool) {
	buckets := s.Buckets(key)
	if len(buckets) < 3 {
		return nil, nil, false
	}
	xs := make([]float64, len(buckets))
	for i := range buckets {
		xs[i] = float64(i)
	}
	slopes := make([]float64, s.paramCount)
	directions := make([]TrendDirection, s.paramCount)
	for p := 0; p < s.paramCount; p++ {
		ys := make([]float64, len(buckets))
		for i, b := range buckets {
			ys[i] = b.Params.At(p).Mean
		}
		_, slope := stat.LinearRegression(xs, ys, nil, false)
		slopes[p] = slope
		switch {
		case slope > 0.01:
			directions[p] = TrendUp
		case slope < -0.01:
			directions[p] = TrendDown
		default:
			directions[p] = TrendFlat
		}
	}
	return slopes, directions, true
}

// CompareRecent splits the ring into the last k buckets vs. the rest and
// returns per-parameter drift = mean(recent) - mean(historical).
func (s *Store) CompareRecent(key string, k int) ([]float64, bool) {
	buckets := s.Buckets(key)
	if len(buckets) <= k || k <= 0 {
		return nil, false
	}
	historical := buckets[:len(buckets)-k]
	recent := buckets[len(buckets)-k:]

	drift := make([]float64, s.paramCount)
	for p := 0; p < s.paramCount; p++ {
		var recentSum, histSum float64
		for _, b := range recent {
			recentSum += b.Params.At(p).Mean
		}
		for _, b := range historical {
			histSum += b.Params.At(p).Mean
		}
		drift[p] = recentSum/float64(len(recent)) - histSum/float64(len(historical))
	}
	return drift, true
}

// DetectRegimeChange reports whether any component of CompareRecent's
// drift exceeds threshold in absolute value.
func (s *Store) DetectRegimeChange(key string, recentK int, threshold float64) bool {
	drift, ok := s.CompareRecent(key, recentK)
	if !ok {
		return false
	}
	for _, d := range drift {
		if d < 0 {
			d = -d
		}
		if d > threshold {
			return true
		}
	}
	return false
}

// SampleOrganic builds, per parameter, a Gaussian over (organic mean,
// cross-bucket std blended with the first bucket's sample std) and returns
// one draw per parameter, optionally blended with uniform by exploration.
func (s *Store) SampleOrganic(rng *rand.Rand, key string, exploration float64) ([]float64, bool) {
	means, _, ok := s.OrganicMean(key)
	if !ok {
		return nil, false
	}
	buckets := s.Buckets(key)
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	if exploration < 0 {
		exploration = 0
	}
	if exploration > 1 {
		exploration = 1
	}

	out := make([]float64, s.paramCount)
	for p := 0; p < s.paramCount; p++ {
		var sum, sumSq float64
		for _, b := range buckets {
			m := b.Params.At(p).Mean
			sum += m
			sumSq += m * m
		}
		n := float64(len(buckets))
		crossStd := 0.0
		if n > 1 {
			variance := sumSq/n - (sum/n)*(sum/n)
			if variance > 0 {
				crossStd = math.Sqrt(variance)
			}
		}
		firstStd := buckets[0].Params.At(p).Std()
		std := crossStd + firstStd
		st := wstat.Stats{Mean: means[p], Variance: std * std, SumWeights: 1, Count: 5}
		learned := st.Sample(rng)
		uniform := rng.Float64()
		out[p] = (1-exploration)*learned + exploration*uniform
	}
	return out, true
}

// SampleTrend biases the mean by slope * trendStrength before sampling.
func (s *Store) SampleTrend(rng *rand.Rand, key string, trendStrength float64) ([]float64, bool) {
	weighted, ok := s.WeightedMean(key)
	if !ok {
		return nil, false
	}
	slopes, _, hasTrend := s.Trend(key)
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	out := make([]float64, s.paramCount)
	for p := 0; p < s.paramCount; p++ {
		mean := weighted[p]
		if hasTrend {
			mean += slopes[p] * trendStrength
		}
		st := wstat.Stats{Mean: mean, Variance: 0.01, SumWeights: 1, Count: 5}
		out[p] = st.Sample(rng)
	}
	return out, true
}

// Prune removes any bucket whose End is older than retentionCount*duration
// before now, for every tracked key.
func (s *Store) Prune(now time.Time) {
	for _, l := range s.lists {
		if len(l.buckets) == 0 {
			continue
		}
		grainDuration := l.buckets[0].End.Sub(l.buckets[0].Start)
		cutoff := now.Add(-time.Duration(s.retention) * grainDuration)
		kept := l.buckets[:0]
		for _, b := range l.buckets {
			if b.End.After(cutoff) {
				kept = append(kept, b)
			}
		}
		l.buckets = kept
	}
}
