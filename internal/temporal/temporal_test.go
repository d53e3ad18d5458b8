package temporal

import (
	"testing"
	"time"

	"evocore/internal/model"
)

func TestFloorToGrainCalendarAware(t *testing.T) {
	ts := time.Date(2026, time.March, 15, 13, 45, 30, 0, time.UTC)
	month := FloorToGrain(ts, model.GrainMonth)
	if month.Day() != 1 || month.Hour() != 0 {
		t.Fatalf("month floor = %v, want first of month midnight", month)
	}
	year := FloorToGrain(ts, model.GrainYear)
	if year.Month() != time.January || year.Day() != 1 {
		t.Fatalf("year floor = %v, want Jan 1", year)
	}
}

func TestLearnCreatesAndAccumulatesBuckets(t *testing.T) {
	s, err := New(model.GrainHour, 24, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	base := time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC)
	if err := s.Learn("k", []float64{1, 2}, 0.5, base, base); err != nil {
		t.Fatalf("Learn: %v", err)
	}
	if err := s.Learn("k", []float64{3, 4}, 0.7, base.Add(10*time.Minute), base.Add(10*time.Minute)); err != nil {
		t.Fatalf("Learn: %v", err)
	}
	buckets := s.Buckets("k")
	if len(buckets) != 1 {
		t.Fatalf("expected both observations folded into 1 bucket, got %d", len(buckets))
	}
	if buckets[0].SampleCount != 2 {
		t.Fatalf("SampleCount = %d, want 2", buckets[0].SampleCount)
	}
}

func TestRingEvictsOldestAtCapacity(t *testing.T) {
	s, err := New(model.GrainHour, 3, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	base := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		if err := s.Learn("k", []float64{float64(i)}, float64(i), ts, ts); err != nil {
			t.Fatalf("Learn %d: %v", i, err)
		}
	}
	buckets := s.Buckets("k")
	if len(buckets) != 3 {
		t.Fatalf("len(buckets) = %d, want 3 (capacity)", len(buckets))
	}
	if !buckets[0].Start.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("oldest surviving bucket = %v, want hour 2", buckets[0].Start)
	}
}

func TestTrendRequiresThreeBuckets(t *testing.T) {
	s, _ := New(model.GrainHour, 10, 1)
	base := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	s.Learn("k", []float64{1}, 1, base, base)
	s.Learn("k", []float64{2}, 1, base.Add(time.Hour), base.Add(time.Hour))
	if _, _, ok := s.Trend("k"); ok {
		t.Fatalf("Trend should require >= 3 buckets")
	}
	s.Learn("k", []float64{3}, 1, base.Add(2*time.Hour), base.Add(2*time.Hour))
	slopes, directions, ok := s.Trend("k")
	if !ok {
		t.Fatalf("Trend should succeed with 3 buckets")
	}
	if directions[0] != TrendUp {
		t.Fatalf("directions[0] = %v, want TrendUp for slope %v", directions[0], slopes[0])
	}
}

func TestDetectRegimeChange(t *testing.T) {
	s, _ := New(model.GrainHour, 10, 1)
	base := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		val := 0.0
		if i >= 3 {
			val = 10.0
		}
		s.Learn("k", []float64{val}, 1, ts, ts)
	}
	if !s.DetectRegimeChange("k", 2, 1.0) {
		t.Fatalf("expected regime change to be detected")
	}
	if s.DetectRegimeChange("k", 2, 100.0) {
		t.Fatalf("expected no regime change with a very high threshold")
	}
}

func TestOrganicMeanRequiresTwoBuckets(t *testing.T) {
	s, _ := New(model.GrainHour, 10, 1)
	base := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	s.Learn("k", []float64{5}, 1, base, base)
	if _, _, ok := s.OrganicMean("k"); ok {
		t.Fatalf("OrganicMean should require >= 2 buckets")
	}
	s.Learn("k", []float64{15}, 1, base.Add(time.Hour), base.Add(time.Hour))
	means, _, ok := s.OrganicMean("k")
	if !ok || means[0] != 10 {
		t.Fatalf("OrganicMean = %v, ok=%v, want 10", means, ok)
	}
}

func TestPruneRemovesOldBuckets(t *testing.T) {
	s, _ := New(model.GrainHour, 10, 1)
	base := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	s.Learn("k", []float64{1}, 1, base, base)
	s.Learn("k", []float64{2}, 1, base.Add(time.Hour), base.Add(time.Hour))
	s.Prune(base.Add(100 * time.Hour))
	if len(s.Buckets("k")) != 0 {
		t.Fatalf("expected all buckets pruned after long gap")
	}
}
