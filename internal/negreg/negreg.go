// Package negreg implements the negative-learning registry: a bounded
// record of past failures, keyed by genome byte-similarity, used to
// penalize candidates that resemble known-bad regions of the search
// space.
package negreg

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"evocore/internal/ecerr"
	"evocore/internal/genome"
	"evocore/internal/model"
)

const (
	defaultCapacity         = 1000
	defaultSimilarity       = 0.8
	defaultDecayHalfLife    = 50 // generations
	defaultRepeatMultiplier = 0.5
)

// Thresholds bins a raw fitness delta into a Severity (default thresholds:
// -0.10/-0.25/-0.50/-0.90).
type Thresholds struct {
	Mild     float64
	Moderate float64
	Severe   float64
	Fatal    float64
}

// DefaultThresholds returns the default severity boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{Mild: -0.10, Moderate: -0.25, Severe: -0.50, Fatal: -0.90}
}

// Classify maps a fitness delta (candidate minus baseline/expected) to a
// Severity; deltas above Mild are SeverityNone, and each boundary value
// belongs to its own (more severe) level.
func (t Thresholds) Classify(delta float64) model.Severity {
	switch {
	case delta <= t.Fatal:
		return model.SeverityFatal
	case delta <= t.Severe:
		return model.SeveritySevere
	case delta <= t.Moderate:
		return model.SeverityModerate
	case delta <= t.Mild:
		return model.SeverityMild
	default:
		return model.SeverityNone
	}
}

// Record is one stored failure: a genome snapshot, its classified
// severity, and a decaying penalty.
type Record struct {
	ID          string
	Pattern     []byte
	Severity    model.Severity
	Penalty     float64
	RepeatCount int
	CreatedGen  int
	LastSeenGen int
}

// Registry is the bounded, similarity-matched failure store.
type Registry struct {
	capacity         int
	similarity       float64
	thresholds       Thresholds
	halfLife         int
	repeatMultiplier float64
	records          []Record
}

// New constructs a Registry with default capacity, similarity threshold,
// severity thresholds, and repeat-escalation multiplier.
func New() *Registry {
	return &Registry{
		capacity:         defaultCapacity,
		similarity:       defaultSimilarity,
		thresholds:       DefaultThresholds(),
		halfLife:         defaultDecayHalfLife,
		repeatMultiplier: defaultRepeatMultiplier,
	}
}

// WithCapacity overrides the default bounded-array capacity.
func (r *Registry) WithCapacity(capacity int) *Registry {
	r.capacity = capacity
	return r
}

// WithSimilarityThreshold overrides the default match threshold in [0,1].
func (r *Registry) WithSimilarityThreshold(threshold float64) *Registry {
	r.similarity = threshold
	return r
}

// WithThresholds overrides the default severity boundaries.
func (r *Registry) WithThresholds(t Thresholds) *Registry {
	r.thresholds = t
	return r
}

// WithDecayHalfLife overrides the default penalty decay half-life, in
// generations.
func (r *Registry) WithDecayHalfLife(generations int) *Registry {
	r.halfLife = generations
	return r
}

// WithRepeatMultiplier overrides the default repeat-escalation multiplier
// applied in RecordFailure.
func (r *Registry) WithRepeatMultiplier(multiplier float64) *Registry {
	r.repeatMultiplier = multiplier
	return r
}

// similarityScore returns the fraction of matching bytes over the shorter
// genome's length (1.0 for two empty genomes).
func similarityScore(a, b []byte) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 1.0
	}
	matches := 0
	for i := 0; i < n; i++ {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(n)
}

// findMatch returns the index of the first record whose pattern matches
// candidate above the similarity threshold, or -1.
func (r *Registry) findMatch(candidate []byte) int {
	for i := range r.records {
		if similarityScore(r.records[i].Pattern, candidate) >= r.similarity {
			return i
		}
	}
	return -1
}

// RecordFailure classifies delta's severity and either escalates an
// existing similar record's repeat count/penalty or appends a new one,
// pruning the oldest-lowest-penalty record first if at capacity. Deltas
// classifying as SeverityNone are not recorded.
func (r *Registry) RecordFailure(g genome.Genome, delta float64, generation int) (Record, error) {
	severity := r.thresholds.Classify(delta)
	if severity == model.SeverityNone {
		return Record{}, nil
	}

	pattern := append([]byte(nil), g.Bytes()...)
	if idx := r.findMatch(pattern); idx >= 0 {
		rec := &r.records[idx]
		rec.RepeatCount++
		rec.LastSeenGen = generation
		if severity > rec.Severity {
			rec.Severity = severity
		}
		rec.Penalty += r.repeatMultiplier * float64(rec.RepeatCount) / 10
		if rec.Penalty > 1 {
			rec.Penalty = 1
		}
		if severity.InitialPenalty() > rec.Penalty {
			rec.Penalty = severity.InitialPenalty()
		}
		return *rec, nil
	}

	if len(r.records) >= r.capacity {
		r.prune(1)
	}
	if len(r.records) >= r.capacity {
		return Record{}, fmt.Errorf("%w: negative registry at capacity (%d)", ecerr.ErrFull, r.capacity)
	}

	rec := Record{
		ID:          uuid.NewString(),
		Pattern:     pattern,
		Severity:    severity,
		Penalty:     severity.InitialPenalty(),
		RepeatCount: 1,
		CreatedGen:  generation,
		LastSeenGen: generation,
	}
	r.records = append(r.records, rec)
	return rec, nil
}

// CheckPenalty returns the highest penalty among records matching
// candidate, and whether any match was found.
func (r *Registry) CheckPenalty(candidate []byte) (float64, bool) {
	best := 0.0
	found := false
	for i := range r.records {
		if similarityScore(r.records[i].Pattern, candidate) >= r.similarity {
			found = true
			if r.records[i].Penalty > best {
				best = r.records[i].Penalty
			}
		}
	}
	return best, found
}

// IsForbidden reports whether candidate matches a record with
// SeverityFatal and a penalty at or above 0.95.
func (r *Registry) IsForbidden(candidate []byte) bool {
	for i := range r.records {
		if r.records[i].Severity == model.SeverityFatal && r.records[i].Penalty >= 0.95 &&
			similarityScore(r.records[i].Pattern, candidate) >= r.similarity {
			return true
		}
	}
	return false
}

// AdjustFitness scales fitness down by (1 - penalty) for the strongest
// matching record, leaving it unchanged when there is no match.
func (r *Registry) AdjustFitness(candidate []byte, fitness float64) float64 {
	penalty, found := r.CheckPenalty(candidate)
	if !found {
		return fitness
	}
	return fitness * (1 - penalty)
}

// Decay applies exponential decay to every record's penalty based on
// elapsed generations since it was last seen, using the configured
// half-life.
func (r *Registry) Decay(currentGen int) {
	if r.halfLife <= 0 {
		return
	}
	lambda := math.Ln2 / float64(r.halfLife)
	for i := range r.records {
		elapsed := currentGen - r.records[i].LastSeenGen
		if elapsed <= 0 {
			continue
		}
		r.records[i].Penalty *= math.Exp(-lambda * float64(elapsed))
	}
}

// prune removes the n lowest-penalty records (oldest first on ties).
func (r *Registry) prune(n int) {
	for ; n > 0 && len(r.records) > 0; n-- {
		worst := 0
		for i := 1; i < len(r.records); i++ {
			if r.records[i].Penalty < r.records[worst].Penalty ||
				(r.records[i].Penalty == r.records[worst].Penalty && r.records[i].CreatedGen < r.records[worst].CreatedGen) {
				worst = i
			}
		}
		r.records = append(r.records[:worst], r.records[worst+1:]...)
	}
}

// Prune removes every record whose penalty has decayed below minPenalty.
func (r *Registry) Prune(minPenalty float64) int {
	kept := r.records[:0]
	removed := 0
	for _, rec := range r.records {
		if rec.Penalty >= minPenalty {
			kept = append(kept, rec)
		} else {
			removed++
		}
	}
	r.records = kept
	return removed
}

// Len returns the current number of stored records.
func (r *Registry) Len() int { return len(r.records) }

// Snapshot returns a defensive copy of all stored records.
func (r *Registry) Snapshot() []Record {
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Restore replaces the registry's contents with records, bypassing
// RecordFailure's escalation logic (used by persistence load paths).
func (r *Registry) Restore(records []Record) {
	r.records = append([]Record(nil), records...)
}
