// Package ctxstore implements the context-learning store: a keyed mapping
// from a Cartesian product of categorical dimensions to a weighted
// distribution over evolutionary parameters.
//
// The store is keyed by colon-joined dimension values hashed through Go's
// built-in map, which already gives the amortized O(1), auto-resizing
// behavior of a separate-chaining hash table without needing a hand-rolled
// FNV-1a table; the binary format does not hash keys, so it is unaffected
// either way.
package ctxstore

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"evocore/internal/ecerr"
	"evocore/internal/wstat"
)

// Dimension is one user-declared categorical axis of context.
type Dimension struct {
	Name   string
	Values []string
}

// HasValue reports whether v is one of the dimension's enumerated values.
func (d Dimension) HasValue(v string) bool {
	for _, candidate := range d.Values {
		if candidate == v {
			return true
		}
	}
	return false
}

// Stats is the learned record for one context key.
type Stats struct {
	Key              string
	Params           wstat.Array
	Confidence       float64
	FirstUpdate      time.Time
	LastUpdate       time.Time
	TotalExperiences int
	AvgFitness       float64
	BestFitness      float64
}

// Store is a keyed mapping of context key -> Stats, with a fixed set of
// dimensions (appendable) and a fixed parameter count.
type Store struct {
	dimensions []Dimension
	paramCount int
	entries    map[string]*Stats
}

// New creates a Store with the given dimensions (immutable identity, though
// each dimension's value list may grow via AppendDimensionValue) and
// paramCount parameters tracked per context.
func New(dimensions []Dimension, paramCount int) (*Store, error) {
	if paramCount <= 0 {
		return nil, fmt.Errorf("%w: paramCount must be > 0", ecerr.ErrInvalidArgument)
	}
	dims := make([]Dimension, len(dimensions))
	copy(dims, dimensions)
	return &Store{
		dimensions: dims,
		paramCount: paramCount,
		entries:    make(map[string]*Stats),
	}, nil
}

// AppendDimensionValue adds a new enumerated value to dimension idx.
func (s *Store) AppendDimensionValue(idx int, value string) error {
	if idx < 0 || idx >= len(s.dimensions) {
		return fmt.Errorf("%w: dimension index %d", ecerr.ErrInvalidArgument, idx)
	}
	s.dimensions[idx].Values = append(s.dimensions[idx].Values, value)
	return nil
}

// Dimensions returns the declared dimensions.
func (s *Store) Dimensions() []Dimension { return s.dimensions }

// ParamCount returns the number of tracked parameters per context.
func (s *Store) ParamCount() int { return s.paramCount }

// BuildKey joins values with ':' in dimension-declaration order; missing
// values (fewer than len(dimensions)) substitute the empty string.
func BuildKey(dimensions []Dimension, values []string) string {
	parts := make([]string, len(dimensions))
	for i := range dimensions {
		if i < len(values) {
			parts[i] = values[i]
		}
	}
	return strings.Join(parts, ":")
}

// ParseKey is the inverse of BuildKey: it splits on ':' back into a value
// slice. Round-trips exactly when no original value contained ':'.
func ParseKey(key string) []string {
	return strings.Split(key, ":")
}

// ValidateValues rejects any value not present in its dimension's
// enumerated value list.
func (s *Store) ValidateValues(values []string) error {
	for i, v := range values {
		if i >= len(s.dimensions) {
			break
		}
		if v == "" {
			continue
		}
		if !s.dimensions[i].HasValue(v) {
			return fmt.Errorf("%w: value %q not declared for dimension %q", ecerr.ErrInvalidArgument, v, s.dimensions[i].Name)
		}
	}
	return nil
}

// Learn updates the context identified by values with one experience:
// params scored at fitness, weighting each parameter's stats update by
// fitness.
func (s *Store) Learn(values []string, params []float64, fitness float64, now time.Time) error {
	if len(params) != s.paramCount {
		return fmt.Errorf("%w: expected %d params, got %d", ecerr.ErrInvalidArgument, s.paramCount, len(params))
	}
	key := BuildKey(s.dimensions, values)
	entry, ok := s.entries[key]
	if !ok {
		entry = &Stats{
			Key:         key,
			Params:      wstat.NewArray(s.paramCount),
			FirstUpdate: now,
			BestFitness: fitness,
		}
		s.entries[key] = entry
	}

	entry.Params.Update(params, nil, fitness)
	entry.LastUpdate = now
	entry.TotalExperiences++
	entry.AvgFitness += (fitness - entry.AvgFitness) / float64(entry.TotalExperiences)
	if fitness > entry.BestFitness || entry.TotalExperiences == 1 {
		entry.BestFitness = fitness
	}
	entry.Confidence = entry.Params.At(0).Confidence(100)
	return nil
}

// Restore directly installs a fully-formed Stats record, bypassing Learn's
// incremental update semantics. Used by deserializers that already have
// the exact persisted fields and must not re-derive them.
func (s *Store) Restore(entry Stats) {
	cp := entry
	s.entries[entry.Key] = &cp
}

// Get returns the Stats for key (by values), if present.
func (s *Store) Get(values []string) (Stats, bool) {
	key := BuildKey(s.dimensions, values)
	entry, ok := s.entries[key]
	if !ok {
		return Stats{}, false
	}
	return *entry, true
}

// GetByKey returns the Stats for a raw key string.
func (s *Store) GetByKey(key string) (Stats, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return Stats{}, false
	}
	return *entry, true
}

// Sample returns a parameter vector drawn from the context's learned
// distribution; unknown keys return uniform random values in [0,1] per
// parameter.
func (s *Store) Sample(rng *rand.Rand, values []string, exploration float64) []float64 {
	key := BuildKey(s.dimensions, values)
	entry, ok := s.entries[key]
	lo := make([]float64, s.paramCount)
	hi := make([]float64, s.paramCount)
	for i := range hi {
		hi[i] = 1
	}
	if !ok {
		arr := wstat.NewArray(s.paramCount)
		return arr.Sample(rng, lo, hi, 1.0)
	}
	return entry.Params.Sample(rng, lo, hi, exploration)
}

// QueryResult is one row returned by QueryBest.
type QueryResult struct {
	Key   string
	Stats Stats
}

// QueryBest scans all entries, keeps those containing partialMatch as a
// substring of the key (empty partialMatch matches everything) with at
// least minSamples experiences, and returns up to maxResults sorted
// descending by best_fitness.
func (s *Store) QueryBest(partialMatch string, minSamples, maxResults int) []QueryResult {
	results := make([]QueryResult, 0, len(s.entries))
	for key, entry := range s.entries {
		if partialMatch != "" && !strings.Contains(key, partialMatch) {
			continue
		}
		if entry.TotalExperiences < minSamples {
			continue
		}
		results = append(results, QueryResult{Key: key, Stats: *entry})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Stats.BestFitness != results[j].Stats.BestFitness {
			return results[i].Stats.BestFitness > results[j].Stats.BestFitness
		}
		return results[i].Key < results[j].Key
	})
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

// Len returns the number of tracked contexts.
func (s *Store) Len() int { return len(s.entries) }

// Keys returns all tracked context keys, sorted for deterministic output.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
