package persist

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"evocore/internal/ctxstore"
	"evocore/internal/ecerr"
	"evocore/internal/wstat"
)

// jsonParamStat mirrors one parameter's persisted weighted-stat fields.
type jsonParamStat struct {
	Mean       float64 `json:"mean"`
	Variance   float64 `json:"variance"`
	SumWeights float64 `json:"sum_weights"`
	Count      int     `json:"count"`
}

// jsonContextEntry mirrors one context's persisted record.
type jsonContextEntry struct {
	Key              string          `json:"key"`
	Params           []jsonParamStat `json:"params"`
	Confidence       float64         `json:"confidence"`
	AvgFitness       float64         `json:"avg_fitness"`
	BestFitness      float64         `json:"best_fitness"`
	TotalExperiences int             `json:"total_experiences"`
	FirstUpdate      time.Time       `json:"first_update"`
	LastUpdate       time.Time       `json:"last_update"`
}

// jsonDimension mirrors one declared dimension.
type jsonDimension struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// jsonDocument is the full human-readable mirror of the EVCX binary format.
type jsonDocument struct {
	Version    int                `json:"version"`
	Dimensions []jsonDimension    `json:"dimensions"`
	ParamCount int                `json:"param_count"`
	Contexts   []jsonContextEntry `json:"contexts"`
}

// SaveJSON writes a human-readable mirror of store to w.
func SaveJSON(w io.Writer, store *ctxstore.Store) error {
	doc := jsonDocument{
		Version:    int(BinaryVersion),
		ParamCount: store.ParamCount(),
	}
	for _, d := range store.Dimensions() {
		doc.Dimensions = append(doc.Dimensions, jsonDimension{Name: d.Name, Values: d.Values})
	}
	for _, key := range store.Keys() {
		entry, ok := store.GetByKey(key)
		if !ok {
			continue
		}
		jsonEntry := jsonContextEntry{
			Key:              entry.Key,
			Confidence:       entry.Confidence,
			AvgFitness:       entry.AvgFitness,
			BestFitness:      entry.BestFitness,
			TotalExperiences: entry.TotalExperiences,
			FirstUpdate:      entry.FirstUpdate,
			LastUpdate:       entry.LastUpdate,
		}
		for i := 0; i < entry.Params.Len(); i++ {
			stat := entry.Params.At(i)
			jsonEntry.Params = append(jsonEntry.Params, jsonParamStat{
				Mean:       stat.Mean,
				Variance:   stat.Variance,
				SumWeights: stat.SumWeights,
				Count:      stat.Count,
			})
		}
		doc.Contexts = append(doc.Contexts, jsonEntry)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// LoadJSON reconstructs a Store from the document SaveJSON writes, giving
// the JSON mirror a faithful round-trip rather than leaving it a silent
// write-only format.
func LoadJSON(r io.Reader) (*ctxstore.Store, error) {
	var doc jsonDocument
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ecerr.ErrFormat, err)
	}

	dims := make([]ctxstore.Dimension, len(doc.Dimensions))
	for i, d := range doc.Dimensions {
		dims[i] = ctxstore.Dimension{Name: d.Name, Values: d.Values}
	}
	store, err := ctxstore.New(dims, doc.ParamCount)
	if err != nil {
		return nil, err
	}

	for _, entry := range doc.Contexts {
		params := wstat.NewArray(len(entry.Params))
		for i, p := range entry.Params {
			params.SetAt(i, wstat.FromComponents(p.Mean, p.Variance, p.SumWeights, p.Count))
		}
		store.Restore(ctxstore.Stats{
			Key:              entry.Key,
			Params:           params,
			Confidence:       entry.Confidence,
			AvgFitness:       entry.AvgFitness,
			BestFitness:      entry.BestFitness,
			TotalExperiences: entry.TotalExperiences,
			FirstUpdate:      entry.FirstUpdate,
			LastUpdate:       entry.LastUpdate,
		})
	}
	return store, nil
}
