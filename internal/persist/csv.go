package persist

import (
	"fmt"
	"io"

	"evocore/internal/ctxstore"
)

// SaveCSV writes a header of the form:
// context,param_0_mean,param_0_std,...,experiences,confidence,avg_fitness,best_fitness
func SaveCSV(w io.Writer, store *ctxstore.Store) error {
	header := "context"
	for i := 0; i < store.ParamCount(); i++ {
		header += fmt.Sprintf(",param_%d_mean,param_%d_std", i, i)
	}
	header += ",experiences,confidence,avg_fitness,best_fitness\n"
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}

	for _, key := range store.Keys() {
		entry, ok := store.GetByKey(key)
		if !ok {
			continue
		}
		line := csvEscape(entry.Key)
		for i := 0; i < entry.Params.Len(); i++ {
			stat := entry.Params.At(i)
			line += fmt.Sprintf(",%g,%g", stat.Mean, stat.Std())
		}
		line += fmt.Sprintf(",%d,%g,%g,%g\n", entry.TotalExperiences, entry.Confidence, entry.AvgFitness, entry.BestFitness)
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return nil
}

func csvEscape(s string) string {
	for _, r := range s {
		if r == ',' || r == '"' || r == '\n' {
			return fmt.Sprintf("%q", s)
		}
	}
	return s
}
