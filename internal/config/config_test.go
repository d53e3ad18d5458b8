package config

import (
	"strings"
	"testing"
)

const sample = `
; top comment
# another comment

[evolution]
population_size = 200
mutation_rate = 0.05
use_accelerator = true

[storage]
backend = sqlite
path = run.evcx
`

func TestParseSectionsAndValues(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	n, err := cfg.GetInt("evolution", "population_size", 0)
	if err != nil || n != 200 {
		t.Fatalf("GetInt = %d, %v; want 200", n, err)
	}
	f, err := cfg.GetFloat("evolution", "mutation_rate", 0)
	if err != nil || f != 0.05 {
		t.Fatalf("GetFloat = %v, %v; want 0.05", f, err)
	}
	b, err := cfg.GetBool("evolution", "use_accelerator", false)
	if err != nil || !b {
		t.Fatalf("GetBool = %v, %v; want true", b, err)
	}
	if got := cfg.GetString("storage", "backend", ""); got != "sqlite" {
		t.Fatalf("GetString = %q, want sqlite", got)
	}
}

func TestGetFallsBackWhenAbsent(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	n, err := cfg.GetInt("evolution", "missing_key", 42)
	if err != nil || n != 42 {
		t.Fatalf("GetInt fallback = %d, %v; want 42", n, err)
	}
}

func TestParseRejectsMalformedLine(t *testing.T) {
	if _, err := Parse(strings.NewReader("[a]\nnotakeyvalue\n")); err == nil {
		t.Fatalf("expected error for line without '='")
	}
}
