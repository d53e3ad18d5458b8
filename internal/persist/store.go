package persist

import "context"

// Store persists context-store snapshots and negative-registry snapshots
// under a run identifier, with a memory/sqlite backend split.
type Store interface {
	Init(ctx context.Context) error
	SaveContextSnapshot(ctx context.Context, runID string, data []byte) error
	GetContextSnapshot(ctx context.Context, runID string) ([]byte, bool, error)
	SaveNegativeSnapshot(ctx context.Context, runID string, data []byte) error
	GetNegativeSnapshot(ctx context.Context, runID string) ([]byte, bool, error)
}

// DefaultStoreKind returns "memory", the zero-dependency default backend.
func DefaultStoreKind() string {
	return "memory"
}
