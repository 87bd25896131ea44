package ports

import "context"

// TextGenerator is the opaque text-generation collaborator. Potentially slow
// and fallible; used by queryguard to produce candidate queries.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// QueryExecutor runs a validated read-only query against the graph store.
// Implementations must refuse anything not pre-validated by queryguard.
type QueryExecutor interface {
	Execute(ctx context.Context, query string) ([]map[string]any, error)
}

// Directory looks up enrollment records during identity verification.
type Directory interface {
	// Lookup returns whether the student exists and matches the given name.
	Lookup(ctx context.Context, studentID, name string) (bool, error)
}
