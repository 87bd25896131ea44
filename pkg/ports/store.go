package ports

import (
	"context"

	"github.com/enrollkit/enrollkit/pkg/domain"
)

// CheckpointStore defines the interface for persisting workflow state.
// It is what makes suspend/resume durable: all suspension state round-trips
// through the store rather than living only in memory.
type CheckpointStore interface {
	// Save persists the state for a given session ID.
	Save(ctx context.Context, sessionID string, state *domain.WorkflowState) error

	// Load retrieves the state for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.WorkflowState, error)

	// Delete removes the state for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all live sessions.
	List(ctx context.Context) ([]string, error)
}
