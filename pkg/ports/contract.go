package ports

import (
	"context"
	"testing"
	"time"

	"github.com/enrollkit/enrollkit/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCheckpointStoreContract runs a suite of tests to verify that a
// CheckpointStore implementation adheres to the interface contract.
func RunCheckpointStoreContract(t *testing.T, store CheckpointStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewState(sessionID, domain.StepVerification)
		state.Profile.StudentID = "20240001"
		state.ErrorCount = 2

		err := store.Save(ctx, sessionID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, domain.StepVerification, loaded.CurrentStep)
		assert.Equal(t, "20240001", loaded.Profile.StudentID)
		assert.Equal(t, 2, loaded.ErrorCount)
	})

	t.Run("Pending suspension round-trips", func(t *testing.T) {
		state := domain.NewState(sessionID, domain.StepPayment)
		state.Pending = &domain.InterruptRequest{
			RequestID: "req-1",
			SessionID: sessionID,
			Kind:      domain.KindPaymentConfirmation,
			Status:    domain.InterruptPending,
			Payload:   map[string]any{"amount": 6200.0},
			Options:   []string{domain.DecisionApprove, domain.DecisionReject},
			CreatedAt: time.Now().UTC(),
			Deadline:  time.Now().UTC().Add(domain.DefaultInterruptTTL),
		}

		require.NoError(t, store.Save(ctx, sessionID, state))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		require.NotNil(t, loaded.Pending, "suspension must survive persistence")
		assert.Equal(t, "req-1", loaded.Pending.RequestID)
		assert.Equal(t, domain.KindPaymentConfirmation, loaded.Pending.Kind)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, domain.NewState(sessionID, domain.StepInfoCollection))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewState(id1, domain.StepInfoCollection))
		_ = store.Save(ctx, id2, domain.NewState(id2, domain.StepInfoCollection))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
