package enrollkit

import (
	"context"
	"time"

	"github.com/enrollkit/enrollkit/internal/runtime"
	"github.com/enrollkit/enrollkit/pkg/domain"
)

// Sweep resolves expired suspensions across all sessions. Expired requests
// are otherwise only resolved lazily when their session is next touched;
// the sweep guarantees abandoned sessions still reach a terminal state.
// Returns the number of sessions resolved.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	ids, err := e.sessions.List(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	resolved := 0
	for _, id := range ids {
		swept, err := e.sweepOne(ctx, id, now)
		if err != nil {
			e.logger.Error("sweep failed for session", "session_id", id, "err", err)
			continue
		}
		if swept {
			resolved++
		}
	}
	return resolved, nil
}

func (e *Engine) sweepOne(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	swept := false
	err := e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		state, err := e.store.Load(ctx, sessionID)
		if err != nil {
			if err == domain.ErrSessionNotFound {
				return nil
			}
			return err
		}
		if state.CurrentStep.Terminal() || state.Pending == nil || !state.Pending.Expired(now) {
			return nil
		}

		// Step notices the expired request and auto-resolves it as a timeout.
		sr, err := e.runtime.Step(ctx, state, runtime.Input{})
		if err != nil {
			return err
		}
		if err := e.store.Save(ctx, sessionID, sr.State); err != nil {
			return err
		}
		swept = true
		return nil
	})
	return swept, err
}

// RunSweeper runs Sweep on the given interval until the context is
// cancelled. Intended to be launched as a goroutine next to a server.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := e.Sweep(ctx)
			if err != nil {
				e.logger.Error("sweep failed", "err", err)
				continue
			}
			if n > 0 {
				e.logger.Info("swept expired reviews", "count", n)
			}
		}
	}
}
