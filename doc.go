/*
Package enrollkit is a durable turn-processing engine for student check-in
workflows with human-in-the-loop review.

It drives each session through a fixed state machine (information collection,
identity verification, payment, dorm assignment), persisting a checkpoint
after every turn so sessions survive restarts and review pauses that last
hours or days.

# Concept

Every turn runs through a layered security chain (request budget, length
truncation, sensitive-content blocklist, PII masking) before touching the
workflow. Steps that need a human decision suspend the session: the engine
checkpoints a pending interrupt request with a deadline, and a reviewer
later resumes the session with an approve/reject/modify decision. Repeated
failures on a step escalate the session to manual review instead of looping
forever.

# Usage

	eng, err := enrollkit.New()
	if err != nil {
		log.Fatal(err)
	}

	res, err := eng.Step(ctx, "session-1", "user-1", "My student ID is 2024123456, I'm Li Lei")
	if err != nil {
		log.Fatal(err)
	}
	if res.Suspended {
		// A reviewer decides later:
		_, err = eng.Resume(ctx, "session-1", domain.Decision{
			RequestID: res.Interrupt.RequestID,
			Choice:    domain.DecisionApprove,
		})
	}

Persistence defaults to an in-memory store; pass WithStore and WithLocker
backed by Redis for multi-instance deployments. See pkg/adapters.
*/
package enrollkit
