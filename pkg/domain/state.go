package domain

import "time"

// Step identifies a workflow state.
type Step string

const (
	StepInfoCollection Step = "info_collection"
	StepVerification   Step = "verification"
	StepPayment        Step = "payment"
	StepAssignment     Step = "assignment"
	StepCompleted      Step = "completed"
	StepManualReview   Step = "manual_review"
)

// Terminal reports whether the step has no outgoing transitions.
func (s Step) Terminal() bool {
	return s == StepCompleted || s == StepManualReview
}

// Outcome classifies the result of a node attempt. A node reports what
// happened; it never decides the next step itself.
type Outcome string

const (
	// OutcomeSuccess advances the workflow to the next step.
	OutcomeSuccess Outcome = "success"

	// OutcomeFailure re-enters the current (or a remediation) step and
	// counts toward the escalation bound.
	OutcomeFailure Outcome = "failure"

	// OutcomePending re-enters the current step without counting as an
	// error. Used when a condition is simply not yet met (e.g. payment
	// still unconfirmed), as opposed to rejected.
	OutcomePending Outcome = "pending"
)

// Profile holds the business attributes collected during check-in.
// Fields are zero-valued until the corresponding step sets them.
type Profile struct {
	StudentID        string  `json:"student_id,omitempty"`
	StudentName      string  `json:"student_name,omitempty"`
	Department       string  `json:"department,omitempty"`
	IdentityVerified bool    `json:"identity_verified,omitempty"`
	PaymentConfirmed bool    `json:"payment_confirmed,omitempty"`
	PaymentAmount    float64 `json:"payment_amount,omitempty"`
	Dorm             string  `json:"dorm,omitempty"`
}

// WorkflowState is the single mutable record threaded through the state
// machine. The copy held by the CheckpointStore is authoritative; the
// in-memory copy used during a turn is a working snapshot.
type WorkflowState struct {
	SessionID   string  `json:"session_id"`
	CurrentStep Step    `json:"current_step"`
	Profile     Profile `json:"profile"`

	// ErrorCount tracks consecutive failed attempts on the current step.
	// Reset to zero on successful progress.
	ErrorCount int `json:"error_count"`

	// Pending describes an outstanding human-in-the-loop request.
	// Non-nil only while the session is suspended.
	Pending *InterruptRequest `json:"pending_suspension,omitempty"`

	// LastResolvedID is the request ID of the most recently resolved
	// suspension, kept to detect duplicate resume calls.
	LastResolvedID string `json:"last_resolved_id,omitempty"`

	// History tracks the path taken through the machine.
	History []Step `json:"history"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewState creates a clean state starting at the given step.
func NewState(sessionID string, start Step) *WorkflowState {
	now := time.Now().UTC()
	return &WorkflowState{
		SessionID:   sessionID,
		CurrentStep: start,
		History:     []Step{start},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone returns a copy safe to mutate without affecting the original.
func (s *WorkflowState) Clone() *WorkflowState {
	if s == nil {
		return nil
	}
	next := *s
	next.History = append([]Step(nil), s.History...)
	if s.Pending != nil {
		pending := *s.Pending
		pending.Payload = copyMap(s.Pending.Payload)
		pending.Options = append([]string(nil), s.Pending.Options...)
		next.Pending = &pending
	}
	return &next
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			out[k] = copyMap(sub)
			continue
		}
		out[k] = v
	}
	return out
}
