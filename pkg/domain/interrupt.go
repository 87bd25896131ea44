package domain

import "time"

// InterruptKind tags what a suspension is asking the reviewer for.
type InterruptKind string

const (
	KindPaymentConfirmation InterruptKind = "payment_confirmation"
	KindDormAssignment      InterruptKind = "dorm_assignment"
	KindDocumentReview      InterruptKind = "document_review"
)

// InterruptStatus is the lifecycle state of an interrupt request.
type InterruptStatus string

const (
	InterruptPending  InterruptStatus = "pending"
	InterruptResolved InterruptStatus = "resolved"
	InterruptExpired  InterruptStatus = "expired"
)

// DefaultInterruptTTL is how long a suspension waits for a human decision
// before it auto-resolves with a timeout.
const DefaultInterruptTTL = 24 * time.Hour

// InterruptRequest describes a suspension point: a node declared it cannot
// complete without externally supplied input. It is consumed exactly once
// by the matching resume call, or by timeout expiry.
type InterruptRequest struct {
	RequestID string        `json:"request_id"`
	SessionID string        `json:"session_id"`
	Kind      InterruptKind `json:"kind"`

	// Payload is arbitrary structured detail shown to the reviewer.
	Payload map[string]any `json:"payload,omitempty"`

	// Options enumerates the decisions the reviewer may take.
	Options []string `json:"options,omitempty"`

	Status    InterruptStatus `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	Deadline  time.Time       `json:"deadline"`
}

// Expired reports whether the request's deadline has passed.
func (r *InterruptRequest) Expired(now time.Time) bool {
	return !r.Deadline.IsZero() && now.After(r.Deadline)
}

// Decision is the externally supplied input that resumes a suspended
// workflow. Choice is matched against the request's Options; nodes
// additionally understand the synthetic choices DecisionTimeout and
// DecisionAbandon.
type Decision struct {
	RequestID string  `json:"request_id" mapstructure:"request_id"`
	Choice    string  `json:"choice" mapstructure:"choice"`
	Amount    float64 `json:"amount,omitempty" mapstructure:"amount"`
	Dorm      string  `json:"dorm,omitempty" mapstructure:"dorm"`
	Comment   string  `json:"comment,omitempty" mapstructure:"comment"`
}

// Synthetic and reviewer decision choices.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
	DecisionModify  = "modify"
	DecisionTimeout = "timeout"
	DecisionAbandon = "abandon"
)
