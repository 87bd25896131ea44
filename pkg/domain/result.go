package domain

// ResultKind tells the caller what a step or resume invocation produced.
type ResultKind string

const (
	// ResultAdvanced means the workflow moved (or self-looped) normally.
	ResultAdvanced ResultKind = "advanced"

	// ResultSuspended means a node requested human input; the workflow is
	// checkpointed and waits for a matching resume.
	ResultSuspended ResultKind = "suspended"

	// ResultTerminal means the workflow reached a sink step this turn.
	ResultTerminal ResultKind = "terminal"
)

// StepResult is the outcome of one engine invocation.
type StepResult struct {
	Kind  ResultKind     `json:"kind"`
	State *WorkflowState `json:"state"`

	// Messages are the user-visible lines produced by the node.
	Messages []string `json:"messages,omitempty"`

	// Interrupt is set when Kind is ResultSuspended.
	Interrupt *InterruptRequest `json:"interrupt,omitempty"`
}
