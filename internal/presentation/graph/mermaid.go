// Package graph renders the workflow transition table as Mermaid flowchart
// syntax for documentation and debugging.
package graph

import (
	"fmt"
	"strings"

	"github.com/enrollkit/enrollkit/pkg/domain"
)

// Overlay contains dynamic session data to visualize on the graph.
type Overlay struct {
	VisitedSteps []domain.Step
	CurrentStep  domain.Step
}

// GenerateMermaid produces a Mermaid flowchart from a transition table.
// Terminal steps render as circles, suspension-capable steps as
// parallelograms. Self-loops are omitted; they are retry plumbing, not
// flow. Every non-terminal step also gets the implicit escalation edge.
func GenerateMermaid(table domain.TransitionTable, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	steps := table.Steps()

	for _, step := range steps {
		opener, closer := "[", "]"
		switch {
		case step.Terminal():
			opener, closer = "((", "))"
		case step == domain.StepPayment || step == domain.StepAssignment:
			opener, closer = "[/", "/]"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", mermaidID(step), opener, step, closer))
	}

	for _, step := range steps {
		if step.Terminal() {
			continue
		}
		for _, outcome := range []domain.Outcome{domain.OutcomeSuccess, domain.OutcomeFailure, domain.OutcomePending} {
			next, ok := table.Next(step, outcome)
			if !ok || next == step {
				continue
			}
			sb.WriteString(fmt.Sprintf("    %s -- \"%s\" --> %s\n", mermaidID(step), outcome, mermaidID(next)))
		}
		sb.WriteString(fmt.Sprintf("    %s -. \"escalate\" .-> %s\n", mermaidID(step), mermaidID(domain.StepManualReview)))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, step := range overlay.VisitedSteps {
			id := mermaidID(step)
			if !seen[id] && id != "" {
				seen[id] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", id))
			}
		}
		if overlay.CurrentStep != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", mermaidID(overlay.CurrentStep)))
		}
	}

	return sb.String()
}

func mermaidID(step domain.Step) string {
	return strings.ReplaceAll(string(step), "-", "_")
}
