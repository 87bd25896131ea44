package domain

import (
	"fmt"
	"sort"
	"strings"
)

// TransitionTable maps (step, outcome) to the next step. The escalation
// override (error count exceeding the bound routes to manual review) is
// applied by the engine on top of the table.
type TransitionTable map[Step]map[Outcome]Step

// Next resolves the transition for a step and outcome.
func (t TransitionTable) Next(step Step, outcome Outcome) (Step, bool) {
	row, ok := t[step]
	if !ok {
		return "", false
	}
	next, ok := row[outcome]
	return next, ok
}

// Steps returns every step the table mentions, sorted for stable output.
func (t TransitionTable) Steps() []Step {
	seen := make(map[Step]bool)
	for from, row := range t {
		seen[from] = true
		for _, to := range row {
			seen[to] = true
		}
	}
	steps := make([]Step, 0, len(seen))
	for s := range seen {
		steps = append(steps, s)
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i] < steps[j] })
	return steps
}

// Validate checks the table at startup: every non-terminal step must have an
// entry for every outcome, and terminal steps must have no outgoing edges.
func (t TransitionTable) Validate() error {
	outcomes := []Outcome{OutcomeSuccess, OutcomeFailure, OutcomePending}
	var problems []string

	for _, step := range t.Steps() {
		row, hasRow := t[step]
		if step.Terminal() {
			if hasRow && len(row) > 0 {
				problems = append(problems, fmt.Sprintf("terminal step %s has outgoing transitions", step))
			}
			continue
		}
		if !hasRow {
			problems = append(problems, fmt.Sprintf("step %s has no transitions", step))
			continue
		}
		for _, outcome := range outcomes {
			if _, ok := row[outcome]; !ok {
				problems = append(problems, fmt.Sprintf("step %s has no transition for outcome %s", step, outcome))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid transition table:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}
