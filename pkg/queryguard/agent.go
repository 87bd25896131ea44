package queryguard

import (
	"context"
	"fmt"

	"github.com/enrollkit/enrollkit/pkg/ports"
)

// Answer is the end-to-end result of a natural-language graph query.
type Answer struct {
	Question string           `json:"question"`
	Query    string           `json:"query,omitempty"`
	Records  []map[string]any `json:"records,omitempty"`

	// Refused carries the safe-failure reason when translation exhausted
	// its retries. The question was not executed.
	Refused string `json:"refused,omitempty"`
}

// Agent pairs the translator with the execution collaborator. Only a query
// that passed validation is ever handed to the executor.
type Agent struct {
	translator *Translator
	exec       ports.QueryExecutor
}

// NewAgent creates a query agent.
func NewAgent(translator *Translator, exec ports.QueryExecutor) *Agent {
	return &Agent{translator: translator, exec: exec}
}

// Ask translates and executes the question. Translation failures are
// reported as a refusal, not an error; execution faults are errors and are
// not retried. Without an executor the validated query is returned as-is
// for the caller to run.
func (a *Agent) Ask(ctx context.Context, question string) (*Answer, error) {
	result, err := a.translator.Translate(ctx, question)
	if err != nil {
		return nil, err
	}
	if !result.Safe {
		return &Answer{Question: question, Refused: result.Reason}, nil
	}
	if a.exec == nil {
		return &Answer{Question: question, Query: result.Query}, nil
	}

	records, err := a.exec.Execute(ctx, result.Query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	return &Answer{Question: question, Query: result.Query, Records: records}, nil
}
