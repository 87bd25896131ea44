package queryguard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/enrollkit/enrollkit/internal/logging"
	"github.com/enrollkit/enrollkit/pkg/ports"
)

// DefaultMaxRetries bounds how many candidates the translator will generate
// for one question before failing safely.
const DefaultMaxRetries = 3

// systemPrompt constrains the generator to read-only Cypher over the campus
// graph schema. The policy still validates every candidate; the prompt only
// improves the hit rate.
const systemPrompt = `You are a Neo4j Cypher generation assistant.

Translate the user's question into a single read-only Cypher query.

Schema:
- (Student {student_id, name, department})
- (Teacher {teacher_id, name, department})
- (Department {code, name})
- (Course {course_id, name, credit})
- (Student)-[:BELONGS_TO]->(Department)
- (Teacher)-[:WORKS_AT]->(Department)
- (Student)-[:ENROLLED_IN]->(Course)
- (Teacher)-[:TEACHES]->(Course)

Rules:
1. Only MATCH, RETURN, WHERE, WITH, ORDER BY, LIMIT, COUNT, COLLECT, DISTINCT.
2. Never DELETE, DROP, REMOVE, SET, CREATE, MERGE or any schema change.
3. Return only the Cypher query, no explanation.`

// Result is the outcome of one translation attempt sequence.
type Result struct {
	Query   string `json:"query"`
	Safe    bool   `json:"safe"`
	Reason  string `json:"reason,omitempty"`
	Attempt int    `json:"attempt"`
}

// Translator turns a natural-language question into exactly one validated
// read-only query, or fails safely. Retry exists solely to recover from
// generation mistakes; execution faults are not retried here.
type Translator struct {
	gen        ports.TextGenerator
	policy     *Policy
	maxRetries int
	logger     *slog.Logger
}

// Option configures the Translator.
type Option func(*Translator)

// WithMaxRetries overrides the generation retry bound.
func WithMaxRetries(n int) Option {
	return func(t *Translator) {
		if n > 0 {
			t.maxRetries = n
		}
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Translator) { t.logger = logger }
}

// NewTranslator creates a translator over the given generation collaborator.
func NewTranslator(gen ports.TextGenerator, opts ...Option) *Translator {
	t := &Translator{
		gen:        gen,
		policy:     NewPolicy(),
		maxRetries: DefaultMaxRetries,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate produces a validated query for the question. Each attempt
// re-invokes generation; a rejected candidate is never reused. After the
// retry bound the result is a terminal failure and must not be executed.
func (t *Translator) Translate(ctx context.Context, question string) (Result, error) {
	prompt := systemPrompt + "\n\nQuestion: " + question

	var lastReason string
	for attempt := 1; attempt <= t.maxRetries; attempt++ {
		candidate, err := t.gen.Generate(ctx, prompt)
		if err != nil {
			lastReason = fmt.Sprintf("generation failed: %v", err)
			t.logger.Warn("query generation failed", "attempt", attempt, "err", err)
			continue
		}
		candidate = cleanCandidate(candidate)

		safe, reason := t.policy.Validate(candidate)
		if safe {
			return Result{Query: candidate, Safe: true, Attempt: attempt}, nil
		}

		lastReason = reason
		t.logger.Info("candidate query rejected",
			"attempt", attempt,
			"reason", reason,
		)
	}

	return Result{
		Safe:    false,
		Reason:  fmt.Sprintf("no safe query after %d attempts: %s", t.maxRetries, lastReason),
		Attempt: t.maxRetries,
	}, nil
}

// cleanCandidate strips markdown fences and labels generators like to add.
func cleanCandidate(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```cypher")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "Cypher:")
	return strings.TrimSpace(s)
}
