package runtime

import (
	"fmt"

	"github.com/enrollkit/enrollkit/pkg/domain"
)

// missingNodeError indicates the transition table routes to a step that has
// no registered node. Caught at construction; at runtime it means the engine
// was assembled by hand incorrectly.
type missingNodeError struct {
	Step domain.Step
}

func (e *missingNodeError) Error() string {
	return fmt.Sprintf("no node registered for step %s", e.Step)
}
