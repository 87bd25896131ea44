// Package domain contains the core types of the enrollment workflow:
// the state record, the transition table, interrupt requests and
// decisions, result shapes, and the error taxonomy. It has no
// dependencies on adapters or the runtime.
package domain
