// Package queryguard turns free-form questions into validated, read-only
// graph queries. Candidates come from an opaque text-generation
// collaborator and are checked against a deny/allow policy; validation
// failures trigger bounded regeneration, and an unvalidated query is never
// executed.
package queryguard
