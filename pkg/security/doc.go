// Package security implements the inbound message pipeline as a
// chain-of-responsibility: budget control, truncation, sensitive-content
// blocking, and PII masking, applied in that fixed order. A rejecting layer
// short-circuits the chain; transform-only layers are reapplied to outbound
// content before it reaches the user.
package security
