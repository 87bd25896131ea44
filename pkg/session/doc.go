// Package session coordinates concurrent access to workflow checkpoints.
// One session's turn is processed to completion before the next begins;
// different sessions proceed in parallel. An optional distributed locker
// extends the guarantee across process replicas.
package session
