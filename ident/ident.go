// Package ident generates identifiers for tasks and steps.
package ident

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// New returns a time-ordered unique identifier (UUIDv7). IDs created later
// sort lexically after IDs created earlier, so the task registry can rely on
// ID order matching creation order.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the random source does; fall back to v4
		// rather than returning an empty ID.
		return uuid.NewString()
	}
	return id.String()
}

// Short returns a compact 16-character random hex token for contexts that
// do not need time ordering.
func Short() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()[:16]
	}
	return hex.EncodeToString(b)
}
