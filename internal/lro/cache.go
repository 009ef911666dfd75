// Package lro tracks which project owns a long-running operation so that
// polling and cancel calls land on the credential that started it.
package lro

import "context"

// Cache maps operation names to the project id that created them.
// Implementations must be safe for concurrent use. Lookup misses are normal:
// entries expire, the process may have restarted, or the operation was
// started elsewhere.
type Cache interface {
	// Remember records that op belongs to projectID.
	Remember(ctx context.Context, op, projectID string)
	// Lookup returns the owning project id and whether it is known.
	Lookup(ctx context.Context, op string) (string, bool)
	// Len reports the number of live entries (health reporting).
	Len() int
}
