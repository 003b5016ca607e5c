// Package identity derives and resolves effective identities for survey
// schema elements (questions, matrix rows, matrix columns). It is
// intentionally small and dependency-free, and carries the correctness core
// of the whole backend:
//
//   - Derive computes a deterministic content hash for elements that were
//     never assigned a durable identifier at authoring time. The write path
//     (page rendering) and the read path (aggregation) both call Derive and
//     agree on an identity without any shared mutable state.
//   - Resolver builds, per definition snapshot, a multi-key lookup that maps
//     every candidate identifier a stored response may carry (durable id,
//     positional ordinal, content hash) back to the concrete schema element,
//     absorbing definition drift between collection and reporting.
//
// No logging in the library; callers decide how and what to log.
package identity

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// Derive returns the content identity for a schema element: the hex MD5
// digest of the canonical concatenation "{scopeID}-{ordinal}-{text}-{typeTag}".
//
// The digest is a portability contract, not a security boundary: it only has
// to be deterministic across platforms and process restarts, and collision
// resistant enough that sibling elements never alias each other by accident.
// Two calls with identical inputs always return identical output.
func Derive(scopeID string, ordinal int, text, typeTag string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s-%d-%s-%s", scopeID, ordinal, text, typeTag)))
	return hex.EncodeToString(sum[:])
}
