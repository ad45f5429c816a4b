// Package replica provides opaque stable identifier helpers for actors
// and nodes. The CRDT and storage layers never require this package:
// every type accepts a plain string. It exists so applications that
// don't already have a natural actor id can mint one consistently.
package replica

import "github.com/google/uuid"

// NewID returns a fresh random identifier suitable for use as a CRDT
// actor, an OR-Set replica tag namespace, or an event log's node_id.
func NewID() string {
	return uuid.NewString()
}
