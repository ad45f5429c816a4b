package crdt

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/nodestate/crdtkit/internal/codec"
)

// NodeID is an RGA position id: the actor that created the node and that
// actor's local counter value at creation time. The zero NodeID
// (Actor: "", Counter: 0) is reserved to mean "head", no node is ever
// assigned Counter 0, since counters are pre-incremented before use.
type NodeID struct {
	Actor   string
	Counter uint64
}

// isHead reports whether id is the sentinel meaning "before the first
// element".
func (id NodeID) isHead() bool { return id == NodeID{} }

// greater implements invariant 4's sibling order: larger counter first,
// then larger actor first.
func (id NodeID) greater(o NodeID) bool {
	if id.Counter != o.Counter {
		return id.Counter > o.Counter
	}
	return id.Actor > o.Actor
}

// rgaNode is one element of the sequence. Nodes transition live ->
// tombstoned exactly once; the transition is final.
type rgaNode[T any] struct {
	ID         NodeID
	Parent     NodeID
	Value      T
	Tombstoned bool
}

// RGA is a Replicated Growable Array CRDT for collaborative sequence
// editing. Nodes are stored in a flat map keyed by id, with parent
// references by id rather than pointer, the parent graph is acyclic by
// construction (each node's parent is a strictly earlier id) so this
// avoids ownership cycles and keeps the structure trivially serializable.
type RGA[T any] struct {
	mu       sync.RWMutex
	actor    string
	counter  uint64
	nodes    map[NodeID]*rgaNode[T]
	children map[NodeID][]NodeID // parent -> child ids, kept sorted by greater()
	order    []NodeID            // cached pre-order traversal, all nodes (tombstoned included)
	dirty    bool
}

// NewRGA creates an empty RGA for the given actor.
func NewRGA[T any](actor string) *RGA[T] {
	return &RGA[T]{
		actor:    actor,
		nodes:    make(map[NodeID]*rgaNode[T]),
		children: make(map[NodeID][]NodeID),
	}
}

// ErrIndexOutOfRange is a bounds error for RGA/Text index operations, a
// programmer error per §7's error taxonomy, not a convergence concern.
var ErrIndexOutOfRange = errors.New("crdt: index out of range")

// InsertAt inserts value so that it becomes the i-th visible element
// (0-based). i must be in [0, Len()]. It returns the new node's id.
func (r *RGA[T]) InsertAt(i int, value T) (NodeID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	visible := r.visibleLocked()
	if i < 0 || i > len(visible) {
		return NodeID{}, fmt.Errorf("%w: insert at %d, length %d", ErrIndexOutOfRange, i, len(visible))
	}

	parent := NodeID{}
	if i > 0 {
		parent = visible[i-1]
	}

	r.counter++
	id := NodeID{Actor: r.actor, Counter: r.counter}
	r.insertNodeLocked(&rgaNode[T]{ID: id, Parent: parent, Value: value})
	return id, nil
}

// RemoveAt tombstones the i-th visible element (0-based).
func (r *RGA[T]) RemoveAt(i int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	visible := r.visibleLocked()
	if i < 0 || i >= len(visible) {
		return fmt.Errorf("%w: remove at %d, length %d", ErrIndexOutOfRange, i, len(visible))
	}
	r.nodes[visible[i]].Tombstoned = true
	return nil
}

// insertNodeLocked links a new node into the sibling order under its
// parent and invalidates the traversal cache. Callers must hold r.mu.
func (r *RGA[T]) insertNodeLocked(n *rgaNode[T]) {
	r.nodes[n.ID] = n
	siblings := r.children[n.Parent]
	pos := sort.Search(len(siblings), func(j int) bool { return !siblings[j].greater(n.ID) })
	siblings = append(siblings, NodeID{})
	copy(siblings[pos+1:], siblings[pos:])
	siblings[pos] = n.ID
	r.children[n.Parent] = siblings
	r.dirty = true

	if n.ID.Counter > r.counter {
		r.counter = n.ID.Counter
	}
}

// rebuildLocked recomputes the cached pre-order traversal from the parent
// graph. Callers must hold r.mu.
func (r *RGA[T]) rebuildLocked() {
	if !r.dirty {
		return
	}
	order := make([]NodeID, 0, len(r.nodes))
	var walk func(parent NodeID)
	walk = func(parent NodeID) {
		for _, child := range r.children[parent] {
			order = append(order, child)
			walk(child)
		}
	}
	walk(NodeID{})
	r.order = order
	r.dirty = false
}

// visibleLocked returns the ids of all non-tombstoned nodes in sequence
// order. Callers must hold r.mu (read or write).
func (r *RGA[T]) visibleLocked() []NodeID {
	r.rebuildLocked()
	out := make([]NodeID, 0, len(r.order))
	for _, id := range r.order {
		if !r.nodes[id].Tombstoned {
			out = append(out, id)
		}
	}
	return out
}

// Values returns the visible sequence of values, in order.
func (r *RGA[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	visible := r.visibleLocked()
	out := make([]T, len(visible))
	for i, id := range visible {
		out[i] = r.nodes[id].Value
	}
	return out
}

// Value returns Values() as an any, satisfying the CRDT interface.
func (r *RGA[T]) Value() any {
	return r.Values()
}

// Len returns the number of visible elements.
func (r *RGA[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visibleLocked())
}

// NodeSnapshot is an exported view of one RGA node, used to exchange
// state between replicas for Merge.
type NodeSnapshot[T any] struct {
	ID         NodeID
	Parent     NodeID
	Value      T
	Tombstoned bool
}

// Nodes exports every node this replica holds (including tombstoned
// ones), for passing to another replica's Merge.
func (r *RGA[T]) Nodes() []NodeSnapshot[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]NodeSnapshot[T], 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, NodeSnapshot[T]{ID: n.ID, Parent: n.Parent, Value: n.Value, Tombstoned: n.Tombstoned})
	}
	return out
}

// Merge imports nodes this replica has not yet seen and unions
// tombstones. Nodes in remote may arrive in any order: a node whose
// parent is later in the same slice is imported once its parent is. A
// node whose parent is neither held here nor present in remote is not
// imported, and Merge does not keep it for a later call.
func (r *RGA[T]) Merge(remote []NodeSnapshot[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := remote
	for {
		progressed := false
		var stillPending []NodeSnapshot[T]
		for _, n := range pending {
			if existing, ok := r.nodes[n.ID]; ok {
				if n.Tombstoned {
					existing.Tombstoned = true
				}
				progressed = true
				continue
			}
			if !n.Parent.isHead() {
				if _, parentExists := r.nodes[n.Parent]; !parentExists {
					stillPending = append(stillPending, n)
					continue
				}
			}
			r.insertNodeLocked(&rgaNode[T]{ID: n.ID, Parent: n.Parent, Value: n.Value, Tombstoned: n.Tombstoned})
			progressed = true
		}
		pending = stillPending
		if !progressed || len(pending) == 0 {
			break
		}
	}
}

type rgaSnapshot[T any] struct {
	Actor   string
	Counter uint64
	Nodes   []NodeSnapshot[T]
}

// MarshalCRDT encodes every node (including tombstones) for envelope
// storage. Nodes are sorted by id for stable serialization, since map
// iteration order is not itself deterministic.
func (r *RGA[T]) MarshalCRDT() ([]byte, error) {
	nodes := r.Nodes()
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].ID.Actor != nodes[j].ID.Actor {
			return nodes[i].ID.Actor < nodes[j].ID.Actor
		}
		return nodes[i].ID.Counter < nodes[j].ID.Counter
	})
	return codec.Marshal(rgaSnapshot[T]{Actor: r.actor, Counter: r.counter, Nodes: nodes})
}

// UnmarshalCRDT replaces this RGA's state with the decoded snapshot.
func (r *RGA[T]) UnmarshalCRDT(b []byte) error {
	var snap rgaSnapshot[T]
	if err := codec.Unmarshal(b, &snap); err != nil {
		return err
	}
	r.mu.Lock()
	r.actor = snap.Actor
	r.counter = 0
	r.nodes = make(map[NodeID]*rgaNode[T])
	r.children = make(map[NodeID][]NodeID)
	r.dirty = true
	r.mu.Unlock()

	r.Merge(snap.Nodes)

	r.mu.Lock()
	if snap.Counter > r.counter {
		r.counter = snap.Counter
	}
	r.mu.Unlock()
	return nil
}
