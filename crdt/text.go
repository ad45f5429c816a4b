package crdt

// Text is a replicated string built on RGA[rune], giving collaborative
// plain-text editing convergence guarantees with an ergonomic
// rune/string-oriented API instead of NodeSnapshot plumbing.
type Text struct {
	rga *RGA[rune]
}

// NewText creates an empty Text for the given actor.
func NewText(actor string) *Text {
	return &Text{rga: NewRGA[rune](actor)}
}

// InsertAt inserts r so it becomes the i-th visible rune.
func (t *Text) InsertAt(i int, r rune) (NodeID, error) {
	return t.rga.InsertAt(i, r)
}

// InsertString inserts s starting at visible index i, one rune at a time,
// each following the previous one it just placed.
func (t *Text) InsertString(i int, s string) error {
	for _, r := range s {
		if _, err := t.rga.InsertAt(i, r); err != nil {
			return err
		}
		i++
	}
	return nil
}

// RemoveAt tombstones the i-th visible rune.
func (t *Text) RemoveAt(i int) error {
	return t.rga.RemoveAt(i)
}

// String returns the visible text.
func (t *Text) String() string {
	return string(t.rga.Values())
}

// Value returns String() as an any, satisfying the CRDT interface.
func (t *Text) Value() any {
	return t.String()
}

// Len returns the number of visible runes.
func (t *Text) Len() int {
	return t.rga.Len()
}

// Nodes exports the underlying RGA's nodes, for Merge.
func (t *Text) Nodes() []NodeSnapshot[rune] {
	return t.rga.Nodes()
}

// Merge folds remote nodes into this Text's underlying RGA.
func (t *Text) Merge(remote []NodeSnapshot[rune]) {
	t.rga.Merge(remote)
}

// MarshalCRDT encodes the underlying RGA for envelope storage.
func (t *Text) MarshalCRDT() ([]byte, error) {
	return t.rga.MarshalCRDT()
}

// UnmarshalCRDT replaces this Text's state with the decoded snapshot.
func (t *Text) UnmarshalCRDT(b []byte) error {
	if t.rga == nil {
		t.rga = NewRGA[rune]("")
	}
	return t.rga.UnmarshalCRDT(b)
}
