package testutil

// FixedOperationID generates the same operation id every time.
//
// Log output of a test then does not depend on the UUID generator, which
// keeps golden snapshots of captured logs stable.
//
// Thread-safety: FixedOperationID is stateless and safe for concurrent use.
type FixedOperationID struct {
	id string
}

// NewFixedOperationID creates a generator returning id. If id is empty,
// Generate returns "test-op".
func NewFixedOperationID(id string) *FixedOperationID {
	if id == "" {
		id = "test-op"
	}
	return &FixedOperationID{id: id}
}

// Generate returns the fixed id.
func (g *FixedOperationID) Generate() string {
	return g.id
}
