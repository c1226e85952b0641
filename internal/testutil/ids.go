package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates IDs of the form "<prefix>-000001", counting up.
//
// Pass ids.Next to store.WithIDGenerator. The zero padding keeps byte
// order equal to generation order, so ORDER BY transcript_id matches the
// order rows were written.
//
// Thread-safety: safe for concurrent use.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix uses "id".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "id"
	}
	return &SequentialIDs{prefix: prefix}
}

// Next returns the next ID.
func (g *SequentialIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%06d", g.prefix, g.n)
}
