package testutil

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDs(t *testing.T) {
	ids := NewSequentialIDs("tr")
	assert.Equal(t, "tr-000001", ids.Next())
	assert.Equal(t, "tr-000002", ids.Next())
}

func TestSequentialIDs_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "id-000001", NewSequentialIDs("").Next())
}

func TestSequentialIDs_ByteOrderMatchesGenerationOrder(t *testing.T) {
	ids := NewSequentialIDs("t")
	var got []string
	for i := 0; i < 120; i++ {
		got = append(got, ids.Next())
	}
	assert.True(t, sort.StringsAreSorted(got))
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	ids := NewSequentialIDs("c")
	var mu sync.Mutex
	seen := make(map[string]bool)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := ids.Next()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 1000)
}
