package unread

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrementAndReset(t *testing.T) {
	s := New()

	assert.EqualValues(t, 1, s.Increment("bob", "c1"))
	assert.EqualValues(t, 2, s.Increment("bob", "c1"))
	assert.EqualValues(t, 2, s.Count("bob", "c1"))

	s.Reset("bob", "c1")
	assert.EqualValues(t, 0, s.Count("bob", "c1"))

	// Reset on a missing key is a no-op that creates the zero entry.
	s.Reset("bob", "c2")
	snap := s.Snapshot("bob")
	require.Contains(t, snap, "c2")
	assert.EqualValues(t, 0, snap["c2"])
}

func TestCountUnknownKeyIsZero(t *testing.T) {
	s := New()
	assert.EqualValues(t, 0, s.Count("nobody", "nowhere"))
	assert.Empty(t, s.Snapshot("nobody"))
}

func TestConcurrentIncrementsSameKey(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Increment("bob", "c1")
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 100, s.Count("bob", "c1"))
}

func TestConcurrentIncrementsDistinctConversations(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Increment("bob", fmt.Sprintf("c%d", i))
		}(i)
	}
	wg.Wait()

	snap := s.Snapshot("bob")
	require.Len(t, snap, 100)
	for conversationID, count := range snap {
		assert.EqualValues(t, 1, count, "conversation %s", conversationID)
	}
}

func TestConcurrentIncrementResetRace(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Increment("bob", "c1")
		}()
		go func() {
			defer wg.Done()
			s.Reset("bob", "c1")
		}()
	}
	wg.Wait()

	// Whatever interleaving happened, the counter must never be negative
	// and a final reset must land on exactly zero.
	assert.GreaterOrEqual(t, s.Count("bob", "c1"), int64(0))
	s.Reset("bob", "c1")
	assert.EqualValues(t, 0, s.Count("bob", "c1"))
}
