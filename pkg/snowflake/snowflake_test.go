package snowflake

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeRange(t *testing.T) {
	_, err := NewNode(-1)
	assert.ErrorIs(t, err, ErrNodeOutOfRange)
	_, err = NewNode(1024)
	assert.ErrorIs(t, err, ErrNodeOutOfRange)
	_, err = NewNode(1023)
	assert.NoError(t, err)
}

func TestGenerateMonotonicAndUnique(t *testing.T) {
	n, err := NewNode(1)
	require.NoError(t, err)

	prev := n.Generate()
	for i := 0; i < 10000; i++ {
		id := n.Generate()
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestGenerateConcurrentUnique(t *testing.T) {
	n, err := NewNode(1)
	require.NoError(t, err)

	const workers, perWorker = 8, 1000
	ids := make(chan int64, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				ids <- n.Generate()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]struct{}, workers*perWorker)
	for id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}
}
