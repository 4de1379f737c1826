// Package snowflake generates time-ordered 64-bit message ids: 41 bits of
// milliseconds since a custom epoch, 10 bits of node id, 12 bits of
// per-millisecond sequence. Ordering by id equals ordering by creation time,
// with the sequence breaking ties within a millisecond.
package snowflake

import (
	"errors"
	"sync"
	"time"
)

const (
	nodeBits = 10
	seqBits  = 12

	maxNode = -1 ^ (-1 << nodeBits)
	seqMask = -1 ^ (-1 << seqBits)

	timeShift = nodeBits + seqBits
	nodeShift = seqBits

	// 2024-01-01T00:00:00Z
	epochMillis int64 = 1704067200000
)

var ErrNodeOutOfRange = errors.New("snowflake: node id must be in [0, 1023]")

type Node struct {
	mu   sync.Mutex
	last int64
	node int64
	seq  int64
}

// NewNode creates a generator. Node ids must be unique per relay instance.
func NewNode(node int64) (*Node, error) {
	if node < 0 || node > maxNode {
		return nil, ErrNodeOutOfRange
	}
	return &Node{node: node}, nil
}

// Generate returns the next id. Safe for concurrent use.
func (n *Node) Generate() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := time.Now().UnixMilli()
	if now < n.last {
		// Clock went backwards; hold the line at the last timestamp rather
		// than emit an out-of-order id.
		now = n.last
	}

	if now == n.last {
		n.seq = (n.seq + 1) & seqMask
		if n.seq == 0 {
			// Sequence exhausted for this millisecond; spin to the next one.
			for now <= n.last {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		n.seq = 0
	}
	n.last = now

	return ((now - epochMillis) << timeShift) | (n.node << nodeShift) | n.seq
}
