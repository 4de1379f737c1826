package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalOrdering(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	msgs := []*Message{
		{ID: 3, CreatedAt: t0.Add(time.Second)},
		{ID: 2, CreatedAt: t0}, // same instant as ID 1: id breaks the tie
		{ID: 1, CreatedAt: t0},
	}
	SortCanonical(msgs)

	assert.Equal(t, int64(1), msgs[0].ID)
	assert.Equal(t, int64(2), msgs[1].ID)
	assert.Equal(t, int64(3), msgs[2].ID)
}

func TestSeenByUser(t *testing.T) {
	m := &Message{SeenBy: []string{"alice"}}
	assert.True(t, m.SeenByUser("alice"))
	assert.False(t, m.SeenByUser("bob"))
}
