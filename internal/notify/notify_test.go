package notify

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueDrainsInOrder(t *testing.T) {
	q := NewQueue(4)
	Success(q, "saved")
	Error(q, "failed")

	items := q.Drain()
	require.Len(t, items, 2)
	assert.Equal(t, LevelSuccess, items[0].Level)
	assert.Equal(t, "saved", items[0].Message)
	assert.Equal(t, LevelError, items[1].Level)

	assert.Empty(t, q.Drain())
	assert.NotNil(t, q.Drain(), "drained queue serialises as an empty list")
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	q := NewQueue(3)
	for i := range 5 {
		q.Notify(LevelInfo, fmt.Sprintf("n%d", i))
	}

	assert.Equal(t, 3, q.Len())
	items := q.Drain()
	assert.Equal(t, "n2", items[0].Message)
	assert.Equal(t, "n4", items[2].Message)
}
