package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityQueue_Order(t *testing.T) {
	pq := NewPriorityQueue[string]()
	require.NoError(t, pq.PushItem("low-1", 0))
	require.NoError(t, pq.PushItem("high", 5))
	require.NoError(t, pq.PushItem("low-2", 0))
	require.NoError(t, pq.PushItem("mid", 2))
	assert.Equal(t, 4, pq.Len())

	var got []string
	for !pq.IsEmpty() {
		v, err := pq.TryPop()
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []string{"high", "mid", "low-1", "low-2"}, got)

	_, err := pq.TryPop()
	assert.ErrorIs(t, err, ErrPriorityQueueEmpty)
}

func TestPriorityQueue_Close(t *testing.T) {
	pq := NewPriorityQueue[int]()
	require.NoError(t, pq.PushItem(1, 0))
	pq.Close()

	assert.ErrorIs(t, pq.PushItem(2, 0), ErrPriorityQueueClosed)

	v, err := pq.TryPop()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = pq.TryPop()
	assert.ErrorIs(t, err, ErrPriorityQueueClosed)
}

func TestPriorityQueue_ReadySignal(t *testing.T) {
	pq := NewPriorityQueue[int]()
	require.NoError(t, pq.PushItem(1, 0))
	require.NoError(t, pq.PushItem(2, 0))

	select {
	case <-pq.Ready():
	default:
		t.Fatal("expected a ready signal after push")
	}
}
