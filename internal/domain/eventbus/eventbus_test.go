package eventbus

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vietscribe-go/internal/platform/logging"
)

func TestSyncBus_DeliversTypedEvents(t *testing.T) {
	bus := New()
	var got UnitEvent
	require.NoError(t, bus.Subscribe(TopicUnitDone, func(e UnitEvent) { got = e }))

	bus.Publish(TopicUnitDone, UnitEvent{RunID: "r1", Index: 2, Total: 5, Segments: 3})

	assert.Equal(t, "r1", got.RunID)
	assert.Equal(t, 3, got.Segments)
}

func TestAsyncBus_DrainAndStop(t *testing.T) {
	bus := NewAsyncEventBus(2, logging.Nop())
	bus.Start()

	var count int32
	require.NoError(t, bus.Subscribe(TopicProgress, func(ProgressEvent) { atomic.AddInt32(&count, 1) }))

	pub := bus.Async()
	for i := 0; i < 50; i++ {
		pub.Publish(TopicProgress, ProgressEvent{Processed: i, Total: 50})
	}
	bus.Drain()
	assert.Equal(t, int32(50), atomic.LoadInt32(&count))

	bus.Stop()
	bus.Stop()
}

func TestAsyncBus_RecoversFromPanickingHandler(t *testing.T) {
	bus := NewAsyncEventBus(1, logging.Nop())
	bus.Start()
	defer bus.Stop()

	var delivered int32
	require.NoError(t, bus.Subscribe(TopicFailed, func(RunEvent) { panic("boom") }))
	require.NoError(t, bus.Subscribe(TopicCompleted, func(RunEvent) { atomic.AddInt32(&delivered, 1) }))

	bus.PublishAsync(TopicFailed, RunEvent{})
	bus.PublishAsync(TopicCompleted, RunEvent{})
	bus.Drain()

	assert.Equal(t, int32(1), atomic.LoadInt32(&delivered))
}

func TestSubscribeLogger(t *testing.T) {
	bus := New()
	require.NoError(t, SubscribeLogger(bus, logging.Nop()))
	for _, topic := range []string{TopicUnitDone, TopicUnitFailed, TopicCompleted, TopicFailed} {
		assert.True(t, bus.HasCallback(topic), topic)
	}
	assert.NotPanics(t, func() {
		bus.Publish(TopicUnitFailed, UnitEvent{Index: 0, Total: 1, Attempts: 3, Error: "x"})
	})
}
