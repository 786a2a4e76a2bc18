package bus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opscrew/opscrew/logging"
)

func newTestBus(opts ...Option) *Bus {
	return New(append([]Option{WithLogger(logging.NoOpLogger{})}, opts...)...)
}

func TestPublish_SubscriptionOrder(t *testing.T) {
	b := newTestBus()
	var got []string
	b.Subscribe("evt_x", func(string, map[string]any) error {
		got = append(got, "A")
		return nil
	})
	b.Subscribe("evt_x", func(string, map[string]any) error {
		got = append(got, "B")
		return nil
	})

	b.Publish("evt_x", map[string]any{"a": 1}, "test")
	assert.Equal(t, []string{"A", "B"}, got)
}

func TestPublish_HandlerFailureDoesNotStopOthers(t *testing.T) {
	b := newTestBus()
	var got []string
	b.Subscribe("evt_x", func(string, map[string]any) error {
		got = append(got, "A")
		return errors.New("handler A failed")
	})
	b.Subscribe("evt_x", func(string, map[string]any) error {
		panic("handler B panicked")
	})
	b.Subscribe("evt_x", func(string, map[string]any) error {
		got = append(got, "C")
		return nil
	})

	assert.NotPanics(t, func() { b.Publish("evt_x", nil, "test") })
	assert.Equal(t, []string{"A", "C"}, got)
}

func TestPublish_ReentrantFromHandler(t *testing.T) {
	b := newTestBus()
	var chained bool
	b.Subscribe("second", func(string, map[string]any) error {
		chained = true
		return nil
	})
	b.Subscribe("first", func(string, map[string]any) error {
		b.Publish("second", nil, "handler")
		return nil
	})

	b.Publish("first", nil, "test")
	assert.True(t, chained)
	assert.Len(t, b.Recent(0), 2)
}

func TestRecent_RingBuffer(t *testing.T) {
	b := newTestBus(WithLogCap(3))
	for i := 0; i < 5; i++ {
		b.Publish("evt", map[string]any{"i": i}, "test")
	}

	events := b.Recent(10)
	require.Len(t, events, 3)
	assert.Equal(t, 2, events[0].Payload["i"])
	assert.Equal(t, 4, events[2].Payload["i"])

	last := b.Recent(1)
	require.Len(t, last, 1)
	assert.Equal(t, 4, last[0].Payload["i"])
}

func TestSubscriberCounts(t *testing.T) {
	b := newTestBus()
	b.Subscribe("a", func(string, map[string]any) error { return nil })
	b.Subscribe("a", func(string, map[string]any) error { return nil })
	b.Subscribe("b", func(string, map[string]any) error { return nil })

	counts := b.SubscriberCounts()
	assert.Equal(t, 2, counts["a"])
	assert.Equal(t, 1, counts["b"])
}
