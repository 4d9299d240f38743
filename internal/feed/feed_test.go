package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker_FilterAndUnsubscribe(t *testing.T) {
	b := NewBroker(4)
	sub, cancel := b.Subscribe(ForEvent(7))
	assert.Equal(t, 1, b.Subscribers())

	b.Publish(Change{Table: TableAttendance, Op: OpInsert, EventID: 8})
	b.Publish(Change{Table: TableAttendance, Op: OpInsert, EventID: 7})

	select {
	case c := <-sub.C:
		assert.Equal(t, int64(7), c.EventID)
		assert.False(t, c.At.IsZero(), "publish stamps the change")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change")
	}
	assert.Len(t, sub.C, 0, "change for another event is filtered out")

	cancel()
	cancel()
	assert.Equal(t, 0, b.Subscribers())
	_, open := <-sub.C
	assert.False(t, open)
}

func TestBroker_SlowSubscriberIsMarkedLagged(t *testing.T) {
	b := NewBroker(1)
	sub, cancel := b.Subscribe(nil)
	defer cancel()

	b.Publish(Change{Table: TableEvents, Op: OpUpdate, EventID: 1})
	b.Publish(Change{Table: TableEvents, Op: OpUpdate, EventID: 1})

	require.Len(t, sub.C, 1)
	assert.True(t, sub.Lagged())
	assert.False(t, sub.Lagged(), "flag clears once read")
}

func TestBroker_NilPublishIsNoop(t *testing.T) {
	var b *Broker
	assert.NotPanics(t, func() { b.Publish(Change{}) })
}
