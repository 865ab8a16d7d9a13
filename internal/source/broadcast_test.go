// ABOUTME: Tests for the child-added notification broadcaster.
// ABOUTME: Validates fan-out, unsubscription, context cleanup, and slow-subscriber drops.

package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/annosync/internal/annotation"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster(nil)
	ctx := context.Background()

	ch1, _ := b.Subscribe(ctx)
	ch2, _ := b.Subscribe(ctx)

	b.Publish(annotation.Annotation{Key: "Pt1_2_3"})

	assert.Equal(t, "Pt1_2_3", (<-ch1).Key)
	assert.Equal(t, "Pt1_2_3", (<-ch2).Key)
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := NewBroadcaster(nil)

	ch, id := b.Subscribe(context.Background())
	b.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open, "unsubscribing closes the channel")
	assert.Equal(t, 0, b.Len())

	// Unsubscribing twice is safe.
	b.Unsubscribe(id)
}

func TestBroadcaster_ContextCancelCleansUp(t *testing.T) {
	b := NewBroadcaster(nil)

	ctx, cancel := context.WithCancel(context.Background())
	b.Subscribe(ctx)
	require.Equal(t, 1, b.Len())

	cancel()
	assert.Eventually(t, func() bool { return b.Len() == 0 },
		time.Second, 5*time.Millisecond)
}

func TestBroadcaster_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroadcaster(nil)
	ctx := context.Background()

	slow, _ := b.Subscribe(ctx)
	_ = slow // never drained

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBufferSize+10; i++ {
			b.Publish(annotation.Annotation{Key: "Pt1_1_1"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
