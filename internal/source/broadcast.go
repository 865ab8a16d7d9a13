// ABOUTME: In-memory fan-out of child-added notifications from bulk downloads
// ABOUTME: Lets already-open views pick up annotations they have not seen yet

package source

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/annosync/internal/annotation"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// Broadcaster fans decoded annotations out to live observers. Publishing is
// non-blocking: an annotation is dropped for any subscriber whose channel
// is full, never for the others.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan annotation.Annotation
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]chan annotation.Annotation),
		logger:      logger.With("component", "broadcast"),
	}
}

// Subscribe registers an observer. The returned channel receives every
// annotation published until ctx is cancelled or Unsubscribe is called with
// the returned id.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan annotation.Annotation, string) {
	subID := uuid.New().String()
	ch := make(chan annotation.Annotation, subscriberBufferSize)

	b.mu.Lock()
	b.subscribers[subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish delivers a child-added notification to all subscribers.
func (b *Broadcaster) Publish(a annotation.Annotation) {
	b.mu.RLock()
	targets := make([]chan annotation.Annotation, 0, len(b.subscribers))
	for _, ch := range b.subscribers {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- a:
		default:
			b.logger.Debug("dropped notification for slow subscriber", "key", a.Key)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel. Safe to call
// for an already-removed id.
func (b *Broadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[subID]
	if !ok {
		return
	}
	delete(b.subscribers, subID)
	close(ch)
}

// Len returns the current subscriber count.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
