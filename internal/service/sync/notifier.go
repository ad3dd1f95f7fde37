package sync

import (
	stdsync "sync"

	"go.uber.org/zap"
)

const subscriberBuffer = 16

// Notifier fans out committed head heights to subscribers. Subscribers that
// stop draining are dropped rather than allowed to block the pipeline; a
// dropped or disconnected consumer resubscribes from the current head, there
// is no history replay.
type Notifier struct {
	logger *zap.Logger

	mu     stdsync.Mutex
	subs   map[uint64]chan uint64
	nextID uint64
}

// NewNotifier constructs an empty notifier.
func NewNotifier(logger *zap.Logger) *Notifier {
	return &Notifier{
		logger: logger.Named("notifier"),
		subs:   make(map[uint64]chan uint64),
	}
}

// HeadSubscription is one subscriber's feed of new head heights.
type HeadSubscription struct {
	ch     chan uint64
	cancel func()
}

// Recv returns the channel new head heights arrive on. The channel closes
// when the subscription is dropped or unsubscribed.
func (s *HeadSubscription) Recv() <-chan uint64 {
	return s.ch
}

// Unsubscribe detaches the subscription and closes its channel.
func (s *HeadSubscription) Unsubscribe() {
	s.cancel()
}

// Subscribe registers a new head subscriber.
func (n *Notifier) Subscribe() *HeadSubscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	ch := make(chan uint64, subscriberBuffer)
	n.subs[id] = ch

	return &HeadSubscription{
		ch: ch,
		cancel: func() {
			n.drop(id)
		},
	}
}

// Publish delivers a new head height to every subscriber.
func (n *Notifier) Publish(height uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for id, ch := range n.subs {
		select {
		case ch <- height:
		default:
			n.logger.Warn("dropping slow head subscriber", zap.Uint64("subscriber", id))
			delete(n.subs, id)
			close(ch)
		}
	}
}

func (n *Notifier) drop(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if ch, ok := n.subs[id]; ok {
		delete(n.subs, id)
		close(ch)
	}
}
