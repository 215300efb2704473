// Package pubsub fans layout frames out to any number of in-process
// subscribers keyed by topic.
package pubsub

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrShutdown is returned when subscribing to a closed PubSub
var ErrShutdown = errors.New("pubsub is shut down")

// DefaultBufferSize is the per-subscription channel capacity
const DefaultBufferSize = 64

// FrameTopic returns the topic carrying the frames of one layout session
func FrameTopic(sessionID string) string {
	return "layout/" + sessionID
}

// PubSub provides publish/subscribe functionality for live frame updates
type PubSub struct {
	subscribers map[string]map[*Subscription]bool
	mu          sync.RWMutex
	bufferSize  int
	shutdown    chan struct{}
	shutdownMu  sync.Mutex
	isShutdown  bool
}

// Subscription represents a subscription to a topic
type Subscription struct {
	topic     string
	channel   chan any
	ps        *PubSub
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	dropped   int64
	droppedMu sync.Mutex
}

// NewPubSub creates a new PubSub instance
func NewPubSub() *PubSub {
	return NewPubSubWithBuffer(DefaultBufferSize)
}

// NewPubSubWithBuffer creates a PubSub whose subscriptions buffer size messages
func NewPubSubWithBuffer(size int) *PubSub {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &PubSub{
		subscribers: make(map[string]map[*Subscription]bool),
		bufferSize:  size,
		shutdown:    make(chan struct{}),
	}
}

// Subscribe creates a new subscription to a topic. The subscription ends when
// ctx is cancelled, Unsubscribe is called or the PubSub shuts down.
func (ps *PubSub) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	ps.shutdownMu.Lock()
	if ps.isShutdown {
		ps.shutdownMu.Unlock()
		return nil, ErrShutdown
	}
	ps.shutdownMu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		topic:   topic,
		channel: make(chan any, ps.bufferSize),
		ps:      ps,
		ctx:     subCtx,
		cancel:  cancel,
	}

	ps.mu.Lock()
	if ps.subscribers[topic] == nil {
		ps.subscribers[topic] = make(map[*Subscription]bool)
	}
	ps.subscribers[topic][sub] = true
	ps.mu.Unlock()

	go func() {
		select {
		case <-subCtx.Done():
			sub.Unsubscribe()
		case <-ps.shutdown:
			sub.close()
		}
	}()

	return sub, nil
}

// snapshot copies the subscribers of topic so sends happen outside the lock
func (ps *PubSub) snapshot(topic string) []*Subscription {
	ps.shutdownMu.Lock()
	if ps.isShutdown {
		ps.shutdownMu.Unlock()
		return nil
	}
	ps.shutdownMu.Unlock()

	ps.mu.RLock()
	defer ps.mu.RUnlock()
	topicSubs := ps.subscribers[topic]
	subs := make([]*Subscription, 0, len(topicSubs))
	for sub := range topicSubs {
		subs = append(subs, sub)
	}
	return subs
}

// Publish sends a message to all subscribers of a topic. A subscriber whose
// buffer is full misses the message; intermediate frames are superseded by
// the next one anyway.
func (ps *PubSub) Publish(topic string, message any) {
	for _, sub := range ps.snapshot(topic) {
		sub.send(message)
	}
}

// PublishFinal delivers a message that must not be dropped, waiting up to
// timeout for each slow subscriber to make room. It returns how many
// subscribers received it.
func (ps *PubSub) PublishFinal(topic string, message any, timeout time.Duration) int {
	subs := ps.snapshot(topic)
	if len(subs) == 0 {
		return 0
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	delivered := 0
	for _, sub := range subs {
		if sub.sendWait(message, timer.C) {
			delivered++
		}
	}
	return delivered
}

// GetSubscriberCount returns the number of subscribers for a topic
func (ps *PubSub) GetSubscriberCount(topic string) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subscribers[topic])
}

// Shutdown closes all subscriptions and shuts down the PubSub
func (ps *PubSub) Shutdown() {
	ps.shutdownMu.Lock()
	if ps.isShutdown {
		ps.shutdownMu.Unlock()
		return
	}
	ps.isShutdown = true
	ps.shutdownMu.Unlock()

	close(ps.shutdown)

	ps.mu.Lock()
	for topic := range ps.subscribers {
		for sub := range ps.subscribers[topic] {
			sub.close()
		}
		delete(ps.subscribers, topic)
	}
	ps.mu.Unlock()
}

// Channel returns the subscription's message channel
func (s *Subscription) Channel() <-chan any {
	return s.channel
}

// Topic returns the subscribed topic
func (s *Subscription) Topic() string {
	return s.topic
}

// Dropped reports how many messages this subscriber missed because its buffer
// was full
func (s *Subscription) Dropped() int64 {
	s.droppedMu.Lock()
	defer s.droppedMu.Unlock()
	return s.dropped
}

// Unsubscribe removes the subscription
func (s *Subscription) Unsubscribe() {
	s.cancel()

	s.ps.mu.Lock()
	defer s.ps.mu.Unlock()

	if s.ps.subscribers[s.topic] != nil {
		delete(s.ps.subscribers[s.topic], s)
		if len(s.ps.subscribers[s.topic]) == 0 {
			delete(s.ps.subscribers, s.topic)
		}
	}

	s.close()
}

// send delivers without blocking. Sending races with close, so the channel
// is guarded by the subscription context.
func (s *Subscription) send(message any) {
	defer func() { _ = recover() }()
	if s.ctx.Err() != nil {
		return
	}
	select {
	case s.channel <- message:
	default:
		s.droppedMu.Lock()
		s.dropped++
		s.droppedMu.Unlock()
	}
}

func (s *Subscription) sendWait(message any, deadline <-chan time.Time) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if s.ctx.Err() != nil {
		return false
	}
	select {
	case s.channel <- message:
		return true
	case <-s.ctx.Done():
		return false
	case <-deadline:
		s.droppedMu.Lock()
		s.dropped++
		s.droppedMu.Unlock()
		return false
	}
}

// close closes the subscription channel safely (idempotent)
func (s *Subscription) close() {
	s.closeOnce.Do(func() {
		close(s.channel)
	})
}
