// Package feed delivers whole-collection issue snapshots to live subscribers.
package feed

import (
	"sync"

	"issueboard/internal/models"
)

// Subscription is a cancellable stream of issue snapshots.
// Each value received replaces the previous one entirely.
type Subscription struct {
	ch     chan []models.Issue
	broker *Broker
	once   sync.Once
}

// C returns the snapshot stream. It is closed once the subscription is released.
func (s *Subscription) C() <-chan []models.Issue {
	return s.ch
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.remove(s)
	})
}

// Broker fans snapshots out to every open subscription.
// A subscriber that falls behind only sees the newest snapshot.
type Broker struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[*Subscription]struct{})}
}

// Subscribe opens a subscription that immediately holds the initial snapshot.
func (b *Broker) Subscribe(initial []models.Issue) *Subscription {
	s := &Subscription{ch: make(chan []models.Issue, 1), broker: b}
	s.ch <- clone(initial)

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Publish hands snapshot to all subscribers, replacing anything they have not read yet.
func (b *Broker) Publish(snapshot []models.Issue) {
	snap := clone(snapshot)

	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		select {
		case <-s.ch:
		default:
		}
		s.ch <- snap
	}
}

// Count reports the number of open subscriptions.
func (b *Broker) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broker) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, s)
	close(s.ch)
}

func clone(issues []models.Issue) []models.Issue {
	out := make([]models.Issue, len(issues))
	copy(out, issues)
	return out
}
