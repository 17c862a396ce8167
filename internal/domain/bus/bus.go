// Package bus provides a small typed publish/subscribe hub. Handlers for a
// topic run synchronously, in subscription order, on the publisher's
// goroutine.
package bus

import (
	"sort"
	"sync"
)

// Handler receives published values.
type Handler[T any] func(T)

// Token identifies a subscription for Unsubscribe.
type Token uint64

type subscription[T any] struct {
	token Token
	fn    Handler[T]
}

// Bus is a multimap from topic to an ordered handler set, plus wildcard
// subscribers that see every topic.
type Bus[K comparable, T any] struct {
	mu     sync.RWMutex
	next   Token
	topics map[K][]subscription[T]
	all    []subscription[T]
	owner  map[Token]K
}

// New creates an empty bus.
func New[K comparable, T any]() *Bus[K, T] {
	return &Bus[K, T]{
		topics: make(map[K][]subscription[T]),
		owner:  make(map[Token]K),
	}
}

// Subscribe registers fn for topic.
func (b *Bus[K, T]) Subscribe(topic K, fn Handler[T]) Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.topics[topic] = append(b.topics[topic], subscription[T]{token: b.next, fn: fn})
	b.owner[b.next] = topic
	return b.next
}

// SubscribeAll registers fn for every topic.
func (b *Bus[K, T]) SubscribeAll(fn Handler[T]) Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.all = append(b.all, subscription[T]{token: b.next, fn: fn})
	return b.next
}

// Unsubscribe removes a subscription. It reports whether the token was live.
func (b *Bus[K, T]) Unsubscribe(tok Token) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if topic, ok := b.owner[tok]; ok {
		delete(b.owner, tok)
		subs := remove(b.topics[topic], tok)
		if len(subs) == 0 {
			delete(b.topics, topic)
		} else {
			b.topics[topic] = subs
		}
		return true
	}
	n := len(b.all)
	b.all = remove(b.all, tok)
	return len(b.all) != n
}

// Publish delivers v to the topic's handlers and the wildcard handlers,
// merged by subscription order. It returns the number of handlers called.
// Handlers may subscribe or unsubscribe; changes apply to the next Publish.
func (b *Bus[K, T]) Publish(topic K, v T) int {
	b.mu.RLock()
	subs := make([]subscription[T], 0, len(b.topics[topic])+len(b.all))
	subs = append(subs, b.topics[topic]...)
	subs = append(subs, b.all...)
	b.mu.RUnlock()

	sort.Slice(subs, func(i, j int) bool { return subs[i].token < subs[j].token })
	for _, s := range subs {
		s.fn(v)
	}
	return len(subs)
}

// Len returns the number of live subscriptions.
func (b *Bus[K, T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.owner) + len(b.all)
}

func remove[T any](subs []subscription[T], tok Token) []subscription[T] {
	out := subs[:0:0]
	for _, s := range subs {
		if s.token != tok {
			out = append(out, s)
		}
	}
	return out
}
