// Package viewstate holds small pieces of observable state owned by one
// consumer, such as the folder being browsed or whether a dialog is open.
//
// Each consumer creates its own stores. Nothing in this package is global.
package viewstate

import "sync"

// Store holds one value and notifies subscribers when it changes. Subscribers
// are called outside the lock, in the order they subscribed, and may call
// back into the store.
type Store[T any] struct {
	mu     sync.Mutex
	value  T
	subs   []subscription[T]
	nextID int
}

type subscription[T any] struct {
	id int
	fn func(T)
}

func NewStore[T any](initial T) *Store[T] {
	return &Store[T]{value: initial}
}

func (s *Store[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

func (s *Store[T]) Set(v T) {
	s.Update(func(T) T { return v })
}

// Update replaces the value with fn applied to it and returns the new value.
// fn runs under the store lock and must not call back into the store.
func (s *Store[T]) Update(fn func(T) T) T {
	s.mu.Lock()
	s.value = fn(s.value)
	v := s.value
	subs := make([]subscription[T], len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(v)
	}
	return v
}

// Subscribe registers fn and returns a function removing it.
func (s *Store[T]) Subscribe(fn func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscription[T]{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}
