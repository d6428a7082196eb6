package services

import "sync"

type observer[T any] struct {
	id int
	fn func(T)
}

// Subject fans a value out to every current subscriber, synchronously and in
// subscription order. Late subscribers miss earlier values.
type Subject[T any] struct {
	mu        sync.Mutex
	nextID    int
	observers []observer[T]
}

func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{}
}

// Subscribe registers fn and returns a function removing it
func (s *Subject[T]) Subscribe(fn func(T)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, observer[T]{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, o := range s.observers {
				if o.id == id {
					s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish calls every subscriber registered at the time of the call
func (s *Subject[T]) Publish(value T) {
	s.mu.Lock()
	observers := s.observers
	s.mu.Unlock()

	for _, o := range observers {
		o.fn(value)
	}
}

func (s *Subject[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers)
}
