package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubjectDeliversInSubscriptionOrder(t *testing.T) {
	s := NewSubject[int]()
	var got []string

	s.Subscribe(func(v int) { got = append(got, "first") })
	s.Subscribe(func(v int) { got = append(got, "second") })
	s.Publish(1)

	assert.Equal(t, []string{"first", "second"}, got)
}

func TestSubjectUnsubscribe(t *testing.T) {
	s := NewSubject[string]()
	var a, b []string

	unsubA := s.Subscribe(func(v string) { a = append(a, v) })
	s.Subscribe(func(v string) { b = append(b, v) })

	s.Publish("x")
	unsubA()
	unsubA()
	s.Publish("y")

	assert.Equal(t, []string{"x"}, a)
	assert.Equal(t, []string{"x", "y"}, b)
	assert.Equal(t, 1, s.Len())
}

func TestSubjectLateSubscriberMissesEarlierValues(t *testing.T) {
	s := NewSubject[int]()
	s.Publish(1)

	var got []int
	s.Subscribe(func(v int) { got = append(got, v) })
	s.Publish(2)

	assert.Equal(t, []int{2}, got)
}

func TestSubjectUnsubscribeDuringPublish(t *testing.T) {
	s := NewSubject[int]()
	var calls int
	var unsub func()
	unsub = s.Subscribe(func(v int) {
		calls++
		unsub()
	})
	s.Subscribe(func(v int) { calls++ })

	s.Publish(1)
	s.Publish(2)
	assert.Equal(t, 3, calls)
}
