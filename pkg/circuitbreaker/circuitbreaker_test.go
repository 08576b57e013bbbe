package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errDown = errors.New("down")

func fail(context.Context) error { return errDown }
func ok(context.Context) error   { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	var transitions []State
	cb := New("test",
		WithFailureThreshold(2),
		WithTimeout(time.Hour),
		WithOnStateChange(func(_ string, _, to State) { transitions = append(transitions, to) }),
	)

	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errDown)
	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errDown)
	assert.True(t, cb.IsOpen())

	called := false
	err := cb.Execute(context.Background(), func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, []State{StateOpen}, transitions)
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	cb := New("test", WithFailureThreshold(1), WithSuccessThreshold(1), WithTimeout(time.Millisecond))

	_ = cb.Execute(context.Background(), fail)
	assert.True(t, cb.IsOpen())

	time.Sleep(5 * time.Millisecond)
	assert.NoError(t, cb.Execute(context.Background(), ok))
	assert.True(t, cb.IsClosed())
}

func TestBreaker_IsFailureFilter(t *testing.T) {
	notFound := errors.New("not found")
	cb := PlatformAPIBreaker(nil, func(err error) bool { return !errors.Is(err, notFound) })

	for i := 0; i < 10; i++ {
		_ = cb.Execute(context.Background(), func(context.Context) error { return notFound })
	}

	assert.True(t, cb.IsClosed())
	assert.Equal(t, 10, cb.Counts().Requests)
}
