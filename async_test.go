package httpcache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAsyncRevalidatorDisabledForNonPositiveWorkerCount(t *testing.T) {
	assert.Nil(t, NewAsyncRevalidator(0, 10))
	assert.Nil(t, NewAsyncRevalidator(-1, 10))
}

func TestAsyncRevalidatorSubmitOnNilReceiverReportsNotAccepted(t *testing.T) {
	var r *AsyncRevalidator
	accepted := r.Submit("key", func() {})
	assert.False(t, accepted)
}

func TestAsyncRevalidatorRunsSubmittedTask(t *testing.T) {
	r := NewAsyncRevalidator(1, 1)
	require.NotNil(t, r)
	defer r.Close()

	done := make(chan struct{})
	accepted := r.Submit("key", func() { close(done) })
	assert.True(t, accepted)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("submitted task never ran")
	}
}

func TestAsyncRevalidatorSingleFlightDropsDuplicateKey(t *testing.T) {
	r := NewAsyncRevalidator(1, 4)
	require.NotNil(t, r)
	defer r.Close()

	block := make(chan struct{})
	var mu sync.Mutex
	started := false

	first := r.Submit("key", func() {
		mu.Lock()
		started = true
		mu.Unlock()
		<-block
	})
	require.True(t, first)

	// Busy-wait (bounded) until the first task has actually started, so the
	// second Submit for the same key observes it in flight.
	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		s := started
		mu.Unlock()
		if s {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first task never started")
		}
		time.Sleep(time.Millisecond)
	}

	second := r.Submit("key", func() {})
	assert.False(t, second, "duplicate submission for an in-flight key must be dropped")

	close(block)
}

func TestAsyncRevalidatorAllowsDifferentKeysConcurrently(t *testing.T) {
	r := NewAsyncRevalidator(2, 4)
	require.NotNil(t, r)
	defer r.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	assert.True(t, r.Submit("key-a", func() { wg.Done() }))
	assert.True(t, r.Submit("key-b", func() { wg.Done() }))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tasks for distinct keys never completed")
	}
}

func TestAsyncRevalidatorCloseIsIdempotentAndNilSafe(t *testing.T) {
	var nilRevalidator *AsyncRevalidator
	assert.NotPanics(t, func() { nilRevalidator.Close() })

	r := NewAsyncRevalidator(1, 1)
	require.NotNil(t, r)
	assert.NotPanics(t, func() {
		r.Close()
		r.Close()
	})
}
