package buffer

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thapovan-inc/orion-llmobs-relay/event"
	"strconv"
	"sync"
	"testing"
)

func span(i int) event.SpanEvent {
	return event.SpanEvent{SpanID: strconv.Itoa(i)}
}

func TestEnqueueKeepsInsertionOrder(t *testing.T) {
	b := New(10)
	for i := 0; i < 7; i++ {
		require.True(t, b.Enqueue(span(i)))
	}
	events := b.DetachAll()
	require.Len(t, events, 7)
	for i, ev := range events {
		assert.Equal(t, strconv.Itoa(i), ev.(event.SpanEvent).SpanID)
	}
	assert.Equal(t, 0, b.Len())
}

func TestEnqueueDropsPastCapacity(t *testing.T) {
	b := New(5)
	dropped := 0
	for i := 0; i < 8; i++ {
		if !b.Enqueue(span(i)) {
			dropped++
		}
	}
	assert.Equal(t, 3, dropped)
	assert.True(t, b.Full())

	events := b.DetachAll()
	require.Len(t, events, 5)
	assert.Equal(t, "4", events[4].(event.SpanEvent).SpanID)
	assert.False(t, b.Full())
	assert.True(t, b.Enqueue(span(9)))
}

func TestDetachAllOnEmptyBuffer(t *testing.T) {
	b := New(0)
	assert.Equal(t, DefaultCapacity, b.Capacity())
	assert.Nil(t, b.DetachAll())
}

func TestConcurrentEnqueueAndDetach(t *testing.T) {
	b := New(DefaultCapacity)
	const producers, perProducer = 8, 100

	var wg sync.WaitGroup
	var mu sync.Mutex
	detached := 0
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				n := len(b.DetachAll())
				mu.Lock()
				detached += n
				mu.Unlock()
			}
		}
	}()
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				b.Enqueue(span(p*perProducer + i))
			}
		}(p)
	}
	wg.Wait()
	close(stop)
	<-done

	detached += len(b.DetachAll())
	assert.Equal(t, producers*perProducer, detached)
}
