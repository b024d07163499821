package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPumpDeliversEvents(t *testing.T) {
	var mu sync.Mutex
	var got []StatusEvent
	sink := func(ctx context.Context, event StatusEvent) {
		mu.Lock()
		got = append(got, event)
		mu.Unlock()
	}
	pump := NewPump(sink, 16)
	t.Cleanup(pump.Stop)

	for i := 0; i < 3; i++ {
		pump.Enqueue(StatusEvent{AccountID: uuid.New(), Status: "ONLINE"})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, time.Second, 10*time.Millisecond)
}

func TestPumpEnqueueNeverBlocksOnStalledSink(t *testing.T) {
	release := make(chan struct{})
	sink := func(ctx context.Context, event StatusEvent) {
		<-release
	}
	pump := NewPump(sink, 1)

	enqueued := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			pump.Enqueue(StatusEvent{AccountID: uuid.New(), Status: "BOOSTING"})
		}
		close(enqueued)
	}()

	select {
	case <-enqueued:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a stalled sink")
	}

	close(release)
	pump.Stop()
}

func TestPumpEnqueueAfterStopIsIgnored(t *testing.T) {
	var mu sync.Mutex
	var delivered int
	sink := func(ctx context.Context, event StatusEvent) {
		mu.Lock()
		delivered++
		mu.Unlock()
	}
	pump := NewPump(sink, 4)
	pump.Stop()

	pump.Enqueue(StatusEvent{AccountID: uuid.New(), Status: "ERROR"})

	mu.Lock()
	assert.Equal(t, 0, delivered)
	mu.Unlock()
}
