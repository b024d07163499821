package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const publishTimeout = 5 * time.Second

// Pump decouples status listeners from publishing. Events queue into a
// bounded buffer consumed by a single worker; a full buffer drops the event
// so producers never block on Redis health. A nil Pump is a no-op.
type Pump struct {
	sink func(ctx context.Context, event StatusEvent)
	ch   chan StatusEvent
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

// NewPump starts a pump draining into sink with the given buffer depth.
func NewPump(sink func(ctx context.Context, event StatusEvent), depth int) *Pump {
	p := &Pump{
		sink: sink,
		ch:   make(chan StatusEvent, depth),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Pump) run() {
	defer close(p.done)
	for {
		select {
		case event := <-p.ch:
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			p.sink(ctx, event)
			cancel()
		case <-p.quit:
			return
		}
	}
}

// Enqueue hands an event to the worker without blocking. Events arriving
// after Stop or into a full buffer are dropped.
func (p *Pump) Enqueue(event StatusEvent) {
	if p == nil {
		return
	}
	select {
	case <-p.quit:
	case p.ch <- event:
	default:
		slog.Warn("Status event queue full, dropping event", "account_id", event.AccountID)
	}
}

// Stop terminates the worker and waits for it to exit.
func (p *Pump) Stop() {
	if p == nil {
		return
	}
	p.once.Do(func() { close(p.quit) })
	<-p.done
}
