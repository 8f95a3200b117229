package stream

import (
	"context"
	"fmt"
)

// Emitter hands events to a single consumer. Send blocks until the consumer
// takes the event or ctx ends, so a slow consumer suspends the producer.
type Emitter struct {
	ctx context.Context
	out chan<- Event
}

func NewEmitter(ctx context.Context, out chan<- Event) *Emitter {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Emitter{ctx: ctx, out: out}
}

func (e *Emitter) Send(event Event) error {
	if e.out == nil {
		return fmt.Errorf("stream: event channel is nil")
	}
	select {
	case <-e.ctx.Done():
		return e.ctx.Err()
	case e.out <- event:
		return nil
	}
}
