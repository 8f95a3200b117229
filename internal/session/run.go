package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/codestream/internal/services/stream"
)

// ErrDisconnected reports that the client went away. Run treats it as a
// normal end of the session.
var ErrDisconnected = errors.New("session: client disconnected")

// Conn is the client transport of one session. ReadMessage and WriteEvent are
// each called from a single goroutine; Close may be called concurrently with
// both and must unblock them.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteEvent(event stream.Event) error
	Close() error
}

// Pinger is implemented by transports that support keepalive pings. Ping may
// be called concurrently with WriteEvent.
type Pinger interface {
	Ping() error
}

// Run serves conn until the client disconnects, a transport write fails or
// ctx ends. It sends the connection event, the optional file snapshot, and then
// processes instructions one at a time in arrival order. Disconnects cancel any
// in-flight relay stream or walk. The returned error is nil for a client
// disconnect or a canceled ctx.
func (controller *Controller) Run(ctx context.Context, conn Conn) error {
	group, groupCtx := errgroup.WithContext(ctx)
	inbound := make(chan []byte, controller.inboundQueue)
	events := make(chan stream.Event)

	group.Go(func() error {
		<-groupCtx.Done()
		if closeErr := conn.Close(); closeErr != nil {
			controller.logger.Debug("close connection", zap.Error(closeErr))
		}
		return nil
	})

	group.Go(func() error {
		for {
			payload, readErr := conn.ReadMessage()
			if readErr != nil {
				return fmt.Errorf("%w: %v", ErrDisconnected, readErr)
			}
			select {
			case inbound <- payload:
			case <-groupCtx.Done():
				return nil
			}
		}
	})

	group.Go(func() error {
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case event := <-events:
				if writeErr := conn.WriteEvent(event); writeErr != nil {
					return fmt.Errorf("write %s event: %w", event.Type, writeErr)
				}
			}
		}
	})

	if pinger, ok := conn.(Pinger); ok && controller.pingInterval > 0 {
		group.Go(func() error {
			ticker := time.NewTicker(controller.pingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-groupCtx.Done():
					return nil
				case <-ticker.C:
					if pingErr := pinger.Ping(); pingErr != nil {
						return fmt.Errorf("%w: ping: %v", ErrDisconnected, pingErr)
					}
				}
			}
		})
	}

	group.Go(func() error {
		emitter := stream.NewEmitter(groupCtx, events)
		if err := emitter.Send(stream.Connection()); err != nil {
			return err
		}
		if controller.snapshotOnConnect {
			if err := controller.Snapshot(groupCtx, emitter.Send); err != nil {
				return err
			}
		}
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case raw := <-inbound:
				if err := controller.HandleInstruction(groupCtx, raw, emitter.Send); err != nil {
					return err
				}
			}
		}
	})

	runErr := group.Wait()
	switch {
	case runErr == nil:
		return nil
	case errors.Is(runErr, ErrDisconnected):
		controller.logger.Debug("client disconnected", zap.Error(runErr))
		return nil
	case ctx.Err() != nil && errors.Is(runErr, ctx.Err()):
		return nil
	default:
		return runErr
	}
}
