package session_test

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/codestream/internal/completion"
	"github.com/temirov/codestream/internal/services/stream"
)

// scriptedRelay yields fragments, then fails with failErr when it is set.
type scriptedRelay struct {
	fragments []string
	openErr   error
	failErr   error

	mutex    sync.Mutex
	requests []completion.Request
}

func (relay *scriptedRelay) Stream(ctx context.Context, request completion.Request) (completion.FragmentStream, error) {
	relay.mutex.Lock()
	relay.requests = append(relay.requests, request)
	relay.mutex.Unlock()
	if relay.openErr != nil {
		return nil, relay.openErr
	}
	return &scriptedStream{fragments: relay.fragments, failErr: relay.failErr}, nil
}

func (relay *scriptedRelay) recorded() []completion.Request {
	relay.mutex.Lock()
	defer relay.mutex.Unlock()
	return append([]completion.Request(nil), relay.requests...)
}

type scriptedStream struct {
	fragments []string
	failErr   error
	position  int
	closed    bool
}

func (fragments *scriptedStream) Next() (string, error) {
	if fragments.position < len(fragments.fragments) {
		fragment := fragments.fragments[fragments.position]
		fragments.position++
		return fragment, nil
	}
	if fragments.failErr != nil {
		return "", fragments.failErr
	}
	return "", io.EOF
}

func (fragments *scriptedStream) Close() error {
	fragments.closed = true
	return nil
}

// blockingRelay sends one fragment and then waits for its context to end.
type blockingRelay struct {
	started  chan struct{}
	canceled chan struct{}
}

func newBlockingRelay() *blockingRelay {
	return &blockingRelay{started: make(chan struct{}), canceled: make(chan struct{})}
}

func (relay *blockingRelay) Stream(ctx context.Context, request completion.Request) (completion.FragmentStream, error) {
	return &blockingStream{ctx: ctx, relay: relay}, nil
}

type blockingStream struct {
	ctx   context.Context
	relay *blockingRelay
	sent  bool
}

func (fragments *blockingStream) Next() (string, error) {
	if !fragments.sent {
		fragments.sent = true
		close(fragments.relay.started)
		return "partial", nil
	}
	<-fragments.ctx.Done()
	close(fragments.relay.canceled)
	return "", &completion.UpstreamError{Operation: "receive", Err: fragments.ctx.Err()}
}

func (fragments *blockingStream) Close() error { return nil }

// fakeConn is an in-memory transport. Closing inbound simulates a client disconnect.
type fakeConn struct {
	inbound  chan []byte
	events   chan stream.Event
	closed   chan struct{}
	once     sync.Once
	writeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte),
		events:  make(chan stream.Event, 256),
		closed:  make(chan struct{}),
	}
}

func (conn *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case payload, ok := <-conn.inbound:
		if !ok {
			return nil, io.EOF
		}
		return payload, nil
	case <-conn.closed:
		return nil, net.ErrClosed
	}
}

func (conn *fakeConn) WriteEvent(event stream.Event) error {
	if conn.writeErr != nil {
		return conn.writeErr
	}
	select {
	case conn.events <- event:
		return nil
	case <-conn.closed:
		return net.ErrClosed
	}
}

func (conn *fakeConn) Close() error {
	conn.once.Do(func() { close(conn.closed) })
	return nil
}

func (conn *fakeConn) send(t *testing.T, payload string) {
	t.Helper()
	select {
	case conn.inbound <- []byte(payload):
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out sending %q", payload)
	}
}

func (conn *fakeConn) next(t *testing.T) stream.Event {
	t.Helper()
	select {
	case event := <-conn.events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for an event")
		return stream.Event{}
	}
}

// untilTerminal collects events up to and including the next done or error.
func (conn *fakeConn) untilTerminal(t *testing.T) []stream.Event {
	t.Helper()
	var collected []stream.Event
	for {
		event := conn.next(t)
		collected = append(collected, event)
		if event.IsTerminal() {
			return collected
		}
	}
}

func collectEmit() (*[]stream.Event, func(stream.Event) error) {
	var events []stream.Event
	return &events, func(event stream.Event) error {
		events = append(events, event)
		return nil
	}
}

func eventTypes(events []stream.Event) []stream.EventType {
	types := make([]stream.EventType, 0, len(events))
	for _, event := range events {
		types = append(types, event.Type)
	}
	return types
}

func waitForRun(t *testing.T, result <-chan error) error {
	t.Helper()
	select {
	case err := <-result:
		return err
	case <-time.After(2 * time.Second):
		require.FailNow(t, "session did not stop")
		return errors.New("unreachable")
	}
}
