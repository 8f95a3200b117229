package completion

import (
	"context"
	"io"
	"strings"
)

const echoPrefix = "echo:"

// EchoRelay streams the prompt back one word per fragment. It needs no
// credential and is meant for local runs of the dashboard.
type EchoRelay struct{}

// Stream implements Relay.
func (EchoRelay) Stream(ctx context.Context, request Request) (FragmentStream, error) {
	fragments := []string{echoPrefix}
	for _, word := range strings.Fields(request.Prompt) {
		fragments = append(fragments, " "+word)
	}
	return &sliceStream{ctx: ctx, fragments: fragments}, nil
}

type sliceStream struct {
	ctx       context.Context
	fragments []string
	position  int
}

func (stream *sliceStream) Next() (string, error) {
	if err := stream.ctx.Err(); err != nil {
		return "", &UpstreamError{Operation: "receive", Err: err}
	}
	if stream.position >= len(stream.fragments) {
		return "", io.EOF
	}
	fragment := stream.fragments[stream.position]
	stream.position++
	return fragment, nil
}

func (stream *sliceStream) Close() error {
	stream.position = len(stream.fragments)
	return nil
}
