package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/temirov/codestream/internal/types"
	"github.com/temirov/codestream/internal/walker"
)

// ErrSnapshotFailed marks a walk that failed after its error event was sent.
var ErrSnapshotFailed = errors.New("file snapshot failed")

// StreamSnapshot walks options.Root and sends one file event per file followed
// by file_stream_done. When the walk fails it sends exactly one error event,
// never file_stream_done, and returns an error matching ErrSnapshotFailed.
// Any other returned error came from send and ends the caller's session.
func StreamSnapshot(ctx context.Context, options walker.Options, send func(Event) error) (walker.Summary, error) {
	var sendErr error
	summary, walkErr := walker.Walk(ctx, options, func(descriptor types.FileDescriptor) error {
		if err := send(DiscoveredFile(descriptor)); err != nil {
			sendErr = err
			return err
		}
		return nil
	})
	if sendErr != nil {
		return summary, sendErr
	}
	if walkErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return summary, ctxErr
		}
		if err := send(Failure(MessageFileStreamFailed)); err != nil {
			return summary, err
		}
		return summary, fmt.Errorf("%w: %w", ErrSnapshotFailed, walkErr)
	}
	return summary, send(FileStreamDone())
}
