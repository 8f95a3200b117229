// Package session runs one client connection: it parses instructions, routes
// them to the completion relay or the file walker and emits the resulting
// events in order.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/codestream/internal/classifier"
	"github.com/temirov/codestream/internal/completion"
	"github.com/temirov/codestream/internal/services/stream"
	"github.com/temirov/codestream/internal/tokenizer"
	"github.com/temirov/codestream/internal/walker"
)

const defaultInboundQueue = 8

// Dependencies are shared by every session of a process. None of them hold
// per-session state.
type Dependencies struct {
	Relay             completion.Relay
	Intents           classifier.IntentClassifier
	Walker            walker.Options
	SnapshotOnConnect bool
	TokenCounter      tokenizer.Counter
	InboundQueue      int
	PingInterval      time.Duration
}

// Controller owns the lifecycle of a single connection.
type Controller struct {
	relay             completion.Relay
	intents           classifier.IntentClassifier
	walker            walker.Options
	snapshotOnConnect bool
	tokenCounter      tokenizer.Counter
	inboundQueue      int
	pingInterval      time.Duration
	logger            *zap.Logger
}

// New builds a controller for one connection.
func New(dependencies Dependencies, logger *zap.Logger) (*Controller, error) {
	if dependencies.Relay == nil {
		return nil, errors.New("session: completion relay is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	intents := dependencies.Intents
	if intents == nil {
		intents = classifier.NewSubstringClassifier(nil)
	}
	inboundQueue := dependencies.InboundQueue
	if inboundQueue <= 0 {
		inboundQueue = defaultInboundQueue
	}
	walkerOptions := dependencies.Walker
	if walkerOptions.Warn == nil {
		walkerOptions.Warn = func(message string) {
			logger.Warn("file snapshot", zap.String("detail", message))
		}
	}
	return &Controller{
		relay:             dependencies.Relay,
		intents:           intents,
		walker:            walkerOptions,
		snapshotOnConnect: dependencies.SnapshotOnConnect,
		tokenCounter:      dependencies.TokenCounter,
		inboundQueue:      inboundQueue,
		pingInterval:      dependencies.PingInterval,
		logger:            logger,
	}, nil
}

// HandleInstruction processes one raw inbound message and emits its events,
// always ending with exactly one done or error event. Protocol and upstream
// failures are reported to the client and yield a nil return; the returned
// error is always an emit failure, which ends the session.
func (controller *Controller) HandleInstruction(ctx context.Context, raw []byte, emit func(stream.Event) error) error {
	instruction, parseErr := ParseInstruction(raw)
	if parseErr != nil {
		message := stream.MessageInvalidPrompt
		if errors.Is(parseErr, ErrInvalidFormat) {
			message = stream.MessageInvalidFormat
		}
		controller.logger.Debug("rejected instruction", zap.Error(parseErr), zap.Int("bytes", len(raw)))
		return emit(stream.Failure(message))
	}

	intent := controller.intents.Classify(instruction.Prompt)
	logger := controller.logger.With(zap.Stringer("intent", intent))
	logger.Debug("instruction accepted", zap.Int("prompt_bytes", len(instruction.Prompt)))

	usage := tokenizer.NewUsage(controller.tokenCounter)
	if err := usage.AddPrompt(instruction.Prompt); err != nil {
		logger.Debug("token counting failed", zap.Error(err))
	}
	defer func() {
		if usage.Enabled() {
			logger.Info("instruction usage",
				zap.Int("prompt_tokens", usage.Prompt),
				zap.Int("completion_tokens", usage.Completion),
				zap.Int("fragments", usage.Fragments))
		}
	}()

	if intent == classifier.IntentGenerate {
		return controller.generate(ctx, instruction, usage, logger, emit)
	}
	return controller.chat(ctx, instruction, usage, logger, emit)
}

func (controller *Controller) chat(ctx context.Context, instruction Instruction, usage *tokenizer.Usage, logger *zap.Logger, emit func(stream.Event) error) error {
	request := completion.Request{Prompt: instruction.Prompt}
	return controller.relayFragments(ctx, request, stream.MessageChatFailed, logger, emit, func(fragment string) error {
		countFragment(usage, fragment, logger)
		return emit(stream.Chunk(fragment))
	})
}

func (controller *Controller) generate(ctx context.Context, instruction Instruction, usage *tokenizer.Usage, logger *zap.Logger, emit func(stream.Event) error) error {
	parser := classifier.NewFileParser()
	request := completion.Request{Prompt: instruction.Prompt, Instructions: classifier.GenerationInstructions}
	emitted := 0
	err := controller.relayFragments(ctx, request, stream.MessageGenerationFailed, logger, emit, func(fragment string) error {
		countFragment(usage, fragment, logger)
		for _, unit := range parser.Feed(fragment) {
			if err := emit(stream.GeneratedFile(unit)); err != nil {
				return err
			}
			emitted++
		}
		return nil
	})
	if pending := parser.Pending(); pending > 0 && err == nil {
		logger.Debug("dropped unterminated generation text", zap.Int("bytes", pending))
	}
	logger.Debug("generation finished", zap.Int("files", emitted))
	return err
}

// relayFragments drives one relay stream through onFragment and ends it with
// done, or with failureMessage when the provider fails.
func (controller *Controller) relayFragments(ctx context.Context, request completion.Request, failureMessage string, logger *zap.Logger, emit func(stream.Event) error, onFragment func(string) error) error {
	fragments, openErr := controller.relay.Stream(ctx, request)
	if openErr != nil {
		return controller.fail(ctx, openErr, failureMessage, logger, emit)
	}
	defer fragments.Close()

	for {
		fragment, nextErr := fragments.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}
		if nextErr != nil {
			return controller.fail(ctx, nextErr, failureMessage, logger, emit)
		}
		if err := onFragment(fragment); err != nil {
			return err
		}
	}
	return emit(stream.Done())
}

func (controller *Controller) fail(ctx context.Context, cause error, failureMessage string, logger *zap.Logger, emit func(stream.Event) error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	logger.Warn("completion failed", zap.Error(cause))
	return emit(stream.Failure(failureMessage))
}

func countFragment(usage *tokenizer.Usage, fragment string, logger *zap.Logger) {
	if err := usage.AddFragment(fragment); err != nil {
		logger.Debug("token counting failed", zap.Error(err))
	}
}

// Snapshot streams the configured root as file events followed by
// file_stream_done. A failed walk is reported with a single error event and
// does not end the session.
func (controller *Controller) Snapshot(ctx context.Context, emit func(stream.Event) error) error {
	summary, err := stream.StreamSnapshot(ctx, controller.walker, emit)
	if errors.Is(err, stream.ErrSnapshotFailed) {
		controller.logger.Warn("file snapshot failed", zap.String("root", controller.walker.Root), zap.Error(err))
		return nil
	}
	if err != nil {
		return fmt.Errorf("stream file snapshot: %w", err)
	}
	controller.logger.Debug("file snapshot sent",
		zap.Int("files", summary.Files),
		zap.Int64("bytes", summary.Bytes),
		zap.Int("skipped", summary.Skipped))
	return nil
}
