package session_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/codestream/internal/classifier"
	"github.com/temirov/codestream/internal/completion"
	"github.com/temirov/codestream/internal/services/stream"
	"github.com/temirov/codestream/internal/session"
	"github.com/temirov/codestream/internal/types"
)

const loginUnit = "Here you go.\n--- FILE: src/Login.tsx ---\nexport function Login() {\n  return <form />\n}\n--- END FILE ---\nDone."

func generatedLogin() types.GeneratedFile {
	return types.GeneratedFile{Path: "src/Login.tsx", Content: "export function Login() {\n  return <form />\n}"}
}

func newController(t *testing.T, relay completion.Relay) *session.Controller {
	t.Helper()
	controller, err := session.New(session.Dependencies{Relay: relay}, zap.NewNop())
	require.NoError(t, err)
	return controller
}

func TestNewRequiresRelay(t *testing.T) {
	_, err := session.New(session.Dependencies{}, nil)
	require.Error(t, err)
}

func TestParseInstruction(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		prompt   string
		expected error
	}{
		{name: "prompt", raw: `{"prompt":"hello"}`, prompt: "hello"},
		{name: "extra fields ignored", raw: `{"prompt":"hi","model":"x"}`, prompt: "hi"},
		{name: "whitespace prompt kept", raw: `{"prompt":"  "}`, prompt: "  "},
		{name: "not json", raw: `not json`, expected: session.ErrInvalidFormat},
		{name: "json array", raw: `["hello"]`, expected: session.ErrInvalidFormat},
		{name: "json string", raw: `"hello"`, expected: session.ErrInvalidFormat},
		{name: "json null", raw: `null`, expected: session.ErrInvalidFormat},
		{name: "empty payload", raw: ``, expected: session.ErrInvalidFormat},
		{name: "missing prompt", raw: `{"text":"hello"}`, expected: session.ErrInvalidPrompt},
		{name: "empty prompt", raw: `{"prompt":""}`, expected: session.ErrInvalidPrompt},
		{name: "null prompt", raw: `{"prompt":null}`, expected: session.ErrInvalidPrompt},
		{name: "numeric prompt", raw: `{"prompt":42}`, expected: session.ErrInvalidPrompt},
		{name: "object prompt", raw: `{"prompt":{"text":"hello"}}`, expected: session.ErrInvalidPrompt},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			instruction, err := session.ParseInstruction([]byte(testCase.raw))
			if testCase.expected != nil {
				require.ErrorIs(t, err, testCase.expected)
				return
			}
			require.NoError(t, err)
			require.Equal(t, testCase.prompt, instruction.Prompt)
		})
	}
}

func TestHandleInstructionChatStreamsFragments(t *testing.T) {
	relay := &scriptedRelay{fragments: []string{"Hi", " there"}}
	controller := newController(t, relay)
	events, emit := collectEmit()

	require.NoError(t, controller.HandleInstruction(context.Background(), []byte(`{"prompt":"hello"}`), emit))

	require.Equal(t, []stream.Event{stream.Chunk("Hi"), stream.Chunk(" there"), stream.Done()}, *events)
	requests := relay.recorded()
	require.Len(t, requests, 1)
	require.Equal(t, completion.Request{Prompt: "hello"}, requests[0])
}

func TestHandleInstructionChatConcatenationMatchesUpstream(t *testing.T) {
	upstream := []string{"The ", "quick ", "", "brown", " fox ", "ünïcode ", "😀"}
	controller := newController(t, &scriptedRelay{fragments: upstream})
	events, emit := collectEmit()

	require.NoError(t, controller.HandleInstruction(context.Background(), []byte(`{"prompt":"tell me"}`), emit))

	var builder strings.Builder
	for _, event := range (*events)[:len(*events)-1] {
		require.Equal(t, stream.EventTypeChunk, event.Type)
		builder.WriteString(event.Chunk)
	}
	require.Equal(t, strings.Join(upstream, ""), builder.String())
	require.Equal(t, stream.EventTypeDone, (*events)[len(*events)-1].Type)
}

func TestHandleInstructionGenerationEmitsFiles(t *testing.T) {
	fragments := make([]string, 0, len(loginUnit))
	for _, character := range loginUnit {
		fragments = append(fragments, string(character))
	}
	relay := &scriptedRelay{fragments: fragments}
	controller := newController(t, relay)
	events, emit := collectEmit()

	require.NoError(t, controller.HandleInstruction(context.Background(), []byte(`{"prompt":"create application with a login form"}`), emit))

	require.Equal(t, []stream.EventType{stream.EventTypeFile, stream.EventTypeDone}, eventTypes(*events))
	file := (*events)[0].File
	require.NotNil(t, file)
	require.Equal(t, "src/Login.tsx", file.Path)
	require.Equal(t, "Login.tsx", file.Filename)
	require.Equal(t, "tsx", file.Filetype)
	require.Equal(t, "stream", file.Action)
	require.NotNil(t, file.Content)
	require.Equal(t, "export function Login() {\n  return <form />\n}", *file.Content)

	requests := relay.recorded()
	require.Len(t, requests, 1)
	require.Equal(t, classifier.GenerationInstructions, requests[0].Instructions)
}

func TestHandleInstructionGenerationDropsUnterminatedTail(t *testing.T) {
	relay := &scriptedRelay{fragments: []string{loginUnit, "\n--- FILE: src/Half.tsx ---\nexport const"}}
	controller := newController(t, relay)
	events, emit := collectEmit()

	require.NoError(t, controller.HandleInstruction(context.Background(), []byte(`{"prompt":"create application"}`), emit))
	require.Equal(t, []stream.EventType{stream.EventTypeFile, stream.EventTypeDone}, eventTypes(*events))
}

func TestHandleInstructionFailures(t *testing.T) {
	upstreamErr := &completion.UpstreamError{Operation: "receive", Err: errors.New("connection reset by peer")}
	testCases := []struct {
		name     string
		raw      string
		relay    *scriptedRelay
		expected []stream.Event
	}{
		{
			name:     "malformed payload",
			raw:      `not json`,
			relay:    &scriptedRelay{},
			expected: []stream.Event{stream.Failure(stream.MessageInvalidFormat)},
		},
		{
			name:     "missing prompt",
			raw:      `{}`,
			relay:    &scriptedRelay{fragments: []string{"unused"}},
			expected: []stream.Event{stream.Failure(stream.MessageInvalidPrompt)},
		},
		{
			name:     "non string prompt",
			raw:      `{"prompt":["create application"]}`,
			relay:    &scriptedRelay{fragments: []string{"unused"}},
			expected: []stream.Event{stream.Failure(stream.MessageInvalidPrompt)},
		},
		{
			name:     "chat open failure",
			raw:      `{"prompt":"hello"}`,
			relay:    &scriptedRelay{openErr: upstreamErr},
			expected: []stream.Event{stream.Failure(stream.MessageChatFailed)},
		},
		{
			name:     "chat failure mid stream",
			raw:      `{"prompt":"hello"}`,
			relay:    &scriptedRelay{fragments: []string{"Hi"}, failErr: upstreamErr},
			expected: []stream.Event{stream.Chunk("Hi"), stream.Failure(stream.MessageChatFailed)},
		},
		{
			name:     "generation open failure",
			raw:      `{"prompt":"create application"}`,
			relay:    &scriptedRelay{openErr: upstreamErr},
			expected: []stream.Event{stream.Failure(stream.MessageGenerationFailed)},
		},
		{
			name:  "generation failure keeps emitted files",
			raw:   `{"prompt":"create application"}`,
			relay: &scriptedRelay{fragments: []string{loginUnit}, failErr: upstreamErr},
			expected: []stream.Event{
				stream.GeneratedFile(generatedLogin()),
				stream.Failure(stream.MessageGenerationFailed),
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			controller := newController(t, testCase.relay)
			events, emit := collectEmit()
			require.NoError(t, controller.HandleInstruction(context.Background(), []byte(testCase.raw), emit))
			require.Equal(t, testCase.expected, *events)
		})
	}
}

func TestHandleInstructionReturnsEmitErrors(t *testing.T) {
	controller := newController(t, &scriptedRelay{fragments: []string{"a", "b", "c"}})
	transportErr := errors.New("broken pipe")
	calls := 0
	err := controller.HandleInstruction(context.Background(), []byte(`{"prompt":"hello"}`), func(stream.Event) error {
		calls++
		return transportErr
	})
	require.ErrorIs(t, err, transportErr)
	require.Equal(t, 1, calls)
}

func TestHandleInstructionKeepsUpstreamDetailOutOfEvents(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	relay := &scriptedRelay{openErr: &completion.UpstreamError{Operation: "open", Err: errors.New("401 invalid api key sk-secret")}}
	controller, err := session.New(session.Dependencies{Relay: relay}, zap.New(core))
	require.NoError(t, err)
	events, emit := collectEmit()

	require.NoError(t, controller.HandleInstruction(context.Background(), []byte(`{"prompt":"hello"}`), emit))

	require.Len(t, *events, 1)
	require.NotContains(t, (*events)[0].Message, "sk-secret")
	failures := logs.FilterMessage("completion failed").All()
	require.Len(t, failures, 1)
	require.Equal(t, "chat", failures[0].ContextMap()["intent"])
}

func TestHandleInstructionUsesInjectedClassifier(t *testing.T) {
	relay := &scriptedRelay{fragments: []string{loginUnit}}
	alwaysGenerate := classifier.IntentClassifierFunc(func(string) classifier.Intent { return classifier.IntentGenerate })
	controller, err := session.New(session.Dependencies{Relay: relay, Intents: alwaysGenerate}, zap.NewNop())
	require.NoError(t, err)
	events, emit := collectEmit()

	require.NoError(t, controller.HandleInstruction(context.Background(), []byte(`{"prompt":"make me a page"}`), emit))
	require.Equal(t, []stream.EventType{stream.EventTypeFile, stream.EventTypeDone}, eventTypes(*events))
}

func TestHandleInstructionLogsUsageWhenCounting(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	relay := &scriptedRelay{fragments: []string{"Hi", " there"}}
	controller, err := session.New(session.Dependencies{Relay: relay, TokenCounter: runeCounter{}}, zap.New(core))
	require.NoError(t, err)
	_, emit := collectEmit()

	require.NoError(t, controller.HandleInstruction(context.Background(), []byte(`{"prompt":"hello"}`), emit))

	entries := logs.FilterMessage("instruction usage").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.EqualValues(t, 5, fields["prompt_tokens"])
	require.EqualValues(t, 8, fields["completion_tokens"])
	require.EqualValues(t, 2, fields["fragments"])
}

type runeCounter struct{}

func (runeCounter) Name() string { return "runes" }

func (runeCounter) CountString(input string) (int, error) { return len([]rune(input)), nil }
