package completion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIOptions configures OpenAIRelay.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OpenAIRelay streams chat completions through go-openai. One relay is shared
// by every session; the underlying client is safe for concurrent use.
type OpenAIRelay struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIRelay validates options and constructs the client.
func NewOpenAIRelay(options OpenAIOptions) (*OpenAIRelay, error) {
	apiKey := strings.TrimSpace(options.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai relay: api key is empty")
	}
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL := strings.TrimSpace(options.BaseURL); baseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if options.HTTPClient != nil {
		clientConfig.HTTPClient = options.HTTPClient
	}
	model := strings.TrimSpace(options.Model)
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIRelay{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: options.Timeout,
	}, nil
}

// requestContext bounds one provider request by timeout when it is positive.
func requestContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// Stream implements Relay.
func (relay *OpenAIRelay) Stream(ctx context.Context, request Request) (FragmentStream, error) {
	streamCtx, cancel := requestContext(ctx, relay.timeout)

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if request.Instructions != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: request.Instructions})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: request.Prompt})

	stream, err := relay.client.CreateChatCompletionStream(streamCtx, openai.ChatCompletionRequest{
		Model:    relay.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		cancel()
		return nil, &UpstreamError{Operation: "open", Err: err}
	}
	return &openAIStream{stream: stream, cancel: cancel}, nil
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
	cancel context.CancelFunc
}

// Next skips deltas without text, such as the role preamble and the finish chunk.
func (fragments *openAIStream) Next() (string, error) {
	for {
		response, err := fragments.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", &UpstreamError{Operation: "receive", Err: err}
		}
		if len(response.Choices) == 0 {
			continue
		}
		if content := response.Choices[0].Delta.Content; content != "" {
			return content, nil
		}
	}
}

func (fragments *openAIStream) Close() error {
	fragments.stream.Close()
	fragments.cancel()
	return nil
}

// String describes the relay for logs.
func (relay *OpenAIRelay) String() string {
	return fmt.Sprintf("openai(%s)", relay.model)
}
