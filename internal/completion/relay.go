// Package completion relays streamed language-model completions as an ordered,
// pull-based sequence of text fragments.
package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// ProviderOpenAI streams from an OpenAI compatible chat completion endpoint.
	ProviderOpenAI = "openai"
	// ProviderEcho streams the prompt back without network access.
	ProviderEcho = "echo"

	// DefaultModel matches the model the dashboard was built against.
	DefaultModel = "gpt-4"
)

// ErrUpstream matches every failure raised by a provider, including transport
// failures and timeouts.
var ErrUpstream = errors.New("completion upstream failure")

// UpstreamError records which relay operation failed.
type UpstreamError struct {
	Operation string
	Err       error
}

// Error returns the error string.
func (upstreamError *UpstreamError) Error() string {
	return fmt.Sprintf("completion upstream %s: %v", upstreamError.Operation, upstreamError.Err)
}

// Unwrap exposes the provider error.
func (upstreamError *UpstreamError) Unwrap() error {
	return upstreamError.Err
}

// Is reports whether target is ErrUpstream.
func (upstreamError *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// Request is one completion call.
type Request struct {
	Prompt       string
	Instructions string
}

// FragmentStream yields fragments in provider order. Next returns io.EOF once
// the provider signals completion; any other error is terminal.
type FragmentStream interface {
	Next() (string, error)
	Close() error
}

// Relay opens one provider stream per call and never retries.
type Relay interface {
	Stream(ctx context.Context, request Request) (FragmentStream, error)
}

// Options selects and configures a provider.
type Options struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
}

// NewRelay builds the relay named by options.Provider.
func NewRelay(options Options) (Relay, error) {
	provider := strings.ToLower(strings.TrimSpace(options.Provider))
	switch provider {
	case "", ProviderOpenAI:
		return NewOpenAIRelay(OpenAIOptions{
			APIKey:  options.APIKey,
			BaseURL: options.BaseURL,
			Model:   options.Model,
			Timeout: options.Timeout,
		})
	case ProviderEcho:
		return EchoRelay{}, nil
	default:
		return nil, fmt.Errorf("unsupported completion provider %q", options.Provider)
	}
}
