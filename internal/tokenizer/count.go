package tokenizer

import (
	"errors"
	"unicode/utf8"

	"github.com/temirov/codestream/internal/utils"
)

// CountResult captures the outcome of counting a byte slice.
type CountResult struct {
	Tokens  int
	Counted bool
}

// CountBytes estimates tokens for the provided data using counter.
func CountBytes(counter Counter, data []byte) (CountResult, error) {
	if counter == nil {
		return CountResult{}, errors.New("nil tokenizer counter")
	}
	if len(data) == 0 {
		tokens, err := counter.CountString("")
		if err != nil {
			return CountResult{}, err
		}
		return CountResult{Tokens: tokens, Counted: true}, nil
	}
	if utils.IsBinary(data) {
		return CountResult{Counted: false}, nil
	}
	if !utf8.Valid(data) {
		return CountResult{Counted: false}, nil
	}
	tokens, err := counter.CountString(string(data))
	if err != nil {
		return CountResult{}, err
	}
	return CountResult{Tokens: tokens, Counted: true}, nil
}

// Usage accumulates token estimates for one instruction. Completion text is
// counted fragment by fragment, so the total is an estimate.
type Usage struct {
	counter    Counter
	Prompt     int
	Completion int
	Fragments  int
}

// NewUsage returns a Usage that counts nothing when counter is nil.
func NewUsage(counter Counter) *Usage {
	return &Usage{counter: counter}
}

func (usage *Usage) AddPrompt(text string) error {
	tokens, err := usage.count(text)
	usage.Prompt += tokens
	return err
}

func (usage *Usage) AddFragment(fragment string) error {
	usage.Fragments++
	tokens, err := usage.count(fragment)
	usage.Completion += tokens
	return err
}

// Enabled reports whether a counter is attached.
func (usage *Usage) Enabled() bool {
	return usage.counter != nil
}

func (usage *Usage) count(text string) (int, error) {
	if usage.counter == nil {
		return 0, nil
	}
	result, err := CountBytes(usage.counter, []byte(text))
	if err != nil {
		return 0, err
	}
	return result.Tokens, nil
}
