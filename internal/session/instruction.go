package session

import (
	"encoding/json"
	"errors"
)

var (
	// ErrInvalidFormat reports an inbound message that is not a JSON object.
	ErrInvalidFormat = errors.New("instruction is not a JSON object")
	// ErrInvalidPrompt reports a prompt that is absent, empty or not a string.
	ErrInvalidPrompt = errors.New("instruction prompt is missing or not a non-empty string")
)

// Instruction is one inbound request.
type Instruction struct {
	Prompt string
}

// ParseInstruction decodes raw into an Instruction. Fields other than prompt
// are ignored.
func ParseInstruction(raw []byte) (Instruction, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Instruction{}, ErrInvalidFormat
	}
	rawPrompt, present := fields["prompt"]
	if !present {
		return Instruction{}, ErrInvalidPrompt
	}
	var prompt string
	if err := json.Unmarshal(rawPrompt, &prompt); err != nil || prompt == "" {
		return Instruction{}, ErrInvalidPrompt
	}
	return Instruction{Prompt: prompt}, nil
}
