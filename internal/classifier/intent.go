package classifier

import "strings"

// DefaultGenerationTrigger is the phrase that routes a prompt to file generation.
const DefaultGenerationTrigger = "create application"

// Intent is the processing path chosen for a prompt.
type Intent int

const (
	// IntentChat streams the completion back as raw text.
	IntentChat Intent = iota
	// IntentGenerate parses the completion into generated files.
	IntentGenerate
)

// String returns the lowercase name of the intent.
func (intent Intent) String() string {
	switch intent {
	case IntentGenerate:
		return "generate"
	default:
		return "chat"
	}
}

// IntentClassifier chooses the processing path for a prompt.
type IntentClassifier interface {
	Classify(prompt string) Intent
}

// IntentClassifierFunc adapts a function into an IntentClassifier.
type IntentClassifierFunc func(prompt string) Intent

// Classify invokes the underlying function.
func (classify IntentClassifierFunc) Classify(prompt string) Intent {
	return classify(prompt)
}

// SubstringClassifier selects IntentGenerate when the prompt contains any trigger verbatim.
// Matching is case sensitive.
type SubstringClassifier struct {
	triggers []string
}

// NewSubstringClassifier builds a classifier for the provided triggers, falling
// back to DefaultGenerationTrigger when none are usable.
func NewSubstringClassifier(triggers []string) SubstringClassifier {
	usable := make([]string, 0, len(triggers))
	for _, trigger := range triggers {
		if trigger != "" {
			usable = append(usable, trigger)
		}
	}
	if len(usable) == 0 {
		usable = append(usable, DefaultGenerationTrigger)
	}
	return SubstringClassifier{triggers: usable}
}

// Classify implements IntentClassifier.
func (classifier SubstringClassifier) Classify(prompt string) Intent {
	for _, trigger := range classifier.triggers {
		if strings.Contains(prompt, trigger) {
			return IntentGenerate
		}
	}
	return IntentChat
}
