package tokenizer

import (
	"errors"
	"testing"
)

type testCounter struct{}

func (testCounter) Name() string { return "stub" }

func (testCounter) CountString(input string) (int, error) { return len([]rune(input)), nil }

type failingCounter struct{}

func (failingCounter) Name() string { return "failing" }

func (failingCounter) CountString(string) (int, error) { return 0, errors.New("encoder unavailable") }

func TestCountBytesText(t *testing.T) {
	result, err := CountBytes(testCounter{}, []byte("hello"))
	if err != nil {
		t.Fatalf("CountBytes error: %v", err)
	}
	if !result.Counted {
		t.Fatalf("expected counted result")
	}
	if result.Tokens != len([]rune("hello")) {
		t.Fatalf("expected %d tokens, got %d", len([]rune("hello")), result.Tokens)
	}
}

func TestCountBytesBinary(t *testing.T) {
	data := []byte{0x00, 0x01, 0x02}
	result, err := CountBytes(testCounter{}, data)
	if err != nil {
		t.Fatalf("CountBytes error: %v", err)
	}
	if result.Counted {
		t.Fatalf("expected binary data to be skipped")
	}
}

func TestCountBytesNilCounter(t *testing.T) {
	if _, err := CountBytes(nil, []byte("x")); err == nil {
		t.Fatalf("expected error for nil counter")
	}
}

func TestUsageAccumulatesPromptAndFragments(t *testing.T) {
	usage := NewUsage(testCounter{})
	if err := usage.AddPrompt("hello"); err != nil {
		t.Fatalf("AddPrompt: %v", err)
	}
	for _, fragment := range []string{"Hi", " there"} {
		if err := usage.AddFragment(fragment); err != nil {
			t.Fatalf("AddFragment: %v", err)
		}
	}
	if !usage.Enabled() {
		t.Fatalf("expected usage to be enabled")
	}
	if usage.Prompt != 5 || usage.Completion != 8 || usage.Fragments != 2 {
		t.Fatalf("unexpected usage %+v", *usage)
	}
}

func TestUsageWithoutCounter(t *testing.T) {
	usage := NewUsage(nil)
	if err := usage.AddFragment("ignored"); err != nil {
		t.Fatalf("AddFragment: %v", err)
	}
	if usage.Enabled() || usage.Completion != 0 || usage.Fragments != 1 {
		t.Fatalf("unexpected usage %+v", *usage)
	}
}

func TestUsageReportsCounterErrors(t *testing.T) {
	usage := NewUsage(failingCounter{})
	if err := usage.AddPrompt("hello"); err == nil {
		t.Fatalf("expected counter error")
	}
}
