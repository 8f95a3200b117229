package utils_test

import (
	"testing"

	"github.com/temirov/codestream/internal/utils"
)

func TestNewLogger(t *testing.T) {
	testCases := []struct {
		name      string
		options   utils.LoggerOptions
		expectErr bool
	}{
		{name: "defaults", options: utils.LoggerOptions{}},
		{name: "json debug", options: utils.LoggerOptions{Level: "debug", Format: "json"}},
		{name: "console warn", options: utils.LoggerOptions{Level: "WARN", Format: "console"}},
		{name: "unknown level", options: utils.LoggerOptions{Level: "loud"}, expectErr: true},
		{name: "unknown format", options: utils.LoggerOptions{Format: "xml"}, expectErr: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			logger, err := utils.NewLogger(testCase.options)
			if testCase.expectErr {
				if err == nil {
					t.Fatalf("expected error for %+v", testCase.options)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewLogger error: %v", err)
			}
			if logger == nil {
				t.Fatalf("expected logger")
			}
		})
	}
}
