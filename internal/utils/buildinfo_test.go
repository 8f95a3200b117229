package utils

import (
	"runtime/debug"
	"testing"
)

func TestVersionFromSettings(t *testing.T) {
	testCases := []struct {
		name     string
		settings []debug.BuildSetting
		expected string
	}{
		{name: "no vcs", settings: nil, expected: unknownVersion},
		{
			name:     "clean revision",
			settings: []debug.BuildSetting{{Key: revisionSetting, Value: "0123456789abcdef0123"}},
			expected: "0123456789ab",
		},
		{
			name: "dirty revision",
			settings: []debug.BuildSetting{
				{Key: revisionSetting, Value: "abc123"},
				{Key: modifiedSetting, Value: "true"},
			},
			expected: "abc123-dirty",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if actual := versionFromSettings(testCase.settings); actual != testCase.expected {
				t.Fatalf("expected %q, got %q", testCase.expected, actual)
			}
		})
	}
}
