package utils

import (
	"errors"
	"os"
	"testing"
)

func TestLookupHostnameMatchesOS(t *testing.T) {
	expected, err := os.Hostname()
	if err != nil || expected == "" {
		t.Skip("host has no resolvable name")
	}

	if got := LookupHostname(); got != expected {
		t.Errorf("Expected hostname %q, got %q", expected, got)
	}
}

func TestHostnameOrDefault(t *testing.T) {
	tests := []struct {
		name     string
		lookup   func() (string, error)
		expected string
	}{
		{"resolved", func() (string, error) { return "web-01", nil }, "web-01"},
		{"trimmed", func() (string, error) { return " web-01\n", nil }, "web-01"},
		{"lookup error", func() (string, error) { return "", errors.New("uname failed") }, UnknownHostname},
		{"error wins over value", func() (string, error) { return "stale", errors.New("uname failed") }, UnknownHostname},
		{"blank name", func() (string, error) { return "  ", nil }, UnknownHostname},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HostnameOrDefault(tt.lookup); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}
