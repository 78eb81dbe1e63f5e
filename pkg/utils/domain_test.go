package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripPort(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		expected string
	}{
		{"no port", "courses.example.com", "courses.example.com"},
		{"with port", "courses.example.com:18000", "courses.example.com"},
		{"port only separator", "courses.example.com:", "courses.example.com"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripPort(tt.host))
		})
	}
}

func TestNormalizeDomain(t *testing.T) {
	assert.Equal(t, "courses.example.com", NormalizeDomain("Courses.Example.COM:8000"))
	assert.Equal(t, "a.example.com", NormalizeDomain("  a.example.com "))
}

func TestIsValidDomain(t *testing.T) {
	tests := []struct {
		domain string
		valid  bool
	}{
		{"cursos.example.co", true},
		{"a.example.com", true},
		{"sub.domain.example.org", true},
		{"localhost", false},
		{"", false},
		{"-bad.example.com", false},
		{"example..com", false},
		{"exa mple.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidDomain(tt.domain))
		})
	}
}
