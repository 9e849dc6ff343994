package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollapseSpace(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "only whitespace",
			input:    " \t\n ",
			expected: "",
		},
		{
			name:     "trims both ends",
			input:    "  foo  ",
			expected: "foo",
		},
		{
			name:     "collapses internal runs",
			input:    "1   Main \t\n St",
			expected: "1 Main St",
		},
		{
			name:     "preserves case",
			input:    "Jane  DOE",
			expected: "Jane DOE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CollapseSpace(tt.input))
		})
	}
}

func TestLength(t *testing.T) {
	assert.Equal(t, 0, Length(""))
	assert.Equal(t, 5, Length("hello"))
	assert.Equal(t, 4, Length("café"))
}
