package mermaid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		valid bool
	}{
		{"valid flowchart", "flowchart TD\n  A --> B", true},
		{"valid graph alias", "graph TD\n  A --> B", true},
		{"valid sequence diagram", "sequenceDiagram\n  Alice->>Bob: Hello", true},
		{"valid class diagram", "classDiagram\n  class Animal\n  Animal : +String name", true},
		{"valid pie chart", "pie\n  \"Cats\" : 40\n  \"Dogs\" : 60", true},
		{"leading comment skipped", "%% a comment\nflowchart LR\n  A --> B", true},
		{"invalid syntax", "not a valid diagram {{{", false},
		{"empty string", "", false},
		{"whitespace only", "   \n\t  ", false},
		{"comment only", "%% nothing here", false},
		{"unknown diagram type", "scatterplot\n  A B", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := Validate(tc.input)
			assert.Equal(t, tc.valid, result.Valid)
			if !tc.valid {
				assert.NotEmpty(t, result.Errors)
			} else {
				assert.Empty(t, result.Errors)
			}
		})
	}
}
