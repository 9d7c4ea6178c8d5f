// Package mermaid validates mermaid diagram text before it is accepted
// into a session. Validation is structural: the first significant line
// must open with a recognized diagram-type keyword. Deeper syntax
// checking happens downstream when the diagram renders.
package mermaid

import (
	"fmt"
	"regexp"
	"strings"
)

// Result is the outcome of validating one diagram.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidateFunc is the shape consumed by the session registry.
type ValidateFunc func(input string) Result

// knownDiagramKeywords lists every diagram type keyword (including
// aliases) that the rendering side understands.
var knownDiagramKeywords = map[string]bool{
	"flowchart":          true,
	"graph":              true,
	"sequenceDiagram":    true,
	"classDiagram":       true,
	"stateDiagram":       true,
	"stateDiagram-v2":    true,
	"erDiagram":          true,
	"journey":            true,
	"gantt":              true,
	"pie":                true,
	"quadrantChart":      true,
	"requirementDiagram": true,
	"gitGraph":           true,
	"C4Context":          true,
	"C4Container":        true,
	"C4Component":        true,
	"C4Deployment":       true,
	"mindmap":            true,
	"timeline":           true,
	"zenuml":             true,
	"sankey-beta":        true,
	"xychart-beta":       true,
	"block-beta":         true,
	"packet-beta":        true,
	"kanban":             true,
	"architecture-beta":  true,
	"info":               true,
	"packet":             true,
	"architecture":       true,
	"radar":              true,
	"treemap":            true,
}

var keywordPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]*`)

// extractDiagramType returns the first significant token of the first
// non-empty, non-comment line. It may be followed by direction or other
// options (e.g. "flowchart TD").
func extractDiagramType(input string) string {
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "%%") {
			continue
		}
		return keywordPattern.FindString(trimmed)
	}
	return ""
}

// Validate checks a mermaid diagram string. Empty input, input with no
// determinable diagram type, and unrecognized diagram types are
// rejected; recognized types are accepted.
func Validate(input string) Result {
	if strings.TrimSpace(input) == "" {
		return Result{Valid: false, Errors: []string{"input is empty"}}
	}

	diagramType := extractDiagramType(input)
	if diagramType == "" {
		return Result{Valid: false, Errors: []string{"could not determine diagram type from input"}}
	}

	if !knownDiagramKeywords[diagramType] {
		return Result{Valid: false, Errors: []string{fmt.Sprintf("unrecognized diagram type: %q", diagramType)}}
	}

	return Result{Valid: true}
}
