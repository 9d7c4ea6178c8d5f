// Package dehydrate converts a pushed vector-diagram document into
// mermaid flowchart text. Shapes (rectangles, ellipses, diamonds)
// become nodes, bound text elements become labels, and arrows with
// shape bindings at both ends become edges. Non-default shape colors
// are carried over as mermaid style directives.
package dehydrate

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Highlight palette shared with the editing surface. Fill and stroke
// render as background and stroke colors on the canvas side.
var HighlightColors = map[string]struct{ Fill, Stroke string }{
	"blue":   {Fill: "#d0ebff", Stroke: "#1971c2"},
	"yellow": {Fill: "#fff3bf", Stroke: "#fab005"},
	"red":    {Fill: "#ffe0e0", Stroke: "#e03131"},
	"green":  {Fill: "#d3f9d8", Stroke: "#2f9e44"},
}

// Canvas default colors; shapes using these get no style directive.
const (
	defaultStroke     = "#1e1e1e"
	defaultBackground = "transparent"
)

// Binding ties an arrow endpoint or a bound text element to a shape.
type Binding struct {
	ElementID string `json:"elementId,omitempty"`
	ID        string `json:"id,omitempty"`
	Type      string `json:"type,omitempty"`
}

// Element is one item of a pushed document. Only the fields relevant to
// conversion are decoded.
type Element struct {
	ID              string     `json:"id"`
	Type            string     `json:"type"`
	Text            string     `json:"text,omitempty"`
	ContainerID     string     `json:"containerId,omitempty"`
	IsDeleted       bool       `json:"isDeleted,omitempty"`
	StrokeColor     string     `json:"strokeColor,omitempty"`
	BackgroundColor string     `json:"backgroundColor,omitempty"`
	StartBinding    *Binding   `json:"startBinding,omitempty"`
	EndBinding      *Binding   `json:"endBinding,omitempty"`
	BoundElements   []*Binding `json:"boundElements,omitempty"`
}

// Document is the pushed document payload.
type Document struct {
	Elements []Element `json:"elements"`
}

// Result is the outcome of one conversion.
type Result struct {
	Mermaid   string `json:"mermaid"`
	NodeCount int    `json:"nodeCount"`
	EdgeCount int    `json:"edgeCount"`
}

var nodeShapes = map[string]bool{
	"rectangle": true,
	"ellipse":   true,
	"diamond":   true,
}

// nodeRef returns the mermaid identifier for the i-th node: A..Z, then
// N26, N27, ... for diagrams that outgrow the alphabet.
func nodeRef(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return fmt.Sprintf("N%d", i)
}

// wrapLabel renders a labeled node with shape-appropriate brackets.
func wrapLabel(ref, shape, label string) string {
	if label == "" {
		return ref
	}
	switch shape {
	case "ellipse":
		return fmt.Sprintf("%s((%s))", ref, label)
	case "diamond":
		return fmt.Sprintf("%s{%s}", ref, label)
	default:
		return fmt.Sprintf("%s[%s]", ref, label)
	}
}

// Dehydrate converts a document to mermaid flowchart text plus node and
// edge counts. direction overrides the default "TD" layout.
func Dehydrate(doc *Document, direction string) Result {
	if direction == "" {
		direction = "TD"
	}

	// Labels come from text elements bound into a container shape.
	labels := make(map[string]string)
	for _, el := range doc.Elements {
		if el.Type == "text" && !el.IsDeleted && el.ContainerID != "" {
			labels[el.ContainerID] = strings.TrimSpace(el.Text)
		}
	}

	var lines []string
	var styles []string
	refs := make(map[string]string)

	for _, el := range doc.Elements {
		if el.IsDeleted || !nodeShapes[el.Type] {
			continue
		}
		ref := nodeRef(len(refs))
		refs[el.ID] = ref
		lines = append(lines, "    "+wrapLabel(ref, el.Type, labels[el.ID]))

		fill := el.BackgroundColor
		stroke := el.StrokeColor
		if (fill == "" || fill == defaultBackground) && (stroke == "" || stroke == defaultStroke) {
			continue
		}
		if fill == "" {
			fill = defaultBackground
		}
		if stroke == "" {
			stroke = defaultStroke
		}
		styles = append(styles, fmt.Sprintf("    style %s fill:%s,stroke:%s", ref, fill, stroke))
	}

	edgeCount := 0
	for _, el := range doc.Elements {
		if el.IsDeleted || el.Type != "arrow" || el.StartBinding == nil || el.EndBinding == nil {
			continue
		}
		from, okFrom := refs[el.StartBinding.ElementID]
		to, okTo := refs[el.EndBinding.ElementID]
		if !okFrom || !okTo {
			continue
		}
		lines = append(lines, fmt.Sprintf("    %s --> %s", from, to))
		edgeCount++
	}

	var b strings.Builder
	b.WriteString("graph " + direction)
	for _, line := range append(lines, styles...) {
		b.WriteString("\n")
		b.WriteString(line)
	}

	return Result{
		Mermaid:   b.String(),
		NodeCount: len(refs),
		EdgeCount: edgeCount,
	}
}

// Convert decodes a raw pushed document and dehydrates it with the
// default direction. This is the shape the coordination server consumes.
func Convert(raw json.RawMessage) (Result, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Result{}, fmt.Errorf("decode pushed document: %w", err)
	}
	return Dehydrate(&doc, ""), nil
}

// AnnotateSelection prepends a mermaid comment naming the selected
// element IDs, so a reader of the text knows what the user is pointing
// at. Returns the input unchanged when nothing is selected.
func AnnotateSelection(mermaid string, selectedElements []string) string {
	if len(selectedElements) == 0 {
		return mermaid
	}
	return fmt.Sprintf("%%%% SELECTED: %s\n%s", strings.Join(selectedElements, ", "), mermaid)
}
