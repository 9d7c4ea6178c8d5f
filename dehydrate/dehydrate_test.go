package dehydrate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnotateSelection(t *testing.T) {
	mermaid := "graph TD\n    A[Hello]"

	annotated := AnnotateSelection(mermaid, []string{"node1", "node2"})
	assert.Equal(t, "%% SELECTED: node1, node2\ngraph TD\n    A[Hello]", annotated)

	assert.Equal(t, mermaid, AnnotateSelection(mermaid, nil))
}

func twoNodeDoc() *Document {
	return &Document{Elements: []Element{
		{
			ID: "rect1", Type: "rectangle",
			BoundElements: []*Binding{{ID: "text1", Type: "text"}},
		},
		{ID: "text1", Type: "text", Text: "Start", ContainerID: "rect1"},
		{
			ID: "rect2", Type: "rectangle",
			BoundElements: []*Binding{{ID: "text2", Type: "text"}},
		},
		{ID: "text2", Type: "text", Text: "End", ContainerID: "rect2"},
		{
			ID: "arrow1", Type: "arrow",
			StartBinding: &Binding{ElementID: "rect1"},
			EndBinding:   &Binding{ElementID: "rect2"},
		},
	}}
}

func TestDehydrate_TwoNodesOneEdge(t *testing.T) {
	result := Dehydrate(twoNodeDoc(), "")

	assert.Equal(t, 2, result.NodeCount)
	assert.Equal(t, 1, result.EdgeCount)
	assert.True(t, strings.HasPrefix(result.Mermaid, "graph TD"))
	assert.Contains(t, result.Mermaid, "A[Start]")
	assert.Contains(t, result.Mermaid, "B[End]")
	assert.Contains(t, result.Mermaid, "A --> B")
}

func TestDehydrate_DirectionOverride(t *testing.T) {
	result := Dehydrate(&Document{Elements: []Element{
		{ID: "rect1", Type: "rectangle"},
	}}, "LR")

	assert.True(t, strings.HasPrefix(result.Mermaid, "graph LR"))
}

func TestDehydrate_EmptyDocument(t *testing.T) {
	result := Dehydrate(&Document{}, "")

	assert.Equal(t, 0, result.NodeCount)
	assert.Equal(t, 0, result.EdgeCount)
	assert.Equal(t, "graph TD", result.Mermaid)
}

func TestDehydrate_ShapeBrackets(t *testing.T) {
	result := Dehydrate(&Document{Elements: []Element{
		{ID: "d1", Type: "diamond"},
		{ID: "t1", Type: "text", Text: "Choice", ContainerID: "d1"},
		{ID: "e1", Type: "ellipse"},
		{ID: "t2", Type: "text", Text: "Done", ContainerID: "e1"},
	}}, "")

	assert.Contains(t, result.Mermaid, "A{Choice}")
	assert.Contains(t, result.Mermaid, "B((Done))")
}

func TestDehydrate_SkipsDeletedElements(t *testing.T) {
	result := Dehydrate(&Document{Elements: []Element{
		{ID: "rect1", Type: "rectangle", IsDeleted: true},
		{ID: "rect2", Type: "rectangle"},
	}}, "")

	assert.Equal(t, 1, result.NodeCount)
}

func TestDehydrate_StyleDirectives(t *testing.T) {
	result := Dehydrate(&Document{Elements: []Element{
		{
			ID: "rect1", Type: "rectangle",
			StrokeColor: "#e03131", BackgroundColor: "#ffe0e0",
		},
		{ID: "text1", Type: "text", Text: "Problem Node", ContainerID: "rect1"},
	}}, "")

	assert.Contains(t, result.Mermaid, "style A fill:#ffe0e0,stroke:#e03131")
}

func TestDehydrate_NoStyleForDefaultColors(t *testing.T) {
	result := Dehydrate(&Document{Elements: []Element{
		{
			ID: "rect1", Type: "rectangle",
			StrokeColor: "#1e1e1e", BackgroundColor: "transparent",
		},
		{ID: "text1", Type: "text", Text: "Normal", ContainerID: "rect1"},
	}}, "")

	assert.NotContains(t, result.Mermaid, "style ")
}

func TestDehydrate_MixedColoredAndDefaultNodes(t *testing.T) {
	result := Dehydrate(&Document{Elements: []Element{
		{
			ID: "rect1", Type: "rectangle",
			StrokeColor: "#1e1e1e", BackgroundColor: "transparent",
		},
		{ID: "text1", Type: "text", Text: "Normal", ContainerID: "rect1"},
		{
			ID: "rect2", Type: "rectangle",
			StrokeColor: "#2f9e44", BackgroundColor: "#d3f9d8",
		},
		{ID: "text2", Type: "text", Text: "Approved", ContainerID: "rect2"},
		{
			ID: "arrow1", Type: "arrow",
			StartBinding: &Binding{ElementID: "rect1"},
			EndBinding:   &Binding{ElementID: "rect2"},
		},
	}}, "")

	assert.NotContains(t, result.Mermaid, "style A ")
	assert.Contains(t, result.Mermaid, "style B fill:#d3f9d8,stroke:#2f9e44")
}

func TestConvert_RawJSON(t *testing.T) {
	raw := []byte(`{"elements":[{"id":"rect1","type":"rectangle"},{"id":"t1","type":"text","text":"Only","containerId":"rect1"}]}`)

	result, err := Convert(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, result.NodeCount)
	assert.Contains(t, result.Mermaid, "A[Only]")
}

func TestConvert_MalformedJSON(t *testing.T) {
	_, err := Convert([]byte(`{"elements": [`))
	assert.Error(t, err)
}
