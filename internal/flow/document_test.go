package flow

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentYAML(t *testing.T) {
	g := NewSeedGraph()
	g.AddNode(NodeTypeButton, Point{X: 12.5, Y: 40})

	var buf bytes.Buffer
	require.NoError(t, EncodeDocument(&buf, DocumentFromGraph("Soporte", g), FormatYAML))
	assert.Contains(t, buf.String(), "name: Soporte")
	assert.Contains(t, buf.String(), "type: ai_response")

	doc, err := DecodeDocument(&buf, FormatYAML)
	require.NoError(t, err)

	restored, err := doc.Graph()
	require.NoError(t, err)
	assert.Equal(t, g.Nodes(), restored.Nodes())
	assert.Equal(t, g.Edges(), restored.Edges())
}

func TestDecodeDocumentWithDanglingEdge(t *testing.T) {
	src := `
name: imported
nodes:
  - id: "1"
    type: start
    position: {x: 0, y: 0}
    label: Inicio
  - id: "7"
    type: sticker
    position: {x: 10, y: 10}
    label: Sticker
edges:
  - {from: "1", to: "7"}
  - {from: "7", to: "8"}
`
	doc, err := DecodeDocument(strings.NewReader(src), FormatYAML)
	require.NoError(t, err)

	g, err := doc.Graph()
	require.NoError(t, err)

	n, _ := g.FindNode("7")
	assert.Equal(t, NodeTypeUnknown, n.Type)
	assert.Len(t, g.ListEdgesResolved(), 1)

	next := g.AddNode(NodeTypeText, Point{})
	assert.Equal(t, "8", next.ID)
	assert.Len(t, g.ListEdgesResolved(), 2)
}

func TestDecodeDocumentNonFinitePosition(t *testing.T) {
	for _, x := range []string{".inf", "-.inf", ".nan"} {
		src := "name: Inf\nnodes:\n  - id: \"1\"\n    type: start\n    position: {x: " + x + ", y: 0}\n"
		doc, err := DecodeDocument(strings.NewReader(src), FormatYAML)
		require.NoError(t, err, x)

		_, err = doc.Graph()
		assert.Error(t, err, x)
	}
}

func TestDocumentJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeDocument(&buf, DocumentFromGraph("x", NewSeedGraph()), FormatJSON))

	doc, err := DecodeDocument(&buf, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "x", doc.Name)
	assert.Len(t, doc.Nodes, 3)
}

func TestDocumentUnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, EncodeDocument(&buf, Document{}, "xml"))

	_, err := DecodeDocument(strings.NewReader("<flow/>"), "xml")
	assert.Error(t, err)
}
