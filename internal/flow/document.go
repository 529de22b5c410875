package flow

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Document is the exchange format for a flow.
type Document struct {
	Name  string `json:"name" yaml:"name"`
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

func DocumentFromGraph(name string, g *Graph) Document {
	return Document{
		Name:  name,
		Nodes: g.Nodes(),
		Edges: g.Edges(),
	}
}

func (d Document) Graph() (*Graph, error) {
	return Restore(d.Nodes, d.Edges)
}

func EncodeDocument(w io.Writer, doc Document, format string) error {
	switch format {
	case FormatYAML, "yml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

func DecodeDocument(r io.Reader, format string) (Document, error) {
	var doc Document
	switch format {
	case FormatYAML, "yml", "":
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("failed to decode yaml: %w", err)
		}
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("failed to decode json: %w", err)
		}
	default:
		return Document{}, fmt.Errorf("unsupported format %q", format)
	}
	return doc, nil
}
