package dag

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/viant/afs"
)

// Definition is the struct representation of the workflow DAG JSON file.
// Decoding is the first line of validation: if it fails, the file is
// malformed; if it succeeds, the structure is sound and Validate decides
// the semantics.
type Definition struct {
	Vertices      []Vertex       `json:"vertices" yaml:"vertices"`
	Edges         []Edge         `json:"edges" yaml:"edges"`
	EntryVertices []EntryVertex  `json:"entry_vertices" yaml:"entryVertices"`
	EntryGroups   []EntryGroup   `json:"entry_groups,omitempty" yaml:"entryGroups,omitempty"`
	DefaultValues []DefaultValue `json:"default_values,omitempty" yaml:"defaultValues,omitempty"`
}

// Vertex names a tool vertex of the workflow.
type Vertex struct {
	Name string     `json:"name" yaml:"name"`
	Kind VertexKind `json:"kind" yaml:"kind"`
}

// VertexKind distinguishes off-chain tools, addressed by their fully
// qualified name, from on-chain ones.
type VertexKind struct {
	Variant string `json:"variant" yaml:"variant"`
	ToolFQN string `json:"tool_fqn,omitempty" yaml:"toolFQN,omitempty"`
}

// EntryVertex declares a tool vertex whose listed input ports are roots of
// the DAG, filled at submission time.
type EntryVertex struct {
	Vertex     string   `json:"vertex" yaml:"vertex"`
	InputPorts []string `json:"input_ports" yaml:"inputPorts"`
}

// EntryGroup names a subset of entry vertices that can be invoked together.
type EntryGroup struct {
	Name     string   `json:"name" yaml:"name"`
	Vertices []string `json:"vertices" yaml:"vertices"`
}

// DefaultValue supplies a constant for an input port that no edge feeds.
type DefaultValue struct {
	Vertex    string      `json:"vertex" yaml:"vertex"`
	InputPort string      `json:"input_port" yaml:"inputPort"`
	Value     DefaultData `json:"value" yaml:"value"`
}

// DefaultData carries an inline JSON value for a defaulted input port.
type DefaultData struct {
	Storage string          `json:"storage" yaml:"storage"`
	Data    json.RawMessage `json:"data" yaml:"data"`
}

// Edge connects an output port of one tool to an input port of another.
type Edge struct {
	From FromPort `json:"from" yaml:"from"`
	To   ToPort   `json:"to" yaml:"to"`
}

// FromPort addresses an output port as tool, output variant, output port.
type FromPort struct {
	Vertex        string `json:"vertex" yaml:"vertex"`
	OutputVariant string `json:"output_variant" yaml:"outputVariant"`
	OutputPort    string `json:"output_port" yaml:"outputPort"`
}

// ToPort addresses an input port as tool, input port.
type ToPort struct {
	Vertex    string `json:"vertex" yaml:"vertex"`
	InputPort string `json:"input_port" yaml:"inputPort"`
}

// Parse decodes a workflow definition from its JSON representation.
func Parse(data []byte) (*Definition, error) {
	definition := &Definition{}
	if err := json.Unmarshal(data, definition); err != nil {
		return nil, fmt.Errorf("failed to parse workflow definition: %w", err)
	}
	return definition, nil
}

// Load reads and parses a workflow definition from the supplied URL.
func Load(ctx context.Context, URL string) (*Definition, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow definition from %v: %w", URL, err)
	}
	return Parse(data)
}
