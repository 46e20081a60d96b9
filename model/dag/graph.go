package dag

import (
	"fmt"
)

type vertexKind int

const (
	kindInputPort vertexKind = iota
	kindInputPortWithDefault
	kindTool
	kindOutputVariant
	kindOutputPort
)

// ident is the composite (tool, variant, port) name that addresses every
// vertex of the expanded graph. The kind is attached on first sight and is
// not part of the key.
type ident struct {
	tool    string
	variant string
	port    string
}

func toolIdent(tool string) ident {
	return ident{tool: tool}
}

func variantIdent(tool, variant string) ident {
	return ident{tool: tool, variant: variant}
}

func outputPortIdent(tool, variant, port string) ident {
	return ident{tool: tool, variant: variant, port: port}
}

func inputPortIdent(tool, port string) ident {
	return ident{tool: tool, port: port}
}

type node struct {
	ident ident
	kind  vertexKind
	entry bool
}

func (n *node) String() string {
	switch n.kind {
	case kindTool:
		return fmt.Sprintf("Vertex: %s", n.ident.tool)
	case kindOutputVariant:
		return fmt.Sprintf("Output variant: %s.%s", n.ident.tool, n.ident.variant)
	case kindOutputPort:
		return fmt.Sprintf("Output port: %s.%s.%s", n.ident.tool, n.ident.variant, n.ident.port)
	default:
		return fmt.Sprintf("Input port: %s.%s", n.ident.tool, n.ident.port)
	}
}

// graph is the expanded workflow graph with dense vertex indices and
// adjacency in both directions.
type graph struct {
	nodes []node
	index map[ident]int
	out   [][]int
	in    [][]int
}

func (g *graph) ensure(id ident, kind vertexKind) int {
	if existing, ok := g.index[id]; ok {
		return existing
	}
	next := len(g.nodes)
	g.nodes = append(g.nodes, node{ident: id, kind: kind})
	g.index[id] = next
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	return next
}

func (g *graph) hasEdge(from, to int) bool {
	for _, next := range g.out[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (g *graph) addEdge(from, to int) {
	g.out[from] = append(g.out[from], to)
	g.in[to] = append(g.in[to], from)
}

// inputPortKind consults the default-values list so ports with a default
// are created as their own vertex kind.
func inputPortKind(defaults map[ident]bool, id ident) vertexKind {
	if defaults[id] {
		return kindInputPortWithDefault
	}
	return kindInputPort
}

// buildGraph expands a definition into the five layer vertex graph,
// creating vertices lazily while iterating edges, then wiring entry and
// defaulted input ports. Structural defects in the definition itself are
// reported here; semantic rules are left to Validate.
func buildGraph(definition *Definition) (*graph, error) {
	g := &graph{index: map[ident]int{}}

	defaults := map[ident]bool{}
	for _, defaultValue := range definition.DefaultValues {
		defaults[inputPortIdent(defaultValue.Vertex, defaultValue.InputPort)] = true
	}

	for _, edge := range definition.Edges {
		origin := g.ensure(toolIdent(edge.From.Vertex), kindTool)
		variant := g.ensure(variantIdent(edge.From.Vertex, edge.From.OutputVariant), kindOutputVariant)
		outputPort := g.ensure(outputPortIdent(edge.From.Vertex, edge.From.OutputVariant, edge.From.OutputPort), kindOutputPort)
		destination := g.ensure(toolIdent(edge.To.Vertex), kindTool)
		inputID := inputPortIdent(edge.To.Vertex, edge.To.InputPort)
		inputPort := g.ensure(inputID, inputPortKind(defaults, inputID))

		if g.hasEdge(variant, outputPort) {
			return nil, fmt.Errorf("edge from '%v' to '%v' already exists", &g.nodes[variant], &g.nodes[outputPort])
		}
		if g.hasEdge(outputPort, inputPort) {
			return nil, fmt.Errorf("edge from '%v' to '%v' already exists", &g.nodes[outputPort], &g.nodes[inputPort])
		}
		if !g.hasEdge(origin, variant) {
			g.addEdge(origin, variant)
		}
		if !g.hasEdge(inputPort, destination) {
			g.addEdge(inputPort, destination)
		}
		g.addEdge(variant, outputPort)
		g.addEdge(outputPort, inputPort)
	}

	if len(definition.EntryVertices) == 0 {
		return nil, ErrNoEntryVertices
	}

	entryVertices := map[ident]bool{}
	entryPorts := map[ident]bool{}
	for _, entry := range definition.EntryVertices {
		toolID := toolIdent(entry.Vertex)
		tool, ok := g.index[toolID]
		if !ok {
			return nil, fmt.Errorf("entry 'Vertex: %s' is not connected to the DAG", entry.Vertex)
		}
		if entryVertices[toolID] {
			return nil, fmt.Errorf("entry 'Vertex: %s' is a duplicate vertex", entry.Vertex)
		}
		entryVertices[toolID] = true

		for _, port := range entry.InputPorts {
			portID := inputPortIdent(entry.Vertex, port)
			if entryPorts[portID] {
				return nil, fmt.Errorf("entry 'Input port: %s.%s' is defined multiple times", entry.Vertex, port)
			}
			entryPorts[portID] = true

			inputPort := g.ensure(portID, inputPortKind(defaults, portID))
			g.nodes[inputPort].entry = true
			if !g.hasEdge(inputPort, tool) {
				g.addEdge(inputPort, tool)
			}
		}
	}

	vertices := map[ident]bool{}
	for _, vertex := range definition.Vertices {
		toolID := toolIdent(vertex.Name)
		if _, ok := g.index[toolID]; !ok {
			return nil, fmt.Errorf("'Vertex: %s' is not connected to the DAG", vertex.Name)
		}
		if vertices[toolID] {
			return nil, fmt.Errorf("'Vertex: %s' is a duplicate vertex", vertex.Name)
		}
		vertices[toolID] = true
		if entryVertices[toolID] {
			return nil, fmt.Errorf("'Vertex: %s' is both a vertex and an entry vertex", vertex.Name)
		}
	}

	for _, group := range definition.EntryGroups {
		for _, vertex := range group.Vertices {
			if !entryVertices[toolIdent(vertex)] {
				return nil, fmt.Errorf("'Vertex: %s' is not an entry vertex but is referenced in the '%s' entry group", vertex, group.Name)
			}
		}
	}

	// Defaulted ports never referenced by an edge or entry still become
	// vertices so the owning tool sees them as roots.
	for _, defaultValue := range definition.DefaultValues {
		portID := inputPortIdent(defaultValue.Vertex, defaultValue.InputPort)
		if _, ok := g.index[portID]; ok {
			continue
		}
		tool, ok := g.index[toolIdent(defaultValue.Vertex)]
		if !ok {
			return nil, fmt.Errorf("default value for 'Input port: %s.%s' references a vertex that is not connected to the DAG", defaultValue.Vertex, defaultValue.InputPort)
		}
		inputPort := g.ensure(portID, kindInputPortWithDefault)
		g.addEdge(inputPort, tool)
	}

	return g, nil
}
