package dag

import (
	"errors"
	"fmt"
)

var (
	// ErrCyclic reports that the definition is not a DAG.
	ErrCyclic = errors.New("workflow graph contains one or more cycles")
	// ErrNoEntryVertices reports a definition without any entry vertices.
	ErrNoEntryVertices = errors.New("workflow graph has no entry vertices")
	// ErrNoRootInputPort reports that every input port has an incoming
	// edge, so no vertex can ever start executing.
	ErrNoRootInputPort = errors.New("workflow graph has no input port with zero incoming edges")
	// ErrDefaultPortWired reports an input port that both carries a
	// default value and is fed by an edge.
	ErrDefaultPortWired = errors.New("input port with a default value has an incoming edge")
	// ErrLayering reports a vertex whose out-edges break the input port,
	// tool, output variant, output port layering.
	ErrLayering = errors.New("workflow graph layering violated")
	// ErrConcurrency reports a merge point whose forks and joins do not
	// balance.
	ErrConcurrency = errors.New("workflow graph does not follow concurrency rules")
)

// Validate checks a workflow definition against the execution rules: the
// graph must be acyclic, every vertex must respect the layer order and its
// fan-out arity, defaulted input ports must have no incoming edges, and at
// every merge point the number of forked branches must exactly balance the
// number of joins.
func Validate(definition *Definition) error {
	g, err := buildGraph(definition)
	if err != nil {
		return err
	}
	if g.isCyclic() {
		return ErrCyclic
	}
	if err := g.checkRoots(); err != nil {
		return err
	}
	if err := g.checkLayering(); err != nil {
		return err
	}
	return g.checkConcurrency()
}

// isCyclic runs Kahn's algorithm and reports whether any vertex survives.
func (g *graph) isCyclic() bool {
	indegree := make([]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = len(g.in[id])
	}
	queue := make([]int, 0, len(g.nodes))
	for id := range g.nodes {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range g.out[current] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	return visited != len(g.nodes)
}

// checkRoots requires at least one input port with no incoming edges and
// rejects defaulted input ports that are fed by an edge.
func (g *graph) checkRoots() error {
	hasRoot := false
	for id := range g.nodes {
		current := &g.nodes[id]
		switch current.kind {
		case kindInputPort:
			if len(g.in[id]) == 0 {
				hasRoot = true
			}
		case kindInputPortWithDefault:
			if len(g.in[id]) > 0 {
				return fmt.Errorf("'%v': %w", current, ErrDefaultPortWired)
			}
			hasRoot = true
		}
	}
	if !hasRoot {
		return ErrNoRootInputPort
	}
	return nil
}

func (g *graph) checkLayering() error {
	for id := range g.nodes {
		current := &g.nodes[id]
		neighbors := g.out[id]

		switch current.kind {
		case kindInputPort, kindInputPortWithDefault:
			if len(neighbors) != 1 {
				return fmt.Errorf("'%v' must have exactly 1 outgoing edge: %w", current, ErrLayering)
			}
		case kindTool:
			// Tools can be the last vertex and can have any number of edges.
		case kindOutputVariant:
			if len(neighbors) == 0 {
				return fmt.Errorf("'%v' must have at least 1 outgoing edge: %w", current, ErrLayering)
			}
		case kindOutputPort:
			if len(neighbors) != 1 {
				return fmt.Errorf("'%v' must have exactly 1 outgoing edge: %w", current, ErrLayering)
			}
		}

		for _, next := range neighbors {
			neighbor := &g.nodes[next]
			ok := false
			switch current.kind {
			case kindInputPort, kindInputPortWithDefault:
				ok = neighbor.kind == kindTool
			case kindTool:
				ok = neighbor.kind == kindOutputVariant
			case kindOutputVariant:
				ok = neighbor.kind == kindOutputPort
			case kindOutputPort:
				ok = neighbor.kind == kindInputPort || neighbor.kind == kindInputPortWithDefault
			}
			if !ok {
				return fmt.Errorf("the edge from '%v' to '%v' is invalid: %w", current, neighbor, ErrLayering)
			}
		}
	}
	return nil
}

// checkConcurrency verifies the fork/join balance at every merge point, a
// vertex with two or more incoming edges. Within the set of vertices on
// paths leading into the merge, each tool forks max over its variants of
// (output port count - 1) branches plus the one it consumed, each input
// port without a default joins one branch, and each input port filled at
// submission time, entry or defaulted, contributes one initial branch.
// The walk is balanced when the initial branches minus one cover the net
// fork count exactly.
func (g *graph) checkConcurrency() error {
	for id := range g.nodes {
		if len(g.in[id]) < 2 {
			continue
		}
		ancestors := g.ancestorsOf(id)

		entries := 0
		for ancestor := range ancestors {
			if g.nodes[ancestor].entry || g.nodes[ancestor].kind == kindInputPortWithDefault {
				entries++
			}
		}

		net := entries - 1
		for ancestor := range ancestors {
			switch g.nodes[ancestor].kind {
			case kindTool:
				maxForks := 0
				for _, variant := range g.out[ancestor] {
					if !ancestors[variant] {
						continue
					}
					outputPorts := 0
					for _, port := range g.out[variant] {
						if ancestors[port] {
							outputPorts++
						}
					}
					if forks := outputPorts - 1; forks > maxForks {
						maxForks = forks
					}
				}
				net += maxForks + 1
			case kindInputPort:
				net--
			}
		}

		if net != 0 {
			return fmt.Errorf("'%v': %w", &g.nodes[id], ErrConcurrency)
		}
	}
	return nil
}

// ancestorsOf returns all vertices on paths leading into end, excluding
// end itself.
func (g *graph) ancestorsOf(end int) map[int]bool {
	visited := map[int]bool{}
	stack := append([]int(nil), g.in[end]...)
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[current] {
			continue
		}
		visited[current] = true
		for _, previous := range g.in[current] {
			if !visited[previous] {
				stack = append(stack, previous)
			}
		}
	}
	return visited
}
