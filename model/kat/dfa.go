package kat

import (
	"sort"
	"strconv"
	"strings"
)

// DFATransition is a deterministic consuming move.
type DFATransition struct {
	Label Label
	To    int
}

// DFAState holds all outgoing labelled moves of a deterministic state,
// sorted by label.
type DFAState struct {
	Transitions []DFATransition
}

// DFA recognises the same language as the originating ε-NFA. State indices
// are dense, the start state is index 0, and transitions within a state are
// sorted by the total label order, so automata built from equal expressions
// are structurally identical.
type DFA struct {
	States  []DFAState
	Start   int
	Accepts map[int]bool
}

// NewDFA compiles a KAT expression directly into a DFA.
func NewDFA(expr Expr) *DFA {
	return NewEpsilonNFA(expr).Determinize()
}

// State returns the state with the given index.
func (d *DFA) State(id int) *DFAState {
	return &d.States[id]
}

// AcceptStates returns the sorted accepting state indices.
func (d *DFA) AcceptStates() []int {
	accepts := make([]int, 0, len(d.Accepts))
	for id := range d.Accepts {
		accepts = append(accepts, id)
	}
	sort.Ints(accepts)
	return accepts
}

// Match runs the automaton over a word of labels and reports whether it
// ends in an accepting state. Absent transitions reject.
func (d *DFA) Match(word ...Label) bool {
	current := d.Start
	for _, label := range word {
		next := -1
		for _, transition := range d.States[current].Transitions {
			if transition.Label.Compare(label) == 0 {
				next = transition.To
				break
			}
		}
		if next == -1 {
			return false
		}
		current = next
	}
	return d.Accepts[current]
}

// Determinize applies the classical subset construction.
//
// The conversion first saturates each subset of states under ε-closure and
// then treats each distinct closure as a vertex in the resulting DFA. The
// transition structure emerges by grouping all consuming steps by label and
// taking their ε-saturated images.
func (n *EpsilonNFA) Determinize() *DFA {
	epsilonIndex := make([][]StateID, n.StateCount)
	type symbolMove struct {
		label Label
		to    StateID
	}
	symbolIndex := make([][]symbolMove, n.StateCount)

	for _, transition := range n.Transitions {
		if transition.Label == nil {
			epsilonIndex[transition.From] = append(epsilonIndex[transition.From], transition.To)
			continue
		}
		symbolIndex[transition.From] = append(symbolIndex[transition.From], symbolMove{label: *transition.Label, to: transition.To})
	}

	startSubset := n.epsilonClosure([]StateID{n.Start}, epsilonIndex)

	dfa := &DFA{
		States:  []DFAState{{}},
		Start:   0,
		Accepts: map[int]bool{},
	}
	if n.containsAccept(startSubset) {
		dfa.Accepts[0] = true
	}

	subsetToState := map[string]int{subsetKey(startSubset): 0}
	queue := [][]StateID{startSubset}
	queuedIDs := []int{0}

	for len(queue) > 0 {
		currentSubset := queue[0]
		currentID := queuedIDs[0]
		queue = queue[1:]
		queuedIDs = queuedIDs[1:]

		type labelGroup struct {
			label Label
			seeds map[StateID]bool
		}
		groups := map[string]*labelGroup{}
		for _, state := range currentSubset {
			for _, move := range symbolIndex[state] {
				key := move.label.key()
				group, ok := groups[key]
				if !ok {
					group = &labelGroup{label: move.label, seeds: map[StateID]bool{}}
					groups[key] = group
				}
				group.seeds[move.to] = true
			}
		}

		ordered := make([]*labelGroup, 0, len(groups))
		for _, group := range groups {
			ordered = append(ordered, group)
		}
		sort.Slice(ordered, func(i, j int) bool {
			return ordered[i].label.Compare(ordered[j].label) < 0
		})

		transitions := make([]DFATransition, 0, len(ordered))
		for _, group := range ordered {
			seeds := make([]StateID, 0, len(group.seeds))
			for seed := range group.seeds {
				seeds = append(seeds, seed)
			}
			destSubset := n.epsilonClosure(seeds, epsilonIndex)
			key := subsetKey(destSubset)

			destID, ok := subsetToState[key]
			if !ok {
				destID = len(dfa.States)
				subsetToState[key] = destID
				dfa.States = append(dfa.States, DFAState{})
				if n.containsAccept(destSubset) {
					dfa.Accepts[destID] = true
				}
				queue = append(queue, destSubset)
				queuedIDs = append(queuedIDs, destID)
			}
			transitions = append(transitions, DFATransition{Label: group.label, To: destID})
		}
		dfa.States[currentID].Transitions = transitions
	}
	return dfa
}

// epsilonClosure returns the sorted set of states reachable from seeds via
// ε-moves only.
func (n *EpsilonNFA) epsilonClosure(seeds []StateID, epsilonIndex [][]StateID) []StateID {
	closure := map[StateID]bool{}
	stack := make([]StateID, 0, len(seeds))
	for _, seed := range seeds {
		if !closure[seed] {
			closure[seed] = true
			stack = append(stack, seed)
		}
	}
	for len(stack) > 0 {
		state := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range epsilonIndex[state] {
			if !closure[next] {
				closure[next] = true
				stack = append(stack, next)
			}
		}
	}
	result := make([]StateID, 0, len(closure))
	for state := range closure {
		result = append(result, state)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

func (n *EpsilonNFA) containsAccept(subset []StateID) bool {
	for _, state := range subset {
		if n.Accepts[state] {
			return true
		}
	}
	return false
}

func subsetKey(subset []StateID) string {
	var builder strings.Builder
	for i, state := range subset {
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.Itoa(int(state)))
	}
	return builder.String()
}
