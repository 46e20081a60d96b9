package kat

import "strings"

// StateID identifies a state in an ε-NFA by dense non-negative index.
type StateID int

// LabelKind discriminates the two consuming label variants.
type LabelKind uint8

const (
	LabelAction LabelKind = iota
	LabelTest
)

// Label is carried by a consuming transition: either an action symbol or a
// Boolean test expression.
type Label struct {
	Kind   LabelKind
	Symbol Symbol
	Test   TestExpr
}

// ActionLabel returns a label consuming the given action symbol.
func ActionLabel(symbol Symbol) Label {
	return Label{Kind: LabelAction, Symbol: symbol}
}

// TestLabel returns a label consuming the given test expression.
func TestLabel(test TestExpr) Label {
	return Label{Kind: LabelTest, Test: test}
}

func (l Label) String() string {
	if l.Kind == LabelAction {
		return string(l.Symbol)
	}
	return l.Test.String()
}

// key returns an injective rendering used for grouping transitions by label.
func (l Label) key() string {
	if l.Kind == LabelAction {
		return "a:" + string(l.Symbol)
	}
	return "t:" + l.Test.String()
}

// Compare orders labels totally: actions before tests, actions by symbol,
// tests structurally.
func (l Label) Compare(other Label) int {
	if l.Kind != other.Kind {
		if l.Kind == LabelAction {
			return -1
		}
		return 1
	}
	if l.Kind == LabelAction {
		return strings.Compare(string(l.Symbol), string(other.Symbol))
	}
	return CompareTests(l.Test, other.Test)
}

// Transition connects two NFA states. A nil Label denotes an ε-move.
type Transition struct {
	From  StateID
	To    StateID
	Label *Label
}

// EpsilonNFA is the Thompson-construction automaton of a KAT expression.
type EpsilonNFA struct {
	StateCount  int
	Start       StateID
	Accepts     map[StateID]bool
	Transitions []Transition
}

// NewEpsilonNFA compiles a KAT expression into an ε-NFA. State ids are dense
// and the accept set is a singleton at the top level.
func NewEpsilonNFA(expr Expr) *EpsilonNFA {
	builder := &nfaBuilder{}
	fragment := builder.build(expr)
	return &EpsilonNFA{
		StateCount:  builder.nextState,
		Start:       fragment.start,
		Accepts:     map[StateID]bool{fragment.accept: true},
		Transitions: builder.transitions,
	}
}

type fragment struct {
	start  StateID
	accept StateID
}

type nfaBuilder struct {
	nextState   int
	transitions []Transition
}

func (b *nfaBuilder) build(expr Expr) fragment {
	switch node := expr.(type) {
	case Zero:
		return fragment{start: b.newState(), accept: b.newState()}
	case One:
		result := fragment{start: b.newState(), accept: b.newState()}
		b.addEpsilon(result.start, result.accept)
		return result
	case Action:
		result := fragment{start: b.newState(), accept: b.newState()}
		b.addSymbol(result.start, result.accept, ActionLabel(node.Symbol))
		return result
	case Test:
		result := fragment{start: b.newState(), accept: b.newState()}
		b.addSymbol(result.start, result.accept, TestLabel(node.Test))
		return result
	case Sequence:
		left := b.build(node.Left)
		right := b.build(node.Right)
		b.addEpsilon(left.accept, right.start)
		return fragment{start: left.start, accept: right.accept}
	case Choice:
		left := b.build(node.Left)
		right := b.build(node.Right)
		result := fragment{start: b.newState(), accept: b.newState()}
		b.addEpsilon(result.start, left.start)
		b.addEpsilon(result.start, right.start)
		b.addEpsilon(left.accept, result.accept)
		b.addEpsilon(right.accept, result.accept)
		return result
	case Star:
		inner := b.build(node.Inner)
		result := fragment{start: b.newState(), accept: b.newState()}
		b.addEpsilon(result.start, inner.start)
		b.addEpsilon(result.start, result.accept)
		b.addEpsilon(inner.accept, inner.start)
		b.addEpsilon(inner.accept, result.accept)
		return result
	}
	return fragment{start: b.newState(), accept: b.newState()}
}

func (b *nfaBuilder) newState() StateID {
	id := StateID(b.nextState)
	b.nextState++
	return id
}

func (b *nfaBuilder) addEpsilon(from, to StateID) {
	b.transitions = append(b.transitions, Transition{From: from, To: to})
}

func (b *nfaBuilder) addSymbol(from, to StateID, label Label) {
	l := label
	b.transitions = append(b.transitions, Transition{From: from, To: to, Label: &l})
}
