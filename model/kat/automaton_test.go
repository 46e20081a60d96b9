package kat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEpsilonNFA(t *testing.T) {
	t.Run("one is a single epsilon move", func(t *testing.T) {
		nfa := NewEpsilonNFA(One{})
		assert.Equal(t, 2, nfa.StateCount)
		assert.Equal(t, 1, len(nfa.Accepts))
		found := false
		for _, transition := range nfa.Transitions {
			if transition.Label == nil && transition.From == nfa.Start && nfa.Accepts[transition.To] {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("zero has no transitions", func(t *testing.T) {
		nfa := NewEpsilonNFA(Zero{})
		assert.Equal(t, 2, nfa.StateCount)
		assert.Equal(t, 0, len(nfa.Transitions))
	})

	t.Run("action emits one labelled move", func(t *testing.T) {
		nfa := NewEpsilonNFA(Action{Symbol: "a"})
		assert.Equal(t, 2, nfa.StateCount)
		found := false
		for _, transition := range nfa.Transitions {
			if transition.Label != nil && transition.Label.Kind == LabelAction &&
				transition.Label.Symbol == Symbol("a") &&
				transition.From == nfa.Start && nfa.Accepts[transition.To] {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("choice forks from a fresh start", func(t *testing.T) {
		nfa := NewEpsilonNFA(Choice{Left: Action{Symbol: "a"}, Right: Action{Symbol: "b"}})
		assert.Equal(t, 1, len(nfa.Accepts))
		branches := 0
		for _, transition := range nfa.Transitions {
			if transition.Label == nil && transition.From == nfa.Start {
				branches++
			}
		}
		assert.Equal(t, 2, branches)
	})

	t.Run("star loops back", func(t *testing.T) {
		nfa := NewEpsilonNFA(Star{Inner: Action{Symbol: "a"}})
		found := false
		for _, transition := range nfa.Transitions {
			if transition.Label == nil && nfa.Accepts[transition.To] &&
				!nfa.Accepts[transition.From] && transition.From != transition.To {
				found = true
			}
		}
		assert.True(t, found)
	})
}

func TestDeterminize(t *testing.T) {
	t.Run("zero has a single rejecting state", func(t *testing.T) {
		dfa := NewDFA(Zero{})
		assert.Equal(t, 1, len(dfa.States))
		assert.False(t, dfa.Accepts[dfa.Start])
		assert.Equal(t, 0, len(dfa.State(dfa.Start).Transitions))
	})

	t.Run("choice of actions yields two sorted transitions", func(t *testing.T) {
		dfa := NewDFA(Choice{Left: Action{Symbol: "a"}, Right: Action{Symbol: "b"}})
		start := dfa.State(dfa.Start)
		if !assert.Equal(t, 2, len(start.Transitions)) {
			return
		}
		assert.Equal(t, ActionLabel("a"), start.Transitions[0].Label)
		assert.Equal(t, ActionLabel("b"), start.Transitions[1].Label)
		for _, transition := range start.Transitions {
			assert.True(t, dfa.Accepts[transition.To])
		}
	})

	t.Run("test then action sequence", func(t *testing.T) {
		dfa := NewDFA(Sequence{
			Left:  Test{Test: Atom{Symbol: "p"}},
			Right: Action{Symbol: "a"},
		})
		start := dfa.State(dfa.Start)
		if !assert.Equal(t, 1, len(start.Transitions)) {
			return
		}
		first := start.Transitions[0]
		assert.Equal(t, TestLabel(Atom{Symbol: "p"}), first.Label)

		second := dfa.State(first.To)
		if !assert.Equal(t, 1, len(second.Transitions)) {
			return
		}
		assert.Equal(t, ActionLabel("a"), second.Transitions[0].Label)
		assert.True(t, dfa.Accepts[second.Transitions[0].To])
	})

	t.Run("actions sort before tests", func(t *testing.T) {
		dfa := NewDFA(Choice{
			Left:  Test{Test: Atom{Symbol: "a"}},
			Right: Action{Symbol: "z"},
		})
		start := dfa.State(dfa.Start)
		if !assert.Equal(t, 2, len(start.Transitions)) {
			return
		}
		assert.Equal(t, LabelAction, start.Transitions[0].Label.Kind)
		assert.Equal(t, LabelTest, start.Transitions[1].Label.Kind)
	})
}

func TestDFA_Match(t *testing.T) {
	testCases := []struct {
		description string
		expr        Expr
		word        []Label
		expect      bool
	}{
		{
			description: "star accepts empty word",
			expr:        Star{Inner: Action{Symbol: "a"}},
			word:        nil,
			expect:      true,
		},
		{
			description: "star accepts repetition",
			expr:        Star{Inner: Action{Symbol: "a"}},
			word:        []Label{ActionLabel("a"), ActionLabel("a"), ActionLabel("a")},
			expect:      true,
		},
		{
			description: "choice accepts either branch",
			expr:        Choice{Left: Action{Symbol: "a"}, Right: Action{Symbol: "b"}},
			word:        []Label{ActionLabel("b")},
			expect:      true,
		},
		{
			description: "sequence requires both in order",
			expr:        Sequence{Left: Action{Symbol: "a"}, Right: Action{Symbol: "b"}},
			word:        []Label{ActionLabel("b"), ActionLabel("a")},
			expect:      false,
		},
		{
			description: "zero rejects everything",
			expr:        Zero{},
			word:        nil,
			expect:      false,
		},
		{
			description: "one accepts only the empty word",
			expr:        One{},
			word:        []Label{ActionLabel("a")},
			expect:      false,
		},
	}

	for _, testCase := range testCases {
		dfa := NewDFA(testCase.expr)
		assert.Equal(t, testCase.expect, dfa.Match(testCase.word...), testCase.description)
	}
}

func TestParseCompile_EndToEnd(t *testing.T) {
	config := testConfig(t)
	expr, err := Parse("a(b + p)*", config)
	assert.Nil(t, err)

	dfa := NewDFA(expr)
	assert.True(t, dfa.Match(ActionLabel("a")))
	assert.True(t, dfa.Match(ActionLabel("a"), ActionLabel("b")))
	assert.True(t, dfa.Match(ActionLabel("a"), TestLabel(Atom{Symbol: "p"}), ActionLabel("b")))
	assert.False(t, dfa.Match(ActionLabel("b")))
}
