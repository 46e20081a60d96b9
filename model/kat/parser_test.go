package kat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testConfig(t *testing.T) *Config {
	config, err := NewConfig([]string{"a", "b"}, []string{"p", "q", "r"})
	assert.Nil(t, err)
	return config
}

func TestParse(t *testing.T) {
	config := testConfig(t)

	testCases := []struct {
		description string
		input       string
		expect      Expr
	}{
		{
			description: "action sequence with star and choice",
			input:       "a b* + 1",
			expect: Choice{
				Left: Sequence{
					Left:  Action{Symbol: "a"},
					Right: Star{Inner: Action{Symbol: "b"}},
				},
				Right: One{},
			},
		},
		{
			description: "boolean with negation and join",
			input:       "!(p | q) & r",
			expect: Test{Test: And{
				Left:  Not{Inner: Or{Left: Atom{Symbol: "p"}, Right: Atom{Symbol: "q"}}},
				Right: Atom{Symbol: "r"},
			}},
		},
		{
			description: "concatenation binds tighter than choice",
			input:       "p(q + r)",
			expect: Sequence{
				Left: Test{Test: Atom{Symbol: "p"}},
				Right: Choice{
					Left:  Test{Test: Atom{Symbol: "q"}},
					Right: Test{Test: Atom{Symbol: "r"}},
				},
			},
		},
		{
			description: "plus is choice at top level",
			input:       "p + q",
			expect: Choice{
				Left:  Test{Test: Atom{Symbol: "p"}},
				Right: Test{Test: Atom{Symbol: "q"}},
			},
		},
		{
			description: "complement allows inner choice",
			input:       "!(p + q)",
			expect: Test{Test: Not{
				Inner: Or{Left: Atom{Symbol: "p"}, Right: Atom{Symbol: "q"}},
			}},
		},
		{
			description: "explicit sequence operator",
			input:       "a;b",
			expect:      Sequence{Left: Action{Symbol: "a"}, Right: Action{Symbol: "b"}},
		},
		{
			description: "zero and one literals",
			input:       "0 + 1",
			expect:      Choice{Left: Zero{}, Right: One{}},
		},
	}

	for _, testCase := range testCases {
		actual, err := Parse(testCase.input, config)
		if !assert.Nil(t, err, testCase.description) {
			continue
		}
		assert.Equal(t, testCase.expect, actual, testCase.description)
	}
}

func TestParse_Errors(t *testing.T) {
	config := testConfig(t)

	testCases := []struct {
		description string
		input       string
	}{
		{description: "unknown symbol", input: "c"},
		{description: "trailing operator", input: "a +"},
		{description: "unbalanced parenthesis", input: "(a + b"},
		{description: "unexpected character", input: "a @ b"},
		{description: "dangling star", input: "* a"},
	}

	for _, testCase := range testCases {
		_, err := Parse(testCase.input, config)
		assert.NotNil(t, err, testCase.description)
	}
}

func TestNewConfig_OverlapRejected(t *testing.T) {
	_, err := NewConfig([]string{"a", "p"}, []string{"p"})
	assert.NotNil(t, err)
}
