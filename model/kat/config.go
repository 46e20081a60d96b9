package kat

import "fmt"

// Config describes the primitive vocabulary available to the parser: which
// identifiers denote actions and which denote tests. The two sets must be
// disjoint.
type Config struct {
	actions map[Symbol]bool
	tests   map[Symbol]bool
}

// NewConfig builds a parser configuration from action and test vocabularies.
func NewConfig(actions, tests []string) (*Config, error) {
	config := &Config{
		actions: make(map[Symbol]bool, len(actions)),
		tests:   make(map[Symbol]bool, len(tests)),
	}
	for _, action := range actions {
		config.actions[Symbol(action)] = true
	}
	for _, test := range tests {
		config.tests[Symbol(test)] = true
	}
	for action := range config.actions {
		if config.tests[action] {
			return nil, fmt.Errorf("symbol `%s` cannot be both action and test", action)
		}
	}
	return config, nil
}

// classify resolves an identifier to an action or test token kind.
func (c *Config) classify(name string, offset int) (tokenKind, error) {
	symbol := Symbol(name)
	if c.actions[symbol] {
		return kindAction, nil
	}
	if c.tests[symbol] {
		return kindTest, nil
	}
	return kindEnd, fmt.Errorf("unknown symbol `%s` (at %d..%d)", name, offset, offset+len(name))
}
