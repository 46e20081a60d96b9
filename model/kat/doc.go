// Package kat implements Kleene Algebra with Tests (KAT) expressions and
// their compilation to finite automata.
//
// Actions and primitive tests are supplied up-front via a Config. Parsing
// produces an abstract syntax tree that separates KAT expressions from
// Boolean test expressions while keeping their interaction faithful to the
// algebra. Expressions compile to an ε-NFA by Thompson construction and
// determinise to a DFA by the classical subset construction; the resulting
// automata are deterministic in structure so they can be hashed and compared.
package kat
