package kat

import "strings"

// Symbol is an opaque identifier shared by actions and primitive tests.
type Symbol string

// Expr is a node of a KAT expression tree.
type Expr interface {
	isExpr()
	String() string
}

// Zero is the empty (rejecting) expression.
type Zero struct{}

// One is the identity (empty word) expression.
type One struct{}

// Action consumes a single action symbol.
type Action struct {
	Symbol Symbol
}

// Test consumes a Boolean test expression.
type Test struct {
	Test TestExpr
}

// Sequence composes two expressions one after the other.
type Sequence struct {
	Left, Right Expr
}

// Choice accepts either of two expressions.
type Choice struct {
	Left, Right Expr
}

// Star is the Kleene closure of an expression.
type Star struct {
	Inner Expr
}

func (Zero) isExpr()     {}
func (One) isExpr()      {}
func (Action) isExpr()   {}
func (Test) isExpr()     {}
func (Sequence) isExpr() {}
func (Choice) isExpr()   {}
func (Star) isExpr()     {}

func (Zero) String() string     { return "0" }
func (One) String() string      { return "1" }
func (e Action) String() string { return string(e.Symbol) }
func (e Test) String() string   { return e.Test.String() }
func (e Sequence) String() string {
	return "(" + e.Left.String() + ";" + e.Right.String() + ")"
}
func (e Choice) String() string {
	return "(" + e.Left.String() + "+" + e.Right.String() + ")"
}
func (e Star) String() string { return e.Inner.String() + "*" }

// TestExpr is a node of the Boolean test sub-language.
type TestExpr interface {
	isTest()
	String() string
	rank() int
}

// TestZero is the always-false test.
type TestZero struct{}

// TestOne is the always-true test.
type TestOne struct{}

// Atom is a primitive test symbol.
type Atom struct {
	Symbol Symbol
}

// Not negates a test.
type Not struct {
	Inner TestExpr
}

// And conjoins two tests.
type And struct {
	Left, Right TestExpr
}

// Or disjoins two tests.
type Or struct {
	Left, Right TestExpr
}

func (TestZero) isTest() {}
func (TestOne) isTest()  {}
func (Atom) isTest()     {}
func (Not) isTest()      {}
func (And) isTest()      {}
func (Or) isTest()       {}

func (TestZero) rank() int { return 0 }
func (TestOne) rank() int  { return 1 }
func (Atom) rank() int     { return 2 }
func (Not) rank() int      { return 3 }
func (And) rank() int      { return 4 }
func (Or) rank() int       { return 5 }

func (TestZero) String() string { return "0" }
func (TestOne) String() string  { return "1" }
func (t Atom) String() string   { return string(t.Symbol) }
func (t Not) String() string    { return "!(" + t.Inner.String() + ")" }
func (t And) String() string    { return "(" + t.Left.String() + "&" + t.Right.String() + ")" }
func (t Or) String() string     { return "(" + t.Left.String() + "|" + t.Right.String() + ")" }

// CompareTests imposes a total structural order on test expressions:
// variants order Zero < One < Atom < Not < And < Or, fields compared
// left to right within a variant.
func CompareTests(a, b TestExpr) int {
	if r := a.rank() - b.rank(); r != 0 {
		return sign(r)
	}
	switch left := a.(type) {
	case TestZero, TestOne:
		return 0
	case Atom:
		return strings.Compare(string(left.Symbol), string(b.(Atom).Symbol))
	case Not:
		return CompareTests(left.Inner, b.(Not).Inner)
	case And:
		right := b.(And)
		if r := CompareTests(left.Left, right.Left); r != 0 {
			return r
		}
		return CompareTests(left.Right, right.Right)
	case Or:
		right := b.(Or)
		if r := CompareTests(left.Left, right.Left); r != 0 {
			return r
		}
		return CompareTests(left.Right, right.Right)
	}
	return 0
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}
