package kat

import "fmt"

// Parse parses a KAT expression from input using the given vocabulary
// configuration. Precedence, loosest first: choice (`+`), concatenation
// (`;` or juxtaposition), Kleene star (postfix `*`). The Boolean test
// sub-language uses `|` (or `+` where unambiguous) for disjunction, `&` for
// conjunction and `!` for negation.
func Parse(input string, config *Config) (Expr, error) {
	tokens, err := scan(input, config)
	if err != nil {
		return nil, err
	}
	parser := &parser{tokens: tokens}
	expr, err := parser.parseChoice()
	if err != nil {
		return nil, err
	}
	if next := parser.peek(); next.kind != kindEnd {
		return nil, fmt.Errorf("unexpected token after end of expression (at %d)", next.offset)
	}
	return expr, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) bump() token {
	current := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return current
}

func (p *parser) takeIf(kind tokenKind) bool {
	if p.peek().kind == kind {
		p.bump()
		return true
	}
	return false
}

func (p *parser) expect(kind tokenKind) error {
	if p.peek().kind == kind {
		p.bump()
		return nil
	}
	found := p.peek()
	return fmt.Errorf("expected %v, found %v (at %d)", kind, found.kind, found.offset)
}

func (p *parser) parseChoice() (Expr, error) {
	expr, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	for p.takeIf(kindPlus) {
		rhs, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		expr = Choice{Left: expr, Right: rhs}
	}
	return expr, nil
}

func (p *parser) parseConcat() (Expr, error) {
	expr, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		if p.takeIf(kindSemicolon) {
			rhs, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			expr = Sequence{Left: expr, Right: rhs}
			continue
		}
		if p.nextBeginsUnary() {
			rhs, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			expr = Sequence{Left: expr, Right: rhs}
			continue
		}
		return expr, nil
	}
}

func (p *parser) nextBeginsUnary() bool {
	switch p.peek().kind {
	case kindAction, kindTest, kindZero, kindOne, kindLParen, kindBang:
		return true
	}
	return false
}

func (p *parser) parseUnary() (Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.takeIf(kindStar) {
		expr = Star{Inner: expr}
	}
	return expr, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	switch next := p.peek(); next.kind {
	case kindAction:
		token := p.bump()
		return Action{Symbol: token.symbol}, nil
	case kindTest:
		test, err := p.parseTestExpr(true)
		if err != nil {
			return nil, err
		}
		return Test{Test: test}, nil
	case kindBang:
		test, err := p.parseTestExpr(false)
		if err != nil {
			return nil, err
		}
		return Test{Test: test}, nil
	case kindZero:
		p.bump()
		return Zero{}, nil
	case kindOne:
		p.bump()
		return One{}, nil
	case kindLParen:
		p.bump()
		expr, err := p.parseChoice()
		if err != nil {
			return nil, err
		}
		if err := p.expect(kindRParen); err != nil {
			return nil, err
		}
		return expr, nil
	default:
		return nil, fmt.Errorf("unexpected token %v in expression (at %d)", next.kind, next.offset)
	}
}

// parseTestExpr parses the Boolean sub-language. When stopOnChoice is set a
// top level `+` is left to the KAT grammar instead of being consumed as
// disjunction.
func (p *parser) parseTestExpr(stopOnChoice bool) (TestExpr, error) {
	return p.parseTestDisjunction(stopOnChoice)
}

func (p *parser) parseTestDisjunction(stopOnChoice bool) (TestExpr, error) {
	expr, err := p.parseTestConjunction(stopOnChoice)
	if err != nil {
		return nil, err
	}
	for {
		isJoin := false
		switch p.peek().kind {
		case kindPipe:
			isJoin = true
		case kindPlus:
			isJoin = !stopOnChoice
		}
		if !isJoin {
			return expr, nil
		}
		p.bump()
		rhs, err := p.parseTestConjunction(stopOnChoice)
		if err != nil {
			return nil, err
		}
		expr = Or{Left: expr, Right: rhs}
	}
}

func (p *parser) parseTestConjunction(stopOnChoice bool) (TestExpr, error) {
	expr, err := p.parseTestNegation(stopOnChoice)
	if err != nil {
		return nil, err
	}
	for p.takeIf(kindAmpersand) {
		rhs, err := p.parseTestNegation(stopOnChoice)
		if err != nil {
			return nil, err
		}
		expr = And{Left: expr, Right: rhs}
	}
	return expr, nil
}

func (p *parser) parseTestNegation(stopOnChoice bool) (TestExpr, error) {
	if p.takeIf(kindBang) {
		expr, err := p.parseTestNegation(false)
		if err != nil {
			return nil, err
		}
		return Not{Inner: expr}, nil
	}
	return p.parseTestAtom(stopOnChoice)
}

func (p *parser) parseTestAtom(stopOnChoice bool) (TestExpr, error) {
	switch next := p.peek(); next.kind {
	case kindTest:
		token := p.bump()
		return Atom{Symbol: token.symbol}, nil
	case kindZero:
		p.bump()
		return TestZero{}, nil
	case kindOne:
		p.bump()
		return TestOne{}, nil
	case kindLParen:
		p.bump()
		expr, err := p.parseTestExpr(false)
		if err != nil {
			return nil, err
		}
		if err := p.expect(kindRParen); err != nil {
			return nil, err
		}
		return expr, nil
	case kindBang:
		return p.parseTestNegation(stopOnChoice)
	default:
		return nil, fmt.Errorf("unexpected token %v in test expression (at %d)", next.kind, next.offset)
	}
}
