package kat

import (
	"fmt"

	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes
const (
	whitespaceCode = iota
	plusCode
	starCode
	semicolonCode
	lparenCode
	rparenCode
	bangCode
	ampersandCode
	pipeCode
	zeroCode
	oneCode
	identifierCode
)

var (
	whitespaceToken = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	plusToken       = parsly.NewToken(plusCode, "+", matcher.NewByte('+'))
	starToken       = parsly.NewToken(starCode, "*", matcher.NewByte('*'))
	semicolonToken  = parsly.NewToken(semicolonCode, ";", matcher.NewByte(';'))
	lparenToken     = parsly.NewToken(lparenCode, "(", matcher.NewByte('('))
	rparenToken     = parsly.NewToken(rparenCode, ")", matcher.NewByte(')'))
	bangToken       = parsly.NewToken(bangCode, "!", matcher.NewByte('!'))
	ampersandToken  = parsly.NewToken(ampersandCode, "&", matcher.NewByte('&'))
	pipeToken       = parsly.NewToken(pipeCode, "|", matcher.NewByte('|'))
	zeroToken       = parsly.NewToken(zeroCode, "0", matcher.NewByte('0'))
	oneToken        = parsly.NewToken(oneCode, "1", matcher.NewByte('1'))
	identifierToken = parsly.NewToken(identifierCode, "Identifier", newIdentifierMatcher())
)

type tokenKind int

const (
	kindEnd tokenKind = iota
	kindAction
	kindTest
	kindZero
	kindOne
	kindPlus
	kindStar
	kindSemicolon
	kindLParen
	kindRParen
	kindBang
	kindAmpersand
	kindPipe
)

func (k tokenKind) String() string {
	switch k {
	case kindEnd:
		return "end of input"
	case kindAction:
		return "action"
	case kindTest:
		return "test"
	case kindZero:
		return "`0`"
	case kindOne:
		return "`1`"
	case kindPlus:
		return "`+`"
	case kindStar:
		return "`*`"
	case kindSemicolon:
		return "`;`"
	case kindLParen:
		return "`(`"
	case kindRParen:
		return "`)`"
	case kindBang:
		return "`!`"
	case kindAmpersand:
		return "`&`"
	case kindPipe:
		return "`|`"
	}
	return "unknown"
}

type token struct {
	kind   tokenKind
	symbol Symbol
	offset int
}

var operatorKinds = map[int]tokenKind{
	plusCode:      kindPlus,
	starCode:      kindStar,
	semicolonCode: kindSemicolon,
	lparenCode:    kindLParen,
	rparenCode:    kindRParen,
	bangCode:      kindBang,
	ampersandCode: kindAmpersand,
	pipeCode:      kindPipe,
	zeroCode:      kindZero,
	oneCode:       kindOne,
}

// scan tokenises the whole input up-front so the parser can look ahead
// without re-lexing.
func scan(input string, config *Config) ([]token, error) {
	cursor := parsly.NewCursor("", []byte(input), 0)
	var tokens []token
	for {
		offset := cursor.Pos
		matched := cursor.MatchAfterOptional(whitespaceToken,
			plusToken, starToken, semicolonToken, lparenToken, rparenToken,
			bangToken, ampersandToken, pipeToken, zeroToken, oneToken, identifierToken)

		switch matched.Code {
		case parsly.EOF:
			tokens = append(tokens, token{kind: kindEnd, offset: len(input)})
			return tokens, nil
		case identifierCode:
			name := matched.Text(cursor)
			kind, err := config.classify(name, offset)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: kind, symbol: Symbol(name), offset: offset})
		default:
			kind, ok := operatorKinds[matched.Code]
			if !ok {
				if cursor.Pos < len(input) {
					return nil, fmt.Errorf("unexpected character `%c` (at %d)", input[cursor.Pos], cursor.Pos)
				}
				return nil, fmt.Errorf("unexpected end of input")
			}
			tokens = append(tokens, token{kind: kind, offset: offset})
		}
	}
}

// identifierMatcher matches valid identifier names
type identifierMatcher struct{}

func newIdentifierMatcher() parsly.Matcher {
	return &identifierMatcher{}
}

func (m *identifierMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size {
		return 0
	}

	// First character must be a letter or underscore
	if !isLetter(input[pos]) && input[pos] != '_' {
		return 0
	}

	matched := 1
	for i := pos + 1; i < size; i++ {
		if isLetter(input[i]) || isDigit(input[i]) || input[i] == '_' {
			matched++
			continue
		}
		break
	}
	return matched
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
