package compiler

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for PL/0 source
// ---------------------------------------------------------------------------

// Lexer tokenizes PL/0 source code.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // line of ch (1-based)
	col     int  // column of ch (1-based, in runes)
}

// NormalizeNewlines rewrites \r\n and lone \r line endings to \n.
func NormalizeNewlines(src string) string {
	if !strings.Contains(src, "\r") {
		return src
	}
	src = strings.ReplaceAll(src, "\r\n", "\n")
	return strings.ReplaceAll(src, "\r", "\n")
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: NormalizeNewlines(input),
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// readChar reads the next character and advances line/column so that they
// always describe l.ch.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = len(l.input)
		l.col++
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the position of the current character.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	pos := l.position()

	if l.atEOF() {
		return Token{Type: TokenEOF, Literal: "", Pos: pos}
	}

	switch ch := l.ch; {
	case ch == '(':
		return l.single(TokenLParen, pos)
	case ch == ')':
		return l.single(TokenRParen, pos)
	case ch == '*':
		return l.single(TokenStar, pos)
	case ch == '/':
		return l.single(TokenSlash, pos)
	case ch == '+':
		return l.single(TokenPlus, pos)
	case ch == '-':
		return l.single(TokenMinus, pos)
	case ch == '=':
		return l.single(TokenEqual, pos)
	case ch == '#':
		return l.single(TokenHash, pos)
	case ch == ';':
		return l.single(TokenSemicolon, pos)
	case ch == ',':
		return l.single(TokenComma, pos)
	case ch == '.':
		return l.single(TokenPeriod, pos)
	case ch == '?':
		return l.single(TokenQuestion, pos)
	case ch == '!':
		return l.single(TokenBang, pos)

	case ch == '<':
		if l.peekChar() == '=' {
			return l.double(TokenLessEq, pos)
		}
		return l.single(TokenLess, pos)

	case ch == '>':
		if l.peekChar() == '=' {
			return l.double(TokenGreaterEq, pos)
		}
		return l.single(TokenGreater, pos)

	case ch == ':':
		if l.peekChar() == '=' {
			return l.double(TokenAssign, pos)
		}
		l.readChar()
		return Token{Type: TokenError, Literal: "unexpected character ':' (did you mean ':=')", Pos: pos}

	case isDigit(ch):
		return l.readNumber(pos)

	case isLetter(ch) || ch == '_':
		return l.readIdentifierOrKeyword(pos)

	default:
		l.readChar()
		return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character %q", ch), Pos: pos}
	}
}

func (l *Lexer) single(t TokenType, pos Position) Token {
	l.readChar()
	return Token{Type: t, Literal: tokenNames[t], Pos: pos}
}

func (l *Lexer) double(t TokenType, pos Position) Token {
	l.readChar()
	l.readChar()
	return Token{Type: t, Literal: tokenNames[t], Pos: pos}
}

// skipWhitespace skips blanks and newlines.
func (l *Lexer) skipWhitespace() {
	for !l.atEOF() && (l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\f' || l.ch == '\v') {
		l.readChar()
	}
}

// readNumber reads a run of decimal digits.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	return Token{Type: TokenNumber, Literal: l.input[start:l.pos], Pos: pos}
}

// readIdentifierOrKeyword reads an identifier or a reserved word.
func (l *Lexer) readIdentifierOrKeyword(pos Position) Token {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}

	literal := l.input[start:l.pos]
	if tokType, ok := reservedWords[literal]; ok {
		return Token{Type: tokType, Literal: literal, Pos: pos}
	}
	return Token{Type: TokenIdent, Literal: literal, Pos: pos}
}

// Helper functions

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// LexOptions selects the lexical error policy.
type LexOptions struct {
	// Tolerant keeps scanning past unrecognized characters. The returned
	// error then lists every lexical error; the unit still fails.
	Tolerant bool
}

// Tokenize returns all tokens from the input, terminated by a single EOF
// token. In the default (strict) policy the first unrecognized character
// stops scanning and a *LexicalError is returned alongside the tokens read
// so far.
func Tokenize(input string, opts LexOptions) ([]Token, error) {
	l := NewLexer(input)
	var tokens []Token
	var errs ErrorList
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
		if tok.Type == TokenError {
			lerr := &LexicalError{Pos: tok.Pos, Message: tok.Literal}
			if !opts.Tolerant {
				return tokens, lerr
			}
			errs = append(errs, lerr)
		}
	}
	if len(errs) > 0 {
		return tokens, errs
	}
	return tokens, nil
}
