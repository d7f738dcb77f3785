package compiler

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for PL/0
// ---------------------------------------------------------------------------

// Parser builds a syntax tree from a token slice. It stops at the first
// token that does not fit the grammar.
type Parser struct {
	tokens    []Token
	pos       int   // index of curToken
	curToken  Token // current token
	prevToken Token // last consumed token
	err       *SyntaxError
}

// NewParser creates a parser over tokens. A missing trailing EOF token is
// supplied.
func NewParser(tokens []Token) *Parser {
	if n := len(tokens); n == 0 || tokens[n-1].Type != TokenEOF {
		var pos Position
		if n > 0 {
			pos = tokenSpan(tokens[n-1]).End
		} else {
			pos = Position{Line: 1, Column: 1}
		}
		tokens = append(tokens[:n:n], Token{Type: TokenEOF, Pos: pos})
	}
	p := &Parser{tokens: tokens}
	p.curToken = tokens[0]
	return p
}

// nextToken advances to the next token. The parser never moves past EOF.
func (p *Parser) nextToken() {
	p.prevToken = p.curToken
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	p.curToken = p.tokens[p.pos]
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// accept consumes the current token if it has type t.
func (p *Parser) accept(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it has type t, otherwise records a
// syntax error.
func (p *Parser) expect(t TokenType) (Token, bool) {
	tok := p.curToken
	if p.accept(t) {
		return tok, true
	}
	p.fail(quoteType(t))
	return tok, false
}

// fail records the first syntax error; later calls are ignored.
func (p *Parser) fail(expected string) {
	if p.err == nil {
		p.err = &SyntaxError{Expected: expected, Found: p.curToken}
	}
}

// errorf records a syntax error with a custom message.
func (p *Parser) errorf(format string, args ...interface{}) {
	if p.err == nil {
		p.err = &SyntaxError{Found: p.curToken, Message: fmt.Sprintf(format, args...)}
	}
}

// failed reports whether an error has been recorded.
func (p *Parser) failed() bool {
	return p.err != nil
}

// Err returns the recorded syntax error, or nil.
func (p *Parser) Err() error {
	if p.err == nil {
		return nil
	}
	return p.err
}

func quoteType(t TokenType) string {
	switch t {
	case TokenIdent:
		return "identifier"
	case TokenNumber:
		return "number"
	case TokenEOF:
		return "end of input"
	}
	return fmt.Sprintf("%q", t.String())
}

// spanFrom returns the span from start to the end of the last consumed token.
func (p *Parser) spanFrom(start Position) Span {
	return MakeSpan(start, tokenSpan(p.prevToken).End)
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// Parse parses a complete program from tokens.
func Parse(tokens []Token) (*Program, error) {
	p := NewParser(tokens)
	prog := p.ParseProgram()
	if err := p.Err(); err != nil {
		return nil, err
	}
	return prog, nil
}

// ParseExpression parses tokens holding exactly one expression.
func ParseExpression(tokens []Token) (Expr, error) {
	p := NewParser(tokens)
	expr := p.parseExpression()
	if !p.failed() && !p.curTokenIs(TokenEOF) {
		p.fail("end of input")
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	return expr, nil
}

// ParseProgram parses program = block "." EOF.
func (p *Parser) ParseProgram() *Program {
	start := p.curToken.Pos
	block := p.parseBlock()
	if p.failed() {
		return nil
	}
	if _, ok := p.expect(TokenPeriod); !ok {
		return nil
	}
	if !p.curTokenIs(TokenEOF) {
		p.fail("end of input")
		return nil
	}
	return &Program{SpanVal: p.spanFrom(start), Block: block}
}

// parseBlock parses declarations and the block's statement.
func (p *Parser) parseBlock() *Block {
	start := p.curToken.Pos
	block := &Block{}

	if p.accept(TokenConst) {
		for {
			c := p.parseConstDecl()
			if c == nil {
				return nil
			}
			block.Consts = append(block.Consts, c)
			if !p.accept(TokenComma) {
				break
			}
		}
		if _, ok := p.expect(TokenSemicolon); !ok {
			return nil
		}
	}

	if p.accept(TokenVar) {
		for {
			tok, ok := p.expect(TokenIdent)
			if !ok {
				return nil
			}
			block.Vars = append(block.Vars, &VarDecl{SpanVal: tokenSpan(tok), Name: tok.Literal})
			if !p.accept(TokenComma) {
				break
			}
		}
		if _, ok := p.expect(TokenSemicolon); !ok {
			return nil
		}
	}

	for p.curTokenIs(TokenProcedure) {
		proc := p.parseProcDecl()
		if proc == nil {
			return nil
		}
		block.Procs = append(block.Procs, proc)
	}

	block.Body = p.parseStatement()
	if p.failed() {
		return nil
	}
	block.SpanVal = p.spanFrom(start)
	return block
}

// parseConstDecl parses ident "=" number.
func (p *Parser) parseConstDecl() *ConstDecl {
	name, ok := p.expect(TokenIdent)
	if !ok {
		return nil
	}
	if _, ok := p.expect(TokenEqual); !ok {
		return nil
	}
	numTok := p.curToken
	if _, ok := p.expect(TokenNumber); !ok {
		return nil
	}
	value, ok := p.numberValue(numTok)
	if !ok {
		return nil
	}
	return &ConstDecl{SpanVal: p.spanFrom(name.Pos), Name: name.Literal, Value: value}
}

// parseProcDecl parses "procedure" ident ";" block ";".
func (p *Parser) parseProcDecl() *ProcDecl {
	start := p.curToken.Pos
	p.nextToken() // consume procedure
	name, ok := p.expect(TokenIdent)
	if !ok {
		return nil
	}
	if _, ok := p.expect(TokenSemicolon); !ok {
		return nil
	}
	block := p.parseBlock()
	if block == nil {
		return nil
	}
	if _, ok := p.expect(TokenSemicolon); !ok {
		return nil
	}
	return &ProcDecl{
		SpanVal:  p.spanFrom(start),
		NameSpan: tokenSpan(name),
		Name:     name.Literal,
		Block:    block,
	}
}

// numberValue converts a number token, rejecting values that overflow int64.
func (p *Parser) numberValue(tok Token) (int64, bool) {
	v, err := strconv.ParseInt(tok.Literal, 10, 64)
	if err != nil {
		if p.err == nil {
			p.err = &SyntaxError{Found: tok, Message: fmt.Sprintf("number %s out of range", tok.Literal)}
		}
		return 0, false
	}
	return v, true
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// parseStatement parses a single statement.
func (p *Parser) parseStatement() Stmt {
	start := p.curToken.Pos

	switch p.curToken.Type {
	case TokenIdent:
		target := p.parseIdent()
		if _, ok := p.expect(TokenAssign); !ok {
			return nil
		}
		value := p.parseExpression()
		if p.failed() {
			return nil
		}
		return &Assignment{SpanVal: p.spanFrom(start), Target: target, Value: value}

	case TokenCall:
		p.nextToken()
		if !p.curTokenIs(TokenIdent) {
			p.fail("identifier")
			return nil
		}
		target := p.parseIdent()
		return &Call{SpanVal: p.spanFrom(start), Target: target}

	case TokenQuestion:
		p.nextToken()
		if !p.curTokenIs(TokenIdent) {
			p.fail("identifier")
			return nil
		}
		target := p.parseIdent()
		return &Read{SpanVal: p.spanFrom(start), Target: target}

	case TokenBang:
		p.nextToken()
		value := p.parseExpression()
		if p.failed() {
			return nil
		}
		return &Write{SpanVal: p.spanFrom(start), Value: value}

	case TokenBegin:
		return p.parseBegin()

	case TokenIf:
		p.nextToken()
		cond := p.parseCondition()
		if p.failed() {
			return nil
		}
		if _, ok := p.expect(TokenThen); !ok {
			return nil
		}
		then := p.parseStatement()
		if p.failed() {
			return nil
		}
		return &If{SpanVal: p.spanFrom(start), Cond: cond, Then: then}

	case TokenWhile:
		p.nextToken()
		cond := p.parseCondition()
		if p.failed() {
			return nil
		}
		if _, ok := p.expect(TokenDo); !ok {
			return nil
		}
		body := p.parseStatement()
		if p.failed() {
			return nil
		}
		return &While{SpanVal: p.spanFrom(start), Cond: cond, Body: body}
	}

	p.fail("statement")
	return nil
}

// parseBegin parses "begin" statement { ";" statement } [ ";" ] "end".
func (p *Parser) parseBegin() Stmt {
	start := p.curToken.Pos
	p.nextToken() // consume begin

	var stmts []Stmt
	for {
		stmt := p.parseStatement()
		if p.failed() {
			return nil
		}
		stmts = append(stmts, stmt)
		if !p.accept(TokenSemicolon) {
			break
		}
		if p.curTokenIs(TokenEnd) {
			break
		}
	}
	if _, ok := p.expect(TokenEnd); !ok {
		return nil
	}
	return &Begin{SpanVal: p.spanFrom(start), Statements: stmts}
}

// parseCondition parses "odd" expression | "(" expression relop expression ")".
func (p *Parser) parseCondition() *Condition {
	start := p.curToken.Pos

	if p.accept(TokenOdd) {
		operand := p.parseExpression()
		if p.failed() {
			return nil
		}
		return &Condition{SpanVal: p.spanFrom(start), Op: RelOdd, Left: operand}
	}

	if !p.curTokenIs(TokenLParen) {
		p.fail(`"odd" or "("`)
		return nil
	}
	p.nextToken()
	left := p.parseExpression()
	if p.failed() {
		return nil
	}
	op, ok := relOperators[p.curToken.Type]
	if !ok {
		p.fail("relational operator")
		return nil
	}
	p.nextToken()
	right := p.parseExpression()
	if p.failed() {
		return nil
	}
	if _, ok := p.expect(TokenRParen); !ok {
		return nil
	}
	return &Condition{SpanVal: p.spanFrom(start), Op: op, Left: left, Right: right}
}

var relOperators = map[TokenType]RelOperator{
	TokenEqual:     RelEq,
	TokenHash:      RelNe,
	TokenLess:      RelLt,
	TokenLessEq:    RelLe,
	TokenGreater:   RelGt,
	TokenGreaterEq: RelGe,
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// parseExpression parses [ "+" | "-" ] term { ("+" | "-") term }.
func (p *Parser) parseExpression() Expr {
	start := p.curToken.Pos

	var left Expr
	switch {
	case p.accept(TokenMinus):
		operand := p.parseTerm()
		if p.failed() {
			return nil
		}
		left = &UnaryOp{SpanVal: p.spanFrom(start), Op: OpNeg, Operand: operand}
	case p.accept(TokenPlus):
		left = p.parseTerm()
	default:
		left = p.parseTerm()
	}
	if p.failed() {
		return nil
	}

	for p.curTokenIs(TokenPlus) || p.curTokenIs(TokenMinus) {
		op := OpAdd
		if p.curTokenIs(TokenMinus) {
			op = OpSub
		}
		p.nextToken()
		right := p.parseTerm()
		if p.failed() {
			return nil
		}
		left = &BinaryOp{SpanVal: p.spanFrom(start), Op: op, Left: left, Right: right}
	}
	return left
}

// parseTerm parses factor { ("*" | "/") factor }.
func (p *Parser) parseTerm() Expr {
	start := p.curToken.Pos

	left := p.parseFactor()
	if p.failed() {
		return nil
	}
	for p.curTokenIs(TokenStar) || p.curTokenIs(TokenSlash) {
		op := OpMul
		if p.curTokenIs(TokenSlash) {
			op = OpDiv
		}
		p.nextToken()
		right := p.parseFactor()
		if p.failed() {
			return nil
		}
		left = &BinaryOp{SpanVal: p.spanFrom(start), Op: op, Left: left, Right: right}
	}
	return left
}

// parseFactor parses ident | number | "(" expression ")".
func (p *Parser) parseFactor() Expr {
	start := p.curToken.Pos

	switch p.curToken.Type {
	case TokenIdent:
		return p.parseIdent()

	case TokenNumber:
		tok := p.curToken
		value, ok := p.numberValue(tok)
		if !ok {
			return nil
		}
		p.nextToken()
		return &NumberLit{SpanVal: tokenSpan(tok), Value: value}

	case TokenLParen:
		p.nextToken()
		inner := p.parseExpression()
		if p.failed() {
			return nil
		}
		if _, ok := p.expect(TokenRParen); !ok {
			return nil
		}
		// Parenthesized expressions keep the inner node; its span grows to
		// cover the parentheses.
		setSpan(inner, p.spanFrom(start))
		return inner
	}

	p.fail("identifier, number or \"(\"")
	return nil
}

func (p *Parser) parseIdent() *Ident {
	tok := p.curToken
	p.nextToken()
	return &Ident{SpanVal: tokenSpan(tok), Name: tok.Literal}
}

func setSpan(e Expr, s Span) {
	switch n := e.(type) {
	case *BinaryOp:
		n.SpanVal = s
	case *UnaryOp:
		n.SpanVal = s
	}
}
