package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the PL/0 lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenIdent  // x, total, _tmp
	TokenNumber // 42

	// Operators and delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenStar      // *
	TokenSlash     // /
	TokenPlus      // +
	TokenMinus     // -
	TokenEqual     // =
	TokenHash      // #
	TokenLess      // <
	TokenLessEq    // <=
	TokenGreater   // >
	TokenGreaterEq // >=
	TokenSemicolon // ;
	TokenComma     // ,
	TokenPeriod    // .
	TokenAssign    // :=
	TokenQuestion  // ? (read)
	TokenBang      // ! (write)

	// Keywords
	TokenConst
	TokenVar
	TokenProcedure
	TokenCall
	TokenBegin
	TokenEnd
	TokenIf
	TokenThen
	TokenWhile
	TokenDo
	TokenOdd
)

var tokenNames = map[TokenType]string{
	TokenEOF:       "EOF",
	TokenError:     "ERROR",
	TokenIdent:     "IDENT",
	TokenNumber:    "NUMBER",
	TokenLParen:    "(",
	TokenRParen:    ")",
	TokenStar:      "*",
	TokenSlash:     "/",
	TokenPlus:      "+",
	TokenMinus:     "-",
	TokenEqual:     "=",
	TokenHash:      "#",
	TokenLess:      "<",
	TokenLessEq:    "<=",
	TokenGreater:   ">",
	TokenGreaterEq: ">=",
	TokenSemicolon: ";",
	TokenComma:     ",",
	TokenPeriod:    ".",
	TokenAssign:    ":=",
	TokenQuestion:  "?",
	TokenBang:      "!",
	TokenConst:     "const",
	TokenVar:       "var",
	TokenProcedure: "procedure",
	TokenCall:      "call",
	TokenBegin:     "begin",
	TokenEnd:       "end",
	TokenIf:        "if",
	TokenThen:      "then",
	TokenWhile:     "while",
	TokenDo:        "do",
	TokenOdd:       "odd",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// IsKeyword reports whether t is a reserved word.
func (t TokenType) IsKeyword() bool {
	return t >= TokenConst && t <= TokenOdd
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text
	Pos     Position // start position
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenError:
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	case TokenIdent, TokenNumber:
		return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
	}
	return fmt.Sprintf("%q", t.Literal)
}

// Reserved words mapped to their token types. Matching is exact and
// case-sensitive.
var reservedWords = map[string]TokenType{
	"const":     TokenConst,
	"var":       TokenVar,
	"procedure": TokenProcedure,
	"call":      TokenCall,
	"begin":     TokenBegin,
	"end":       TokenEnd,
	"if":        TokenIf,
	"then":      TokenThen,
	"while":     TokenWhile,
	"do":        TokenDo,
	"odd":       TokenOdd,
}

// Keywords returns the reserved words in declaration order.
func Keywords() []string {
	out := make([]string, 0, len(reservedWords))
	for t := TokenConst; t <= TokenOdd; t++ {
		out = append(out, tokenNames[t])
	}
	return out
}
