package compiler

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Compile errors
// ---------------------------------------------------------------------------

// DiagnosticKind names the stage that produced a diagnostic.
type DiagnosticKind string

const (
	KindLexical  DiagnosticKind = "lexical"
	KindSyntax   DiagnosticKind = "syntax"
	KindSemantic DiagnosticKind = "semantic"
	KindInternal DiagnosticKind = "internal"
)

// SemanticCode classifies a semantic error.
type SemanticCode string

const (
	DuplicateDeclaration SemanticCode = "DuplicateDeclaration"
	Undeclared           SemanticCode = "Undeclared"
	KindMismatch         SemanticCode = "KindMismatch"
)

// Diagnostic is the stage-independent description of a compile error.
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	Code     string         `json:"code,omitempty"`
	Line     int            `json:"line"`
	Column   int            `json:"column"`
	Span     Span           `json:"-"`
	Message  string         `json:"message"`
	Expected string         `json:"expected,omitempty"`
	Found    string         `json:"found,omitempty"`
	Name     string         `json:"name,omitempty"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d, column %d: %s", d.Line, d.Column, d.Message)
}

// LexicalError reports an unrecognized character.
type LexicalError struct {
	Pos     Position
	Message string
}

func (e *LexicalError) Error() string {
	return fmt.Sprintf("lexical error: line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Diagnostic returns the error as a Diagnostic.
func (e *LexicalError) Diagnostic() Diagnostic {
	end := e.Pos
	end.Offset++
	end.Column++
	return Diagnostic{
		Kind:    KindLexical,
		Line:    e.Pos.Line,
		Column:  e.Pos.Column,
		Span:    Span{Start: e.Pos, End: end},
		Message: e.Message,
	}
}

// SyntaxError reports the first token that does not fit the grammar.
type SyntaxError struct {
	Expected string
	Found    Token
	Message  string // optional; replaces the expected/found text
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error: line %d, column %d: %s", e.Found.Pos.Line, e.Found.Pos.Column, e.text())
}

func (e *SyntaxError) text() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("expected %s, found %s", e.Expected, describeToken(e.Found))
}

// Diagnostic returns the error as a Diagnostic.
func (e *SyntaxError) Diagnostic() Diagnostic {
	return Diagnostic{
		Kind:     KindSyntax,
		Line:     e.Found.Pos.Line,
		Column:   e.Found.Pos.Column,
		Span:     tokenSpan(e.Found),
		Message:  e.text(),
		Expected: e.Expected,
		Found:    describeToken(e.Found),
	}
}

func describeToken(tok Token) string {
	switch tok.Type {
	case TokenEOF:
		return "end of input"
	case TokenIdent:
		return fmt.Sprintf("identifier %q", tok.Literal)
	case TokenNumber:
		return fmt.Sprintf("number %s", tok.Literal)
	case TokenError:
		return tok.Literal
	}
	return fmt.Sprintf("%q", tok.Literal)
}

// SemanticError reports a declaration or name-resolution problem.
type SemanticError struct {
	Code    SemanticCode
	Name    string
	Span    Span
	Message string
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("semantic error: line %d, column %d: %s", e.Span.Start.Line, e.Span.Start.Column, e.Message)
}

// Diagnostic returns the error as a Diagnostic.
func (e *SemanticError) Diagnostic() Diagnostic {
	return Diagnostic{
		Kind:    KindSemantic,
		Code:    string(e.Code),
		Line:    e.Span.Start.Line,
		Column:  e.Span.Start.Column,
		Span:    e.Span,
		Message: e.Message,
		Name:    e.Name,
	}
}

// ErrorList collects several errors of one stage.
type ErrorList []error

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", l[0].Error(), len(l)-1)
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (l ErrorList) Unwrap() []error {
	return l
}

// OptionError reports a compiler option that cannot be used. It is raised
// before any stage runs and carries no source position.
type OptionError struct {
	Option string
	Value  string
	Reason string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Option, e.Value, e.Reason)
}

type diagnoser interface {
	Diagnostic() Diagnostic
}

// Diagnostics flattens a compile error into diagnostics. Errors that carry
// no position are reported as internal diagnostics at line 0.
func Diagnostics(err error) []Diagnostic {
	if err == nil {
		return nil
	}
	var list ErrorList
	if errors.As(err, &list) {
		var out []Diagnostic
		for _, e := range list {
			out = append(out, Diagnostics(e)...)
		}
		return out
	}
	var d diagnoser
	if errors.As(err, &d) {
		return []Diagnostic{d.Diagnostic()}
	}
	return []Diagnostic{{Kind: KindInternal, Message: err.Error()}}
}
