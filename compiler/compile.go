package compiler

import (
	"fmt"
	"regexp"

	"github.com/chazu/pl0c/tac"
)

// ---------------------------------------------------------------------------
// Compilation unit: lex, parse, analyze, generate
// ---------------------------------------------------------------------------

// Options configures a compilation unit.
type Options struct {
	// TolerantLexer reports every lexical error instead of the first.
	TolerantLexer bool
	// MainLabel names the entry label. Defaults to "main".
	MainLabel string
}

var labelName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate reports an *OptionError when the options cannot produce valid
// code. An empty main label means the default.
func (o Options) Validate() error {
	label := o.MainLabel
	if label == "" {
		return nil
	}
	reason := ""
	switch {
	case !labelName.MatchString(label):
		reason = "must be a letter or underscore followed by letters, digits or underscores"
	case generatedName.MatchString(label):
		reason = "collides with generated temporaries and labels"
	case label == tac.Null:
		reason = "is the empty-field marker of the record format"
	}
	if reason != "" {
		return &OptionError{Option: "main label", Value: label, Reason: reason}
	}
	return nil
}

// Result holds the output of every stage of a successful compilation.
type Result struct {
	Tokens  []Token
	Program *Program
	Symbols *SymbolTable
	Code    *tac.Code
}

// Unit is one compilation of one source text. Each Compile call uses a fresh
// generator, so units share no counters.
type Unit struct {
	Name    string
	Source  string
	Options Options

	// Generate replaces code generation for a checked program, for example
	// with a cached lookup. Nil means a fresh Generator.
	Generate func(prog *Program, table *SymbolTable) (*tac.Code, error)
}

// NewUnit creates a unit for source. Name identifies the unit in reports.
func NewUnit(name, source string, opts Options) *Unit {
	if opts.MainLabel == "" {
		opts.MainLabel = DefaultMainLabel
	}
	return &Unit{Name: name, Source: source, Options: opts}
}

// Compile runs the stages in order and stops at the first failing one.
// On failure no partial result is returned.
func (u *Unit) Compile() (*Result, error) {
	tokens, prog, table, err := u.check()
	if err != nil {
		return nil, err
	}

	generate := u.Generate
	if generate == nil {
		generate = func(prog *Program, table *SymbolTable) (*tac.Code, error) {
			return NewGenerator(table).Generate(prog)
		}
	}
	code, err := generate(prog, table)
	if err != nil {
		return nil, err
	}

	return &Result{Tokens: tokens, Program: prog, Symbols: table, Code: code}, nil
}

// Check runs every stage except code generation. The program is returned
// when only the semantic stage failed.
func (u *Unit) Check() (*Program, *SymbolTable, error) {
	_, prog, table, err := u.check()
	if err != nil {
		return prog, nil, err
	}
	return prog, table, nil
}

func (u *Unit) check() ([]Token, *Program, *SymbolTable, error) {
	if err := u.Options.Validate(); err != nil {
		return nil, nil, nil, err
	}
	tokens, err := Tokenize(u.Source, LexOptions{Tolerant: u.Options.TolerantLexer})
	if err != nil {
		return nil, nil, nil, err
	}
	prog, err := Parse(tokens)
	if err != nil {
		return nil, nil, nil, err
	}
	analyzer := NewSemanticAnalyzer()
	analyzer.MainLabel = u.Options.MainLabel
	table, err := analyzer.Analyze(prog)
	if err != nil {
		return tokens, prog, nil, err
	}
	return tokens, prog, table, nil
}

// Compile compiles a complete program.
func Compile(source string, opts Options) (*Result, error) {
	return NewUnit("", source, opts).Compile()
}

// CompileExpression lexes, parses and lowers a standalone expression.
// Identifiers are not resolved; they are loaded by name.
func CompileExpression(source string) (*tac.Code, string, error) {
	tokens, err := Tokenize(source, LexOptions{})
	if err != nil {
		return nil, "", err
	}
	expr, err := ParseExpression(tokens)
	if err != nil {
		return nil, "", err
	}
	g := NewGenerator(nil)
	result := g.Expr(expr)
	if len(g.errors) > 0 {
		return nil, "", fmt.Errorf("codegen: %v", g.errors)
	}
	return g.Code(), result, nil
}
