package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/chazu/pl0c/compiler"

	_ "github.com/tliron/commonlog/simple"
)

// errCompile is returned after diagnostics have been printed.
var errCompile = errors.New("compilation failed")

// compileFlags are shared by every command that compiles a single file.
type compileFlags struct {
	mainLabel string
	tolerant  bool
}

func (f *compileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.mainLabel, "main", "m", compiler.DefaultMainLabel, "entry label of the generated code")
	cmd.Flags().BoolVar(&f.tolerant, "tolerant", false, "report every lexical error instead of the first")
}

func (f *compileFlags) options() compiler.Options {
	return compiler.Options{MainLabel: f.mainLabel, TolerantLexer: f.tolerant}
}

func newRootCmd() *cobra.Command {
	var verbosity int

	root := &cobra.Command{
		Use:   "pl0c",
		Short: "PL/0 compiler front end",
		Long: `pl0c compiles PL/0 programs to three-address code.

Commands:
  tokens   Print the token stream of a source file
  parse    Print the syntax tree as JSON
  symbols  Print the scope tree as JSON
  tac      Compile a file and print its three-address code
  run      Compile and execute a file
  build    Build every source of a pl0.toml project
  serve    Start the compile service (gRPC + Connect HTTP/JSON)
  lsp      Start the language server on stdio
  remote   Compile a file on a running compile service
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			commonlog.Configure(verbosity, nil)
		},
	}
	root.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeatable)")

	root.AddCommand(
		newTokensCmd(),
		newParseCmd(),
		newSymbolsCmd(),
		newTacCmd(),
		newRunCmd(),
		newBuildCmd(),
		newServeCmd(),
		newLspCmd(),
		newRemoteCmd(),
	)
	return root
}

// readSource reads a source file, or standard input for "-".
func readSource(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// displayName is the name diagnostics are reported under.
func displayName(path string) string {
	if path == "-" {
		return "<stdin>"
	}
	return filepath.Clean(path)
}

// printDiagnostics writes err as file:line:column diagnostics and returns
// errCompile. Errors that are not compile errors are returned unchanged.
func printDiagnostics(w io.Writer, name string, err error) error {
	diags := compiler.Diagnostics(err)
	if len(diags) == 1 && diags[0].Kind == compiler.KindInternal {
		return err
	}
	for _, d := range diags {
		fmt.Fprintf(w, "%s:%d:%d: %s error: %s\n", name, d.Line, d.Column, d.Kind, d.Message)
	}
	return errCompile
}
