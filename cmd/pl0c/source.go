package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/pl0c/build"
	"github.com/chazu/pl0c/compiler"
	"github.com/chazu/pl0c/compiler/export"
	"github.com/chazu/pl0c/manifest"
	"github.com/chazu/pl0c/vm"
)

func newTokensCmd() *cobra.Command {
	var asJSON, tolerant bool
	cmd := &cobra.Command{
		Use:   "tokens <file|->",
		Short: "Print the token stream of a source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			tokens, lexErr := compiler.Tokenize(src, compiler.LexOptions{Tolerant: tolerant})
			out := cmd.OutOrStdout()
			if asJSON {
				if err := export.WriteJSON(out, export.Tokens(tokens)); err != nil {
					return err
				}
			} else {
				for _, tok := range tokens {
					fmt.Fprintf(out, "%s\t%s\n", tok.Pos, tok)
				}
			}
			if lexErr != nil {
				return printDiagnostics(cmd.ErrOrStderr(), displayName(args[0]), lexErr)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print tokens as JSON records")
	cmd.Flags().BoolVar(&tolerant, "tolerant", false, "report every lexical error instead of the first")
	return cmd
}

func newParseCmd() *cobra.Command {
	var tolerant bool
	cmd := &cobra.Command{
		Use:   "parse <file|->",
		Short: "Print the syntax tree as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			name := displayName(args[0])
			tokens, err := compiler.Tokenize(src, compiler.LexOptions{Tolerant: tolerant})
			if err != nil {
				return printDiagnostics(cmd.ErrOrStderr(), name, err)
			}
			prog, err := compiler.Parse(tokens)
			if err != nil {
				return printDiagnostics(cmd.ErrOrStderr(), name, err)
			}
			return export.WriteJSON(cmd.OutOrStdout(), export.Tree(prog))
		},
	}
	cmd.Flags().BoolVar(&tolerant, "tolerant", false, "report every lexical error instead of the first")
	return cmd
}

func newSymbolsCmd() *cobra.Command {
	var flags compileFlags
	cmd := &cobra.Command{
		Use:   "symbols <file|->",
		Short: "Print the scope tree as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			name := displayName(args[0])
			_, table, err := compiler.NewUnit(name, src, flags.options()).Check()
			if err != nil {
				return printDiagnostics(cmd.ErrOrStderr(), name, err)
			}
			return export.WriteJSON(cmd.OutOrStdout(), export.Symbols(table))
		},
	}
	flags.register(cmd)
	return cmd
}

func newTacCmd() *cobra.Command {
	var (
		flags  compileFlags
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "tac <file|->",
		Short: "Compile a file and print its three-address code",
		Long: `Compile a file and print its three-address code.

Formats: listing (default), records, tokens, tree, symbols, cbor.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if build.Extension(format) == "" {
				return fmt.Errorf("unknown format %q", format)
			}
			src, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			name := displayName(args[0])
			res, err := compiler.NewUnit(name, src, flags.options()).Compile()
			if err != nil {
				return printDiagnostics(cmd.ErrOrStderr(), name, err)
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return build.WriteFormat(w, format, res)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", manifest.FormatListing, "output format")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	return cmd
}

func newRunCmd() *cobra.Command {
	var (
		flags     compileFlags
		input     string
		stepLimit int
		eval      bool
		showVars  bool
	)
	cmd := &cobra.Command{
		Use:   "run <file|->",
		Short: "Compile and execute a file",
		Long: `Compile and execute a file.

Program input (?) is read from --input, or from stdin when the source is a
file. Output (!) is written to stdout, one integer per line.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			name := displayName(args[0])
			res, err := compiler.NewUnit(name, src, flags.options()).Compile()
			if err != nil {
				return printDiagnostics(cmd.ErrOrStderr(), name, err)
			}

			var in io.Reader = cmd.InOrStdin()
			if input != "" {
				in = strings.NewReader(input)
			} else if args[0] == "-" {
				in = strings.NewReader("")
			}
			out := cmd.OutOrStdout()
			opts := []vm.Option{
				vm.WithInput(in),
				vm.WithOutput(out),
				vm.WithStepLimit(stepLimit),
				vm.WithEntry(flags.mainLabel),
			}

			var vars map[string]int64
			if eval {
				vars, err = vm.Eval(cmd.Context(), res.Program, res.Symbols, opts...)
			} else {
				m := vm.New(opts...)
				err = m.Run(cmd.Context(), res.Code)
				vars = m.Vars()
			}
			if showVars {
				fmt.Fprint(cmd.ErrOrStderr(), vm.FormatVars(vars))
			}
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&input, "input", "i", "", "program input instead of stdin")
	cmd.Flags().IntVar(&stepLimit, "step-limit", vm.DefaultStepLimit, "maximum executed steps (0 for no limit)")
	cmd.Flags().BoolVar(&eval, "eval", false, "interpret the syntax tree instead of the generated code")
	cmd.Flags().BoolVar(&showVars, "vars", false, "print the final variable values to stderr")
	return cmd
}
