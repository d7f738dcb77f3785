package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chazu/pl0c/server"
	"github.com/chazu/pl0c/store"
	"github.com/chazu/pl0c/vm"
)

func newServeCmd() *cobra.Command {
	var (
		addr      string
		cachePath string
		stepLimit int
		workers   int
		unitTTL   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the compile service (gRPC + Connect HTTP/JSON)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := []server.ServerOption{
				server.WithStepLimit(stepLimit),
				server.WithUnitTTL(unitTTL),
			}
			if workers > 0 {
				opts = append(opts, server.WithWorkers(workers))
			}
			if cachePath != "" {
				st, err := store.Open(ctx, cachePath)
				if err != nil {
					return fmt.Errorf("opening cache: %w", err)
				}
				defer st.Close()
				opts = append(opts, server.WithStore(st))
			}

			srv := server.New(opts...)
			defer srv.Stop()
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":4567", "listen address")
	cmd.Flags().StringVar(&cachePath, "cache", "", "artifact cache database (disabled when empty)")
	cmd.Flags().IntVar(&stepLimit, "step-limit", vm.DefaultStepLimit, "maximum executed steps per run (0 for no limit)")
	cmd.Flags().IntVar(&workers, "workers", 0, "requests processed at once (default GOMAXPROCS)")
	cmd.Flags().DurationVar(&unitTTL, "unit-ttl", 30*time.Minute, "how long an unused compiled unit is kept")
	return cmd
}

func newLspCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Start the language server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.NewLSP().Run()
		},
	}
}

func newRemoteCmd() *cobra.Command {
	var (
		addr    string
		run     bool
		input   string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "remote <file|->",
		Short: "Compile a file on a running compile service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			name := displayName(args[0])

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			client, err := server.Dial(addr)
			if err != nil {
				return err
			}
			defer client.Close()

			res, err := client.Compile(ctx, src, "")
			if err != nil {
				return err
			}
			if !res.OK {
				for _, d := range res.Diagnostics {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s:%d:%d: %s error: %s\n", name, d.Line, d.Column, d.Kind, d.Message)
				}
				return errCompile
			}
			defer client.Release(ctx, res.UnitID)

			out := cmd.OutOrStdout()
			if !run {
				fmt.Fprintln(out, strings.Join(res.Listing, "\n"))
				return nil
			}
			result, err := client.Run(ctx, res.UnitID, input)
			if err != nil {
				return err
			}
			fmt.Fprint(out, result.Output)
			if !result.OK {
				return errors.New(result.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:4567", "compile service address")
	cmd.Flags().BoolVar(&run, "run", false, "execute the program after compiling it")
	cmd.Flags().StringVarP(&input, "input", "i", "", "program input for --run")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	return cmd
}
