package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chazu/pl0c/build"
	"github.com/chazu/pl0c/manifest"
)

func newBuildCmd() *cobra.Command {
	var (
		dir     string
		jobs    int
		formats []string
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "build [files...]",
		Short: "Build every source of a pl0.toml project",
		Long: `Build every source of a pl0.toml project.

The manifest is searched for from --dir upwards. Without one, the sources
under --dir are built with default settings. Files named on the command
line are built instead of the discovered sources.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadManifest(dir)
			if err != nil {
				return err
			}
			if len(formats) > 0 {
				m.Output.Formats = formats
			}
			if noCache {
				m.Cache.Enabled = false
			}

			var opts []build.Option
			if jobs > 0 {
				opts = append(opts, build.WithJobs(jobs))
			}
			if len(args) > 0 {
				files := make([]string, len(args))
				for i, a := range args {
					if files[i], err = filepath.Abs(a); err != nil {
						return err
					}
				}
				opts = append(opts, build.WithFiles(files...))
			}

			report, err := build.Run(cmd.Context(), m, opts...)
			if report != nil {
				printReport(cmd.OutOrStdout(), cmd.ErrOrStderr(), m, report)
			}
			if errors.Is(err, build.ErrUnitsFailed) {
				return fmt.Errorf("%d of %d units failed", report.Failed, len(report.Units))
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "C", ".", "project directory")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "units compiled in parallel (default from pl0.toml)")
	cmd.Flags().StringSliceVar(&formats, "format", nil, "output formats, overriding pl0.toml")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "do not use the artifact cache")
	return cmd
}

func loadManifest(dir string) (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}
	if m == nil {
		return manifest.Default(dir)
	}
	return m, nil
}

func printReport(out, errOut io.Writer, m *manifest.Manifest, report *build.Report) {
	for _, u := range report.Units {
		if u == nil {
			continue
		}
		src := u.Source
		if rel, err := filepath.Rel(m.Dir, src); err == nil {
			src = rel
		}
		if u.Err != nil {
			fmt.Fprintf(out, "FAIL  %s\n", src)
			if len(u.Diagnostics) == 0 {
				fmt.Fprintf(errOut, "%s: %v\n", src, u.Err)
			}
			for _, d := range u.Diagnostics {
				fmt.Fprintf(errOut, "%s:%d:%d: %s error: %s\n", src, d.Line, d.Column, d.Kind, d.Message)
			}
			continue
		}
		cached := ""
		if u.Cached {
			cached = ", cached"
		}
		fmt.Fprintf(out, "ok    %s  %d files, %s, %s%s\n",
			src, len(u.Outputs), humanize.Bytes(uint64(u.Bytes)), u.Duration.Round(time.Microsecond), cached)
	}
	fmt.Fprintf(out, "%d units, %d cached, %d failed, %s written\n",
		len(report.Units), report.CacheHits, report.Failed, humanize.Bytes(uint64(report.Bytes)))
}
