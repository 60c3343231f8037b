package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conneroisu/astral/internal/build"
	"github.com/conneroisu/astral/internal/errors"
	"github.com/conneroisu/astral/internal/scanner"
)

var (
	compileOut   string
	compileClean bool
)

var compileCmd = &cobra.Command{
	Use:     "compile [files...]",
	Aliases: []string{"c"},
	Short:   "Compile components into JavaScript render modules",
	Long: `Compile .astro and .md components into JavaScript render modules.

With no arguments every source below the project src directory is compiled.
A single file is printed to stdout unless --out is given.

Examples:
  astral compile src/pages/index.astro
  astral compile --out .astral/modules
  astral compile --clean --out .astral/modules`,
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)

	compileCmd.Flags().StringVarP(&compileOut, "out", "o", "", "Directory to write <file>.js and <file>.css modules to")
	compileCmd.Flags().BoolVar(&compileClean, "clean", false, "Drop the disk compile cache first")
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ws, err := openWorkspace(cfg, logger)
	if err != nil {
		return err
	}
	defer ws.Close()

	ctx := cmd.Context()
	if compileClean {
		if err := build.NewDiskCache(cfg.CacheDir()).DropAll(); err != nil {
			return err
		}
	}

	sources, err := collectSources(ctx, ws.scanner(), args)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No sources found in", cfg.SrcDir())
		return nil
	}

	res, err := ws.pipeline().Compile(ctx, sources)
	if err != nil {
		return err
	}
	ws.logStats(ctx)
	printDiagnostics(cmd.ErrOrStderr(), res)

	switch {
	case compileOut != "":
		if err := build.WriteModules(compileOut, res); err != nil {
			return err
		}
	case len(res.Files) == 1 && res.Files[0].Err == nil:
		fmt.Fprint(cmd.OutOrStdout(), res.Files[0].Output.Contents)
	}

	printSummary(cmd.ErrOrStderr(), res.Metrics)
	if res.Metrics.Failed > 0 {
		return fmt.Errorf("%d of %d files failed to compile", res.Metrics.Failed, res.Metrics.Total)
	}
	return nil
}

// collectSources scans the project, or only the named files when there
// are any.
func collectSources(ctx context.Context, s *scanner.Scanner, files []string) ([]scanner.Source, error) {
	if len(files) == 0 {
		return s.Scan(ctx)
	}
	sources := make([]scanner.Source, 0, len(files))
	for _, f := range files {
		if !scanner.IsSource(f) {
			return nil, errors.ErrNoPlugin(filepath.Ext(f), f)
		}
		src, err := s.ScanFile(f)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func printDiagnostics(w io.Writer, res *build.Result) {
	warn := color.New(color.FgYellow)
	fail := color.New(color.FgRed, color.Bold)
	for _, f := range res.Files {
		if f.Err != nil {
			fail.Fprintf(w, "✗ %s\n", f.Source.FileID)
			fmt.Fprintf(w, "  %v\n", f.Err)
			continue
		}
		for _, d := range f.Output.Warnings {
			warn.Fprintf(w, "! %s: %s\n", f.Source.FileID, d.Message)
		}
	}
}

func printSummary(w io.Writer, m build.Metrics) {
	status := color.New(color.FgGreen, color.Bold)
	if m.Failed > 0 {
		status = color.New(color.FgRed, color.Bold)
	}
	status.Fprintf(w, "Compiled %d/%d files", m.Succeeded, m.Total)
	fmt.Fprintf(w, " (%d warnings) in %s\n", m.Warnings, m.Duration.Round(time.Millisecond))
}
