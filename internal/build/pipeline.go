package build

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/astral/internal/compiler"
	"github.com/conneroisu/astral/internal/errors"
	"github.com/conneroisu/astral/internal/logging"
	astralruntime "github.com/conneroisu/astral/internal/runtime"
	"github.com/conneroisu/astral/internal/scanner"
)

// FileResult is the outcome of compiling one source.
type FileResult struct {
	Source   scanner.Source
	Output   *compiler.Output
	Err      error
	Duration time.Duration
}

// Metrics summarizes one pipeline run.
type Metrics struct {
	Total     int
	Succeeded int
	Failed    int
	Warnings  int
	Duration  time.Duration
}

// Result holds every file result in source order.
type Result struct {
	Files   []FileResult
	Metrics Metrics
}

// Err joins the errors of every failed file, nil when all succeeded.
func (r *Result) Err() error {
	var errs []error
	for _, f := range r.Files {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return stderrors.Join(errs...)
}

// Pipeline compiles sources in parallel.
type Pipeline struct {
	compiler astralruntime.Compiler
	workers  int
	logger   logging.Logger
}

// NewPipeline creates a pipeline running at most workers compiles at once.
// workers below one uses one per CPU.
func NewPipeline(c astralruntime.Compiler, workers int, logger logging.Logger) *Pipeline {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{compiler: c, workers: workers, logger: logger.WithComponent("build")}
}

// Compile compiles every source. A failing file does not stop the others;
// the returned error is only set when ctx ends the run.
func (p *Pipeline) Compile(ctx context.Context, sources []scanner.Source) (*Result, error) {
	start := time.Now()
	res := &Result{Files: make([]FileResult, len(sources))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res.Files[i] = p.compileOne(gctx, src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := &res.Metrics
	m.Total = len(sources)
	for _, f := range res.Files {
		if f.Err != nil {
			m.Failed++
			continue
		}
		m.Succeeded++
		m.Warnings += len(f.Output.Warnings)
	}
	m.Duration = time.Since(start)

	p.logger.Info(ctx, "Compiled sources",
		"total", m.Total, "failed", m.Failed, "warnings", m.Warnings, "duration", m.Duration)
	return res, nil
}

func (p *Pipeline) compileOne(ctx context.Context, src scanner.Source) FileResult {
	start := time.Now()
	fr := FileResult{Source: src}

	data, err := os.ReadFile(src.Path)
	if err != nil {
		fr.Err = errors.NewIOError(errors.ErrCodeFileNotFound, "reading source", err).WithLocation(src.Path, 0, 0)
		fr.Duration = time.Since(start)
		return fr
	}
	fr.Output, fr.Err = p.compiler.Compile(ctx, compiler.Input{
		Source:   data,
		Filename: src.Path,
		FileID:   src.FileID,
	})
	fr.Duration = time.Since(start)

	if fr.Err != nil {
		p.logger.Error(ctx, fr.Err, "Compile failed", "file", src.FileID)
	} else {
		p.logger.Debug(ctx, "Compiled", "file", src.FileID, "duration", fr.Duration)
	}
	return fr
}

// WriteModules writes every compiled module below dir as <FileID>.js and
// its CSS, when any, as <FileID>.css.
func WriteModules(dir string, res *Result) error {
	for _, f := range res.Files {
		if f.Err != nil {
			continue
		}
		base := filepath.Join(dir, filepath.FromSlash(f.Source.FileID))
		if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(base+".js", []byte(f.Output.Contents), 0o644); err != nil {
			return fmt.Errorf("writing module %s: %w", f.Source.FileID, err)
		}
		if f.Output.CSS != "" {
			if err := os.WriteFile(base+".css", []byte(f.Output.CSS), 0o644); err != nil {
				return fmt.Errorf("writing styles %s: %w", f.Source.FileID, err)
			}
		}
	}
	return nil
}
