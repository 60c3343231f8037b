package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conneroisu/astral/internal/build"
	"github.com/conneroisu/astral/internal/scanner"
	"github.com/conneroisu/astral/internal/watcher"
)

var watchDelay time.Duration

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Recompile components as they change",
	Long: `Compile every component, then recompile the ones that change.

Modules are written to --out when given. Compile errors are reported and
watching continues.

Examples:
  astral watch
  astral watch --out .astral/modules --delay 200ms`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&compileOut, "out", "o", "", "Directory to write compiled modules to")
	watchCmd.Flags().DurationVar(&watchDelay, "delay", 100*time.Millisecond, "Quiet period before a batch of changes is compiled")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ws, err := openWorkspace(cfg, logger)
	if err != nil {
		return err
	}
	defer ws.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := ws.scanner()
	compile := func(ctx context.Context, sources []scanner.Source) {
		res, err := ws.pipeline().Compile(ctx, sources)
		if err != nil {
			return
		}
		printDiagnostics(cmd.ErrOrStderr(), res)
		if compileOut != "" {
			if err := build.WriteModules(compileOut, res); err != nil {
				logger.Error(ctx, err, "Writing modules")
			}
		}
		printSummary(cmd.ErrOrStderr(), res.Metrics)
	}

	sources, err := s.Scan(ctx)
	if err != nil {
		return err
	}
	compile(ctx, sources)

	fw, err := watchSources(ctx, ws, s, func(ctx context.Context, changed []scanner.Source) error {
		if len(changed) > 0 {
			compile(ctx, changed)
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer fw.Stop()

	color.New(color.FgCyan).Fprintf(cmd.ErrOrStderr(), "Watching %s\n", cfg.SrcDir())
	<-ctx.Done()
	return nil
}

// watchSources watches the source directory and calls onChange with every
// debounced batch of changed sources that still exist.
func watchSources(ctx context.Context, ws *workspace, s *scanner.Scanner, onChange func(context.Context, []scanner.Source) error) (*watcher.FileWatcher, error) {
	fw, err := watcher.NewFileWatcher(watchDelay, ws.logger)
	if err != nil {
		return nil, err
	}
	fw.SetDirFilter(func(path string) bool { return !s.Excluded(path, true) })
	fw.AddFilter(func(path string) bool {
		base := filepath.Base(path)
		return !strings.HasPrefix(base, ".") && !strings.HasSuffix(base, "~")
	})
	fw.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
		var changed []scanner.Source
		for _, ev := range events {
			if ev.Type == watcher.EventTypeDeleted || !scanner.IsSource(ev.Path) || !s.Contains(ev.Path) {
				continue
			}
			src, err := s.ScanFile(ev.Path)
			if err != nil {
				continue
			}
			changed = append(changed, src)
		}
		ws.logger.Debug(ctx, "Sources changed", "events", len(events), "sources", len(changed))
		return onChange(ctx, changed)
	})

	if err := fw.AddRecursive(ws.cfg.SrcDir()); err != nil {
		fw.Stop()
		return nil, err
	}
	fw.Start(ctx)
	return fw, nil
}
