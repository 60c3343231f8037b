package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/conneroisu/astral/internal/build"
	"github.com/conneroisu/astral/internal/compiler"
	"github.com/conneroisu/astral/internal/config"
	"github.com/conneroisu/astral/internal/logging"
	"github.com/conneroisu/astral/internal/runtime"
	"github.com/conneroisu/astral/internal/scanner"
	"github.com/conneroisu/astral/internal/styles"
	"github.com/conneroisu/astral/internal/version"
	"github.com/conneroisu/astral/internal/wrapper"
)

// workspace holds the compile collaborators shared by every command.
type workspace struct {
	cfg      *config.Config
	logger   logging.Logger
	session  *compiler.Session
	sass     *styles.DartSass
	compiler *build.CachedCompiler
}

func openWorkspace(cfg *config.Config, logger logging.Logger) (*workspace, error) {
	exts, err := wrapper.DefaultExtensions().WithOverrides(cfg.Compiler.Extensions)
	if err != nil {
		return nil, err
	}
	var parser compiler.Parser
	if cfg.Compiler.ParserCommand != "" {
		p, err := compiler.NewCommandParser(cfg.Compiler.ParserCommand)
		if err != nil {
			return nil, err
		}
		parser = p
	}

	sass := styles.NewDartSass(cfg.Compiler.SassBinary)
	session := compiler.NewSession(compiler.SessionConfig{
		ProjectRoot: cfg.Root(),
		AstroRoot:   cfg.SrcDir(),
		PagesDir:    cfg.PagesDir(),
		Production:  cfg.Production(),
		Extensions:  exts,
		Resolver:    wrapper.PackageResolverFunc(runtime.WebModuleURL),
		Sass:        sass,
		Parser:      parser,
		Logger:      logger,
	})

	var disk *build.DiskCache
	if cfg.Build.CacheDir != "" {
		disk = build.NewDiskCache(cfg.CacheDir())
	}
	// fmt prints maps in key order, so the fingerprint is stable.
	fingerprint := fmt.Sprintf("%s|%s|%v|%s", version.Short(), cfg.Compiler.Mode, cfg.Compiler.Extensions, cfg.Compiler.ParserCommand)

	return &workspace{
		cfg:      cfg,
		logger:   logger,
		session:  session,
		sass:     sass,
		compiler: build.NewCachedCompiler(session, build.NewMemoryCache(cfg.Build.CacheSize), disk, fingerprint, logger),
	}, nil
}

func (w *workspace) scanner() *scanner.Scanner {
	return scanner.New(w.cfg.Root(), w.cfg.SrcDir(), w.cfg.PagesDir(), w.cfg.Build.Exclude)
}

func (w *workspace) pipeline() *build.Pipeline {
	return build.NewPipeline(w.compiler, w.cfg.Workers(), w.logger)
}

// pageRuntime is a running page loader with its node process.
type pageRuntime struct {
	loader *runtime.Loader
	assets *runtime.Assets
	node   *runtime.NodeRunner
}

func (r *pageRuntime) Close() error {
	return r.node.Close()
}

// startRuntime launches node and the page loader over it.
func (w *workspace) startRuntime(ctx context.Context) (*pageRuntime, error) {
	node, err := runtime.StartNode(ctx, runtime.NodeOptions{
		Command: w.cfg.Runtime.NodeCommand,
		Dir:     w.cfg.Root(),
		Logger:  w.logger,
	})
	if err != nil {
		return nil, err
	}

	assets := runtime.NewAssets(w.cfg.Root(), w.cfg.SrcDir(), w.cfg.Production())
	bundler := runtime.NewBundler(w.compiler, w.cfg.Root())
	modules := runtime.NewNodeLoader(node, bundler, assets, filepath.Join(w.cfg.CacheDir(), "bundles"))

	loader, err := runtime.NewLoader(runtime.Config{
		PagesDir:  w.cfg.PagesDir(),
		PublicDir: w.cfg.PublicDir(),
		Site:      w.cfg.Runtime.Site,
		Port:      w.cfg.Server.Port,
	}, modules, assets, w.logger)
	if err != nil {
		node.Close()
		return nil, err
	}
	return &pageRuntime{loader: loader, assets: assets, node: node}, nil
}

// logStats reports the compile cache effectiveness at debug level.
func (w *workspace) logStats(ctx context.Context) {
	s := w.compiler.Stats()
	w.logger.Debug(ctx, "Compile cache",
		"entries", s.Entries, "hits", s.Hits, "misses", s.Misses,
		"disk_hits", s.DiskHits, "evictions", s.Evictions, "hit_rate", s.HitRate())
}

func (w *workspace) Close() error {
	return w.sass.Close()
}
