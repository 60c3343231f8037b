// Package compiler turns one .astro or .md source file into an executable
// JavaScript render module.
package compiler

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/conneroisu/astral/internal/content"
	"github.com/conneroisu/astral/internal/errors"
	"github.com/conneroisu/astral/internal/logging"
	"github.com/conneroisu/astral/internal/styles"
	"github.com/conneroisu/astral/internal/wrapper"
)

// SessionConfig holds the project wide settings of a Session.
type SessionConfig struct {
	// ProjectRoot is the directory diagnostics and content paths are
	// relative to.
	ProjectRoot string
	// AstroRoot is the source directory component URLs are relative to.
	AstroRoot string
	// PagesDir is the routed pages directory.
	PagesDir string
	// Production compresses and minifies styles.
	Production bool

	Extensions wrapper.Extensions
	Resolver   wrapper.PackageResolver
	Sass       styles.SassCompiler
	Parser     Parser
	Logger     logging.Logger
}

// Session is the state shared by every compile of one build or dev server.
// It is safe for concurrent use.
type Session struct {
	cfg      SessionConfig
	warnings *errors.Collector

	mu          sync.Mutex
	nodeModules map[string]string
	packages    map[string]string
}

// NewSession creates a session. Nil collaborators get defaults: the built-in
// extension table and a no-op logger.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Extensions == nil {
		cfg.Extensions = wrapper.DefaultExtensions()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.AstroRoot == "" && cfg.ProjectRoot != "" {
		cfg.AstroRoot = filepath.Join(cfg.ProjectRoot, "src")
	}
	if cfg.PagesDir == "" && cfg.AstroRoot != "" {
		cfg.PagesDir = filepath.Join(cfg.AstroRoot, "pages")
	}
	return &Session{
		cfg:         cfg,
		warnings:    errors.NewCollector(),
		nodeModules: make(map[string]string),
		packages:    make(map[string]string),
	}
}

// Config returns the session settings.
func (s *Session) Config() SessionConfig {
	return s.cfg
}

// Warnings returns the diagnostics collected across compiles.
func (s *Session) Warnings() *errors.Collector {
	return s.warnings
}

// NodeModules implements styles.NodeModulesLocator. Lookups are memoized
// per directory.
func (s *Session) NodeModules(filename string) string {
	dir := filepath.Dir(filename)

	s.mu.Lock()
	found, ok := s.nodeModules[dir]
	s.mu.Unlock()
	if ok {
		return found
	}

	found = styles.FindNodeModules(dir)

	s.mu.Lock()
	s.nodeModules[dir] = found
	s.mu.Unlock()
	return found
}

// ResolvePackage implements wrapper.PackageResolver over the configured
// resolver. Successful results are memoized.
func (s *Session) ResolvePackage(ctx context.Context, pkg string) (string, error) {
	s.mu.Lock()
	u, ok := s.packages[pkg]
	s.mu.Unlock()
	if ok {
		return u, nil
	}
	if s.cfg.Resolver == nil {
		return "", errors.NewConfigError(errors.ErrCodeConfigInvalid, "no package resolver configured").
			WithContext("package", pkg)
	}

	u, err := s.cfg.Resolver.ResolvePackage(ctx, pkg)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.packages[pkg] = u
	s.mu.Unlock()
	return u, nil
}

func (s *Session) extractor(warnings *errors.Collector) *content.Extractor {
	return &content.Extractor{
		ProjectRoot: s.cfg.ProjectRoot,
		PagesDir:    s.cfg.PagesDir,
		Warnings:    warnings,
		Logger:      s.cfg.Logger.WithComponent("content"),
	}
}

// WebModules returns a resolver mapping a package to /web_modules/<pkg>.js,
// the layout the dev server serves installed packages under.
func WebModules() wrapper.PackageResolver {
	return wrapper.PackageResolverFunc(func(_ context.Context, pkg string) (string, error) {
		return "/web_modules/" + pkg + ".js", nil
	})
}
